package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssargent/verdandi/pkg/engine"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name      string
		old       []engine.RowID
		fresh     []engine.RowID
		mods      map[engine.RowID][]int
		wantIns   []int
		wantDel   []int
		wantMod   []int
		wantEmpty bool
	}{
		{
			name:      "no change",
			old:       []engine.RowID{1, 2},
			fresh:     []engine.RowID{1, 2},
			wantEmpty: true,
		},
		{
			name:    "pure insertion",
			old:     []engine.RowID{1},
			fresh:   []engine.RowID{1, 2, 3},
			wantIns: []int{1, 2},
		},
		{
			name:    "pure deletion reports old positions",
			old:     []engine.RowID{1, 2, 3},
			fresh:   []engine.RowID{2},
			wantDel: []int{0, 2},
		},
		{
			name:    "modification of surviving row",
			old:     []engine.RowID{1, 2},
			fresh:   []engine.RowID{1, 2},
			mods:    map[engine.RowID][]int{2: {0}},
			wantMod: []int{1},
		},
		{
			name:    "modification positions come out ascending",
			old:     []engine.RowID{1, 2, 3, 4},
			fresh:   []engine.RowID{1, 2, 3, 4},
			mods:    map[engine.RowID][]int{4: {0}, 1: {0}, 3: {0}},
			wantMod: []int{0, 2, 3},
		},
		{
			name:      "modification of deleted row is not reported",
			old:       []engine.RowID{1, 2},
			fresh:     []engine.RowID{1, 2},
			mods:      map[engine.RowID][]int{99: {0}},
			wantEmpty: true,
		},
		{
			name:    "row leaving the result set counts as deletion not modification",
			old:     []engine.RowID{1, 2},
			fresh:   []engine.RowID{1},
			mods:    map[engine.RowID][]int{2: {0}},
			wantDel: []int{1},
		},
		{
			name:    "row entering the result set counts as insertion not modification",
			old:     []engine.RowID{1},
			fresh:   []engine.RowID{1, 2},
			mods:    map[engine.RowID][]int{2: {0}},
			wantIns: []int{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := Diff(tt.old, tt.fresh, tt.mods)
			assert.Equal(t, tt.wantEmpty, cs.Empty())
			assert.Equal(t, tt.wantIns, cs.Insertions)
			assert.Equal(t, tt.wantDel, cs.Deletions)
			assert.Equal(t, tt.wantMod, cs.Modifications)
		})
	}
}

func TestDiff_ColumnsTrackOldPositions(t *testing.T) {
	cs := Diff(
		[]engine.RowID{10, 20, 30},
		[]engine.RowID{10, 20, 30},
		map[engine.RowID][]int{20: {1, 2}},
	)
	assert.Equal(t, []int{1}, cs.Modifications)
	assert.Equal(t, map[int][]int{1: {1}, 2: {1}}, cs.Columns)
}
