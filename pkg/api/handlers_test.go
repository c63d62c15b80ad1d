package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/verdandi/pkg/engine"
)

var metricsOnce sync.Once
var sharedMetrics *Metrics

// testMetrics returns a process-wide metrics instance; promauto registers
// into the default registry, which panics on duplicate registration.
func testMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = NewMetrics()
	})
	return sharedMetrics
}

func newTestServer(t *testing.T) (*Server, chi.Router) {
	t.Helper()
	db := engine.NewDB()
	s := NewServer(db, nil, ServerConfig{APIKey: "test-key"}, testMetrics())

	r := chi.NewRouter()
	r.Get("/tables", s.handleListTables)
	r.Post("/tables", s.handleCreateTable)
	r.Get("/tables/{table}/rows", s.handleListRows)
	r.Post("/tables/{table}/rows", s.handleAddRow)
	r.Delete("/tables/{table}/rows/{id}", s.handleDeleteRow)
	r.Post("/tables/{table}/query", s.handleQuery)
	r.Post("/tables/{table}/aggregate", s.handleAggregate)
	r.Get("/stats", s.handleStats)
	r.Get("/health", s.handleHealth)
	return s, r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func createPeopleTable(t *testing.T, r http.Handler) {
	t.Helper()
	w := doJSON(t, r, "POST", "/tables", CreateTableRequest{
		Name: "people",
		Columns: []ColumnSpec{
			{Name: "age", Type: "int"},
			{Name: "name", Type: "string", Nullable: true},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func addPerson(t *testing.T, r http.Handler, age int, name interface{}) {
	t.Helper()
	w := doJSON(t, r, "POST", "/tables/people/rows", RowRequest{Values: []interface{}{age, name}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHandleHealth(t *testing.T) {
	_, r := newTestServer(t)
	w := doJSON(t, r, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeResponse(t, w).Success)
}

func TestHandleCreateTable(t *testing.T) {
	_, r := newTestServer(t)
	createPeopleTable(t, r)

	t.Run("duplicate name rejected", func(t *testing.T) {
		w := doJSON(t, r, "POST", "/tables", CreateTableRequest{
			Name:    "people",
			Columns: []ColumnSpec{{Name: "v", Type: "int"}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown column type rejected", func(t *testing.T) {
		w := doJSON(t, r, "POST", "/tables", CreateTableRequest{
			Name:    "bad",
			Columns: []ColumnSpec{{Name: "v", Type: "decimal"}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("listing includes schema", func(t *testing.T) {
		w := doJSON(t, r, "GET", "/tables", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"people"`)
		assert.Contains(t, w.Body.String(), `"age"`)
	})
}

func TestHandleAddAndListRows(t *testing.T) {
	_, r := newTestServer(t)
	createPeopleTable(t, r)
	addPerson(t, r, 30, "ada")
	addPerson(t, r, 41, nil)

	w := doJSON(t, r, "GET", "/tables/people/rows", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	require.True(t, resp.Success)
	payload, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var qr QueryResponse
	require.NoError(t, json.Unmarshal(payload, &qr))

	assert.Equal(t, 2, qr.Total)
	require.Len(t, qr.Rows, 2)
	assert.Equal(t, float64(30), qr.Rows[0].Values[0])
	assert.Equal(t, "ada", qr.Rows[0].Values[1])
	assert.Nil(t, qr.Rows[1].Values[1])
}

func TestHandleAddRow_Validation(t *testing.T) {
	_, r := newTestServer(t)
	createPeopleTable(t, r)

	t.Run("wrong arity", func(t *testing.T) {
		w := doJSON(t, r, "POST", "/tables/people/rows", RowRequest{Values: []interface{}{1}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("type mismatch", func(t *testing.T) {
		w := doJSON(t, r, "POST", "/tables/people/rows", RowRequest{Values: []interface{}{"old", "ada"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing table", func(t *testing.T) {
		w := doJSON(t, r, "POST", "/tables/nope/rows", RowRequest{Values: []interface{}{1}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleQuery(t *testing.T) {
	_, r := newTestServer(t)
	createPeopleTable(t, r)
	addPerson(t, r, 30, "ada")
	addPerson(t, r, 20, "bob")
	addPerson(t, r, 41, "eva")

	w := doJSON(t, r, "POST", "/tables/people/query", QueryRequest{
		Conditions: []ConditionSpec{{Column: "age", Operator: ">", Value: 25}},
		Sort:       []SortSpec{{Column: "age", Ascending: true}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeResponse(t, w)
	payload, _ := json.Marshal(resp.Data)
	var qr QueryResponse
	require.NoError(t, json.Unmarshal(payload, &qr))

	assert.Equal(t, 2, qr.Total)
	require.Len(t, qr.Rows, 2)
	assert.Equal(t, "ada", qr.Rows[0].Values[1])
	assert.Equal(t, "eva", qr.Rows[1].Values[1])

	t.Run("unknown column", func(t *testing.T) {
		w := doJSON(t, r, "POST", "/tables/people/query", QueryRequest{
			Conditions: []ConditionSpec{{Column: "height", Operator: "=", Value: 1}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("limit truncates rows but not total", func(t *testing.T) {
		w := doJSON(t, r, "POST", "/tables/people/query", QueryRequest{Limit: 1})
		require.Equal(t, http.StatusOK, w.Code)
		payload, _ := json.Marshal(decodeResponse(t, w).Data)
		var qr QueryResponse
		require.NoError(t, json.Unmarshal(payload, &qr))
		assert.Equal(t, 3, qr.Total)
		assert.Len(t, qr.Rows, 1)
	})
}

func TestHandleAggregate(t *testing.T) {
	_, r := newTestServer(t)
	createPeopleTable(t, r)
	addPerson(t, r, 30, "ada")
	addPerson(t, r, 20, "bob")

	aggregate := func(t *testing.T, op string, body interface{}) AggregateResponse {
		t.Helper()
		w := doJSON(t, r, "POST", "/tables/people/aggregate?op="+op+"&column=age", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		payload, _ := json.Marshal(decodeResponse(t, w).Data)
		var ar AggregateResponse
		require.NoError(t, json.Unmarshal(payload, &ar))
		return ar
	}

	assert.Equal(t, float64(50), aggregate(t, "sum", nil).Value)
	assert.Equal(t, float64(30), aggregate(t, "max", nil).Value)
	assert.Equal(t, float64(20), aggregate(t, "min", nil).Value)
	assert.Equal(t, float64(25), aggregate(t, "average", nil).Value)

	t.Run("filtered aggregate", func(t *testing.T) {
		ar := aggregate(t, "sum", QueryRequest{
			Conditions: []ConditionSpec{{Column: "age", Operator: ">", Value: 25}},
		})
		assert.Equal(t, float64(30), ar.Value)
	})

	t.Run("unsupported column type", func(t *testing.T) {
		w := doJSON(t, r, "POST", "/tables/people/aggregate?op=sum&column=name", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown operation", func(t *testing.T) {
		w := doJSON(t, r, "POST", "/tables/people/aggregate?op=median&column=age", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDeleteRow(t *testing.T) {
	_, r := newTestServer(t)
	createPeopleTable(t, r)
	addPerson(t, r, 30, "ada")

	w := doJSON(t, r, "DELETE", "/tables/people/rows/1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, "DELETE", "/tables/people/rows/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, "GET", "/tables/people/rows", nil)
	payload, _ := json.Marshal(decodeResponse(t, w).Data)
	var qr QueryResponse
	require.NoError(t, json.Unmarshal(payload, &qr))
	assert.Equal(t, 0, qr.Total)
}

func TestHandleStats(t *testing.T) {
	_, r := newTestServer(t)
	createPeopleTable(t, r)
	addPerson(t, r, 30, "ada")

	w := doJSON(t, r, "GET", "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tables":1`)
	assert.Contains(t, w.Body.String(), `"rows":1`)
}
