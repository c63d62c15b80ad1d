package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/verdandi/pkg/engine"
	"github.com/ssargent/verdandi/pkg/results"
	"github.com/ssargent/verdandi/pkg/storage"
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <table>",
	Short: "Query a table in the data directory",
	Long: `Query a table stored in the data directory and print matching rows.

Conditions take the form column<op>value where <op> is one of
=, !=, <, <=, >, >=.

Examples:
  verdandi query people
  verdandi query people --where "age>30" --sort age --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		wheres, _ := cmd.Flags().GetStringArray("where")
		sortCols, _ := cmd.Flags().GetStringArray("sort")
		limit, _ := cmd.Flags().GetInt("limit")

		db := engine.NewDB()
		store, err := storage.Open(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		t, err := store.LoadTable(db, args[0])
		if err != nil {
			return fmt.Errorf("failed to load table: %w", err)
		}
		schema := t.Schema()

		conds := make([]engine.Cond, 0, len(wheres))
		for _, w := range wheres {
			cond, err := parseCondition(schema, w)
			if err != nil {
				return err
			}
			conds = append(conds, cond)
		}

		var sort engine.SortDescriptor
		for _, name := range sortCols {
			ascending := true
			if strings.HasPrefix(name, "-") {
				ascending = false
				name = name[1:]
			}
			col := schema.ColumnIndex(name)
			if col < 0 {
				return fmt.Errorf("unknown sort column: %q", name)
			}
			sort.Clauses = append(sort.Clauses, engine.SortClause{Column: col, Ascending: ascending})
		}

		q := t.Where(conds...)
		if err := q.Validate(); err != nil {
			return err
		}
		rs := results.FromQuery(db, q, sort, engine.DistinctDescriptor{})

		size, err := rs.Size()
		if err != nil {
			return err
		}
		n := size
		if limit > 0 && limit < n {
			n = limit
		}

		for i := 0; i < n; i++ {
			ref, err := rs.Get(i)
			if err != nil {
				return err
			}
			fields := make([]string, 0, len(schema)+1)
			fields = append(fields, fmt.Sprintf("id=%d", uint64(ref.ID())))
			for col, c := range schema {
				fields = append(fields, fmt.Sprintf("%s=%s", c.Name, formatValue(ref.Value(col))))
			}
			cmd.Println(strings.Join(fields, " "))
		}
		cmd.Printf("%d of %d rows\n", n, size)
		return nil
	},
}

var condOps = []string{"!=", "<=", ">=", "=", "<", ">"}

// parseCondition splits "age>30" into a typed condition against the schema
func parseCondition(schema engine.Schema, expr string) (engine.Cond, error) {
	for _, op := range condOps {
		idx := strings.Index(expr, op)
		if idx <= 0 {
			continue
		}
		name := strings.TrimSpace(expr[:idx])
		raw := strings.TrimSpace(expr[idx+len(op):])

		col := schema.ColumnIndex(name)
		if col < 0 {
			return engine.Cond{}, fmt.Errorf("unknown column: %q", name)
		}
		v, err := parseLiteral(schema[col], raw)
		if err != nil {
			return engine.Cond{}, err
		}
		return engine.Cond{Col: col, Op: engine.Op(op), Value: v}, nil
	}
	return engine.Cond{}, fmt.Errorf("invalid condition: %q", expr)
}

func parseLiteral(col engine.Column, raw string) (engine.Value, error) {
	if raw == "null" {
		return engine.NullValue(col.Type), nil
	}
	switch col.Type {
	case engine.TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return engine.Value{}, fmt.Errorf("column %q expects an integer: %w", col.Name, err)
		}
		return engine.IntValue(n), nil
	case engine.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return engine.Value{}, fmt.Errorf("column %q expects a boolean: %w", col.Name, err)
		}
		return engine.BoolValue(b), nil
	case engine.TypeFloat:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return engine.Value{}, fmt.Errorf("column %q expects a number: %w", col.Name, err)
		}
		return engine.FloatValue(float32(f)), nil
	case engine.TypeDouble:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return engine.Value{}, fmt.Errorf("column %q expects a number: %w", col.Name, err)
		}
		return engine.DoubleValue(f), nil
	case engine.TypeString:
		return engine.StringValue(raw), nil
	case engine.TypeTimestamp:
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return engine.Value{}, fmt.Errorf("column %q expects an RFC 3339 timestamp: %w", col.Name, err)
		}
		return engine.TimestampValue(ts), nil
	default:
		return engine.Value{}, fmt.Errorf("column %q cannot be queried from the command line", col.Name)
	}
}

func formatValue(v engine.Value) string {
	if v.IsNull() {
		return "null"
	}
	switch v.Type {
	case engine.TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case engine.TypeBool:
		return strconv.FormatBool(v.Bool())
	case engine.TypeFloat, engine.TypeDouble:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case engine.TypeString:
		return v.Str
	case engine.TypeBinary:
		return fmt.Sprintf("%x", v.Bytes)
	case engine.TypeTimestamp:
		return v.Time.Format(time.RFC3339Nano)
	case engine.TypeLink:
		return fmt.Sprintf("link:%d", uint64(v.Link))
	default:
		return "?"
	}
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringArray("where", nil, "Condition of the form column<op>value (repeatable)")
	queryCmd.Flags().StringArray("sort", nil, "Sort column, prefix with - for descending (repeatable)")
	queryCmd.Flags().Int("limit", 0, "Maximum number of rows to print")
}
