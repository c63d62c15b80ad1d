package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/verdandi/pkg/engine"
	"github.com/ssargent/verdandi/pkg/results"
	"github.com/ssargent/verdandi/pkg/storage"
)

// Server holds the API server state. The database handle is confined to
// one context, so every handler serializes through mu.
type Server struct {
	mu      sync.Mutex
	db      *engine.DB
	store   *storage.Store
	config  ServerConfig
	metrics *Metrics
}

// NewServer creates a new API server over a database handle. store may be
// nil for a purely in-memory server.
func NewServer(db *engine.DB, store *storage.Store, config ServerConfig, metrics *Metrics) *Server {
	return &Server{
		db:      db,
		store:   store,
		config:  config,
		metrics: metrics,
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleListTables godoc
//
//	@Summary		List tables
//	@Description	List every table with its schema and row count
//	@Tags			tables
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Router			/tables [get]
//	@Security		ApiKeyAuth
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var infos []TableInfo
	for _, name := range s.db.TableNames() {
		t, ok := s.db.Table(name)
		if !ok {
			continue
		}
		infos = append(infos, TableInfo{
			Name:    t.Name(),
			Columns: columnSpecs(t.Schema()),
			Rows:    t.Size(),
		})
	}
	sendSuccess(w, map[string]interface{}{"tables": infos})
}

// handleCreateTable godoc
//
//	@Summary		Create a table
//	@Description	Create a table with the given schema
//	@Tags			tables
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateTableRequest	true	"Table definition"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	map[string]string
//	@Router			/tables [post]
//	@Security		ApiKeyAuth
func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req CreateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}
	if req.Name == "" || len(req.Columns) == 0 {
		sendError(w, "name and columns are required", http.StatusBadRequest)
		return
	}

	schema := make(engine.Schema, 0, len(req.Columns))
	for _, spec := range req.Columns {
		col, err := spec.toColumn()
		if err != nil {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		schema = append(schema, col)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.CreateTable(req.Name, schema); err != nil {
		sendError(w, fmt.Sprintf("Failed to create table: %v", err), http.StatusBadRequest)
		return
	}
	s.updateStats()
	sendSuccess(w, map[string]string{"message": "Table created successfully"})
}

// handleListRows godoc
//
//	@Summary		List rows
//	@Description	List the rows of a table in storage order
//	@Tags			rows
//	@Produce		json
//	@Param			table	path		string	true	"Table name"
//	@Param			limit	query		int		false	"Maximum number of rows"
//	@Success		200		{object}	QueryResponse
//	@Failure		404		{object}	map[string]string
//	@Router			/tables/{table}/rows [get]
//	@Security		ApiKeyAuth
func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.db.Table(chi.URLParam(r, "table"))
	if !ok {
		sendError(w, "Table not found", http.StatusNotFound)
		return
	}

	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if n, err := strconv.Atoi(ls); err == nil && n > 0 {
			limit = n
		}
	}

	rs := results.FromTable(s.db, t)
	resp, err := renderResults(rs, limit)
	if err != nil {
		sendResultsError(w, err)
		return
	}
	sendSuccess(w, resp)
}

// handleAddRow godoc
//
//	@Summary		Insert a row
//	@Description	Insert a row with positional column values
//	@Tags			rows
//	@Accept			json
//	@Produce		json
//	@Param			table	path		string		true	"Table name"
//	@Param			request	body		RowRequest	true	"Row values"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		400		{object}	map[string]string
//	@Failure		404		{object}	map[string]string
//	@Router			/tables/{table}/rows [post]
//	@Security		ApiKeyAuth
func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	var req RowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.RecordMutation("insert", false)
		sendError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.db.Table(chi.URLParam(r, "table"))
	if !ok {
		s.metrics.RecordMutation("insert", false)
		sendError(w, "Table not found", http.StatusNotFound)
		return
	}
	schema := t.Schema()
	if len(req.Values) != len(schema) {
		s.metrics.RecordMutation("insert", false)
		sendError(w, fmt.Sprintf("expected %d values, got %d", len(schema), len(req.Values)), http.StatusBadRequest)
		return
	}

	vals := make([]engine.Value, 0, len(schema))
	for i, raw := range req.Values {
		v, err := parseValue(schema[i], raw)
		if err != nil {
			s.metrics.RecordMutation("insert", false)
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		vals = append(vals, v)
	}

	var ref engine.RowRef
	err := s.db.Write(func() error {
		var err error
		ref, err = t.AddRow(vals...)
		return err
	})
	if err != nil {
		s.metrics.RecordMutation("insert", false)
		sendError(w, fmt.Sprintf("Failed to insert row: %v", err), http.StatusInternalServerError)
		return
	}

	s.metrics.RecordMutation("insert", true)
	s.updateStats()
	sendSuccess(w, map[string]interface{}{"id": uint64(ref.ID())})
}

// handleDeleteRow godoc
//
//	@Summary		Delete a row
//	@Description	Delete a row by its stable identifier
//	@Tags			rows
//	@Produce		json
//	@Param			table	path		string	true	"Table name"
//	@Param			id		path		int		true	"Row ID"
//	@Success		200		{object}	map[string]string
//	@Failure		404		{object}	map[string]string
//	@Router			/tables/{table}/rows/{id} [delete]
//	@Security		ApiKeyAuth
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.db.Table(chi.URLParam(r, "table"))
	if !ok {
		s.metrics.RecordMutation("delete", false)
		sendError(w, "Table not found", http.StatusNotFound)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.metrics.RecordMutation("delete", false)
		sendError(w, "Invalid row ID", http.StatusBadRequest)
		return
	}
	if !t.Contains(engine.RowID(id)) {
		s.metrics.RecordMutation("delete", false)
		sendError(w, "Row not found", http.StatusNotFound)
		return
	}

	err = s.db.Write(func() error {
		t.DeleteRow(engine.RowID(id))
		return nil
	})
	if err != nil {
		s.metrics.RecordMutation("delete", false)
		sendError(w, fmt.Sprintf("Failed to delete row: %v", err), http.StatusInternalServerError)
		return
	}

	s.metrics.RecordMutation("delete", true)
	s.updateStats()
	sendSuccess(w, map[string]string{"message": "Row deleted successfully"})
}

// handleQuery godoc
//
//	@Summary		Query a table
//	@Description	Evaluate a predicate with optional sort and distinct
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			table	path		string			true	"Table name"
//	@Param			request	body		QueryRequest	true	"Query"
//	@Success		200		{object}	QueryResponse
//	@Failure		400		{object}	map[string]string
//	@Failure		404		{object}	map[string]string
//	@Router			/tables/{table}/query [post]
//	@Security		ApiKeyAuth
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "table")

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.RecordQuery(name, false, time.Since(start))
		sendError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.db.Table(name)
	if !ok {
		s.metrics.RecordQuery(name, false, time.Since(start))
		sendError(w, "Table not found", http.StatusNotFound)
		return
	}

	rs, err := s.buildResults(t, req)
	if err != nil {
		s.metrics.RecordQuery(name, false, time.Since(start))
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := renderResults(rs, req.Limit)
	if err != nil {
		s.metrics.RecordQuery(name, false, time.Since(start))
		sendResultsError(w, err)
		return
	}
	s.metrics.RecordQuery(name, true, time.Since(start))
	sendSuccess(w, resp)
}

// handleAggregate godoc
//
//	@Summary		Aggregate over a table
//	@Description	Compute max, min, sum, or average of a column, optionally filtered
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			table	path		string			true	"Table name"
//	@Param			op		query		string			true	"Aggregate operation (max, min, sum, average)"
//	@Param			column	query		string			true	"Column name"
//	@Param			request	body		QueryRequest	false	"Optional filter"
//	@Success		200		{object}	AggregateResponse
//	@Failure		400		{object}	map[string]string
//	@Failure		404		{object}	map[string]string
//	@Router			/tables/{table}/aggregate [post]
//	@Security		ApiKeyAuth
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	op := r.URL.Query().Get("op")
	colName := r.URL.Query().Get("column")
	if op == "" || colName == "" {
		s.metrics.RecordAggregate(op, false)
		sendError(w, "op and column parameters are required", http.StatusBadRequest)
		return
	}

	var req QueryRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.metrics.RecordAggregate(op, false)
			sendError(w, "Invalid JSON request", http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.db.Table(chi.URLParam(r, "table"))
	if !ok {
		s.metrics.RecordAggregate(op, false)
		sendError(w, "Table not found", http.StatusNotFound)
		return
	}
	col := t.Schema().ColumnIndex(colName)
	if col < 0 {
		s.metrics.RecordAggregate(op, false)
		sendError(w, fmt.Sprintf("Unknown column: %q", colName), http.StatusBadRequest)
		return
	}

	rs, err := s.buildResults(t, req)
	if err != nil {
		s.metrics.RecordAggregate(op, false)
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := AggregateResponse{Operation: op, Column: colName}
	switch op {
	case "max":
		v, ok, aerr := rs.Max(col)
		err, resp.HasValue = aerr, ok
		if ok {
			resp.Value = renderValue(v)
		}
	case "min":
		v, ok, aerr := rs.Min(col)
		err, resp.HasValue = aerr, ok
		if ok {
			resp.Value = renderValue(v)
		}
	case "sum":
		v, aerr := rs.Sum(col)
		err = aerr
		if err == nil {
			resp.Value, resp.HasValue = renderValue(v), true
		}
	case "average":
		v, ok, aerr := rs.Average(col)
		err, resp.HasValue = aerr, ok
		if ok {
			resp.Value = v
		}
	default:
		s.metrics.RecordAggregate(op, false)
		sendError(w, fmt.Sprintf("Unknown aggregate operation: %q", op), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.metrics.RecordAggregate(op, false)
		sendResultsError(w, err)
		return
	}

	s.metrics.RecordAggregate(op, true)
	sendSuccess(w, resp)
}

// handleStats godoc
//
//	@Summary		Get database statistics
//	@Description	Get table and row counts
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Router			/stats [get]
//	@Security		ApiKeyAuth
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, rows := s.countStats()
	s.metrics.UpdateDBStats(tables, rows)
	sendSuccess(w, map[string]interface{}{
		"tables":  tables,
		"rows":    rows,
		"version": s.db.Version(),
	})
}

// buildResults turns a query request into a result collection over a table
func (s *Server) buildResults(t *engine.Table, req QueryRequest) (*results.Results, error) {
	schema := t.Schema()

	conds := make([]engine.Cond, 0, len(req.Conditions))
	for _, c := range req.Conditions {
		col := schema.ColumnIndex(c.Column)
		if col < 0 {
			return nil, fmt.Errorf("unknown column: %q", c.Column)
		}
		v, err := parseValue(schema[col], c.Value)
		if err != nil {
			return nil, err
		}
		conds = append(conds, engine.Cond{Col: col, Op: engine.Op(c.Operator), Value: v})
	}

	var sort engine.SortDescriptor
	for _, sc := range req.Sort {
		col := schema.ColumnIndex(sc.Column)
		if col < 0 {
			return nil, fmt.Errorf("unknown sort column: %q", sc.Column)
		}
		sort.Clauses = append(sort.Clauses, engine.SortClause{Column: col, Ascending: sc.Ascending})
	}

	var distinct engine.DistinctDescriptor
	for _, name := range req.Distinct {
		col := schema.ColumnIndex(name)
		if col < 0 {
			return nil, fmt.Errorf("unknown distinct column: %q", name)
		}
		distinct.Columns = append(distinct.Columns, col)
	}

	q := t.Where(conds...)
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return results.FromQuery(s.db, q, sort, distinct), nil
}

// renderResults materializes a collection into a wire response
func renderResults(rs *results.Results, limit int) (QueryResponse, error) {
	total, err := rs.Size()
	if err != nil {
		return QueryResponse{}, err
	}
	n := total
	if limit > 0 && limit < n {
		n = limit
	}

	resp := QueryResponse{Rows: make([]RowResponse, 0, n), Total: total}
	for i := 0; i < n; i++ {
		ref, err := rs.Get(i)
		if err != nil {
			return QueryResponse{}, err
		}
		t := ref.Table()
		vals := make([]interface{}, t.ColumnCount())
		for col := range vals {
			vals[col] = renderValue(ref.Value(col))
		}
		resp.Rows = append(resp.Rows, RowResponse{ID: uint64(ref.ID()), Values: vals})
	}
	return resp, nil
}

func (s *Server) countStats() (tables, rows int) {
	for _, name := range s.db.TableNames() {
		if t, ok := s.db.Table(name); ok {
			tables++
			rows += t.Size()
		}
	}
	return tables, rows
}

func (s *Server) updateStats() {
	tables, rows := s.countStats()
	s.metrics.UpdateDBStats(tables, rows)
}

// startMetricsUpdater periodically refreshes database gauges
func (s *Server) startMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		s.updateStats()
		s.mu.Unlock()
	}
}
