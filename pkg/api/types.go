package api

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port    int
	APIKey  string
	DataDir string
}

// ColumnSpec describes one column in a table creation request
type ColumnSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

// CreateTableRequest represents a table creation request
type CreateTableRequest struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// RowRequest represents a row insertion request. Values are positional and
// must match the table schema; null selects the column's null value.
type RowRequest struct {
	Values []interface{} `json:"values"`
}

// ConditionSpec is one predicate condition in a query request
type ConditionSpec struct {
	Column   string      `json:"column"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// SortSpec is one sort clause in a query request
type SortSpec struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// QueryRequest represents a query over a table
type QueryRequest struct {
	Conditions []ConditionSpec `json:"conditions,omitempty"`
	Sort       []SortSpec      `json:"sort,omitempty"`
	Distinct   []string        `json:"distinct,omitempty"`
	Limit      int             `json:"limit,omitempty"`
}

// RowResponse is one row in a query or listing response
type RowResponse struct {
	ID     uint64        `json:"id"`
	Values []interface{} `json:"values"`
}

// QueryResponse is the payload of a query response
type QueryResponse struct {
	Rows  []RowResponse `json:"rows"`
	Total int           `json:"total"`
}

// AggregateResponse is the payload of an aggregate response
type AggregateResponse struct {
	Operation string      `json:"operation"`
	Column    string      `json:"column"`
	Value     interface{} `json:"value"`
	HasValue  bool        `json:"has_value"`
}

// TableInfo describes one table in a listing response
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
	Rows    int          `json:"rows"`
}
