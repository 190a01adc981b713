package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/internal/queryengine"
	"github.com/arkilian/skyquery/pkg/types"
)

// QueryRequest is a single pushdown query: the table to scan, the
// projected columns ("*", "RID_INDEX", or a comma-separated column list),
// and a wire-format predicate/aggregate chain (see predicate.PredsFromString).
type QueryRequest struct {
	DBSchema   string `json:"db_schema"`
	TableName  string `json:"table_name"`
	Columns    string `json:"columns"`
	Predicates string `json:"predicates"`
}

// QueryResponse is the merged result of a pushdown query across every
// container object scanned for the request's table.
type QueryResponse struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	Stats     QueryStats      `json:"stats"`
	RequestID string          `json:"request_id"`
}

// QueryStats reports how much of the table a query actually touched.
type QueryStats struct {
	ContainersScanned int   `json:"containers_scanned"`
	ContainersPruned  int   `json:"containers_pruned"`
	ExecutionTimeMs   int64 `json:"execution_time_ms"`
}

// QueryHandler handles POST /v1/query requests.
type QueryHandler struct {
	engine *queryengine.Engine
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(engine *queryengine.Engine) *QueryHandler {
	return &QueryHandler{engine: engine}
}

// ServeHTTP handles the query HTTP request.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}

	if req.DBSchema == "" || req.TableName == "" {
		writeError(w, http.StatusBadRequest, "db_schema and table_name are required", requestID)
		return
	}
	if req.Columns == "" {
		req.Columns = types.ProjectAllKeyword
	}

	tableSchema, err := h.engine.ResolveSchema(r.Context(), req.DBSchema, req.TableName)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("failed to resolve schema: %v", err), requestID)
		return
	}

	querySchema, err := types.SchemaFromColNames(tableSchema, req.Columns)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid columns: %v", err), requestID)
		return
	}

	preds, err := predicate.PredsFromString(req.Predicates, tableSchema)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid predicates: %v", err), requestID)
		return
	}

	result, err := h.engine.Execute(r.Context(), queryengine.Request{
		DBSchema:    req.DBSchema,
		TableName:   req.TableName,
		QuerySchema: querySchema,
		Preds:       preds,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("query execution failed: %v", err), requestID)
		return
	}

	resp := QueryResponse{
		Columns: types.ColNamesFromSchema(result.Schema),
		Rows:    rowsToJSON(result.Rows),
		Stats: QueryStats{
			ContainersScanned: result.Stats.ContainersScanned,
			ContainersPruned:  result.Stats.ContainersPruned,
			ExecutionTimeMs:   result.Stats.ExecutionTimeMs,
		},
		RequestID: requestID,
	}
	if resp.Rows == nil {
		resp.Rows = [][]interface{}{}
	}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// rowsToJSON flattens each cell's tagged-union value to the single Go
// value JSON encoding expects, in schema-projection order.
func rowsToJSON(rows []types.Row) [][]interface{} {
	if rows == nil {
		return nil
	}
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		vals := make([]interface{}, len(row.Cells))
		for j, c := range row.Cells {
			vals[j] = cellToJSON(c)
		}
		out[i] = vals
	}
	return out
}

// cellToJSON extracts the tagged-union field JSON should serialize for c's
// declared type.
func cellToJSON(c types.Cell) interface{} {
	switch {
	case c.Type.IsFloat():
		return c.F
	case c.Type == types.SkyBool:
		return c.Bool()
	case c.Type.IsSigned():
		return c.I
	case c.Type.IsUnsigned():
		return c.U
	default:
		return c.S
	}
}
