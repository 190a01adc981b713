// Package grpc provides the gRPC surface for skyquery's pushdown query
// operation. There is no protoc-generated stub in this repository: rather
// than hand-write .pb.go boilerplate or fabricate a code generation step,
// the wire messages are google.golang.org/protobuf's well-known types
// (structpb.Struct for the query envelope, wrapperspb.StringValue for the
// health check), and the QueryService is registered against grpc.Server
// with a hand-built grpc.ServiceDesc — the same mechanism protoc-gen-go-grpc
// emits, written directly.
package grpc

import (
	"context"
	"fmt"

	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/internal/queryengine"
	"github.com/arkilian/skyquery/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// QueryServiceName is the fully qualified gRPC service name advertised in
// the hand-built ServiceDesc below.
const QueryServiceName = "skyquery.query.v1.QueryService"

// QueryServer implements the QueryService gRPC service.
type QueryServer struct {
	engine *queryengine.Engine
}

// NewQueryServer creates a new gRPC query server.
func NewQueryServer(engine *queryengine.Engine) *QueryServer {
	return &QueryServer{engine: engine}
}

// Execute runs a pushdown query and returns the merged result as a
// structpb.Struct with fields "columns" (list of strings), "rows" (list of
// lists), "stats" (nested struct), and "request_id" (string).
func (s *QueryServer) Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requestID := extractRequestID(ctx)

	fields := req.GetFields()
	dbSchema := fields["db_schema"].GetStringValue()
	tableName := fields["table_name"].GetStringValue()
	columns := fields["columns"].GetStringValue()
	predsWire := fields["predicates"].GetStringValue()

	if dbSchema == "" || tableName == "" {
		return nil, status.Error(codes.InvalidArgument, "db_schema and table_name are required")
	}
	if columns == "" {
		columns = types.ProjectAllKeyword
	}

	tableSchema, err := s.engine.ResolveSchema(ctx, dbSchema, tableName)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "failed to resolve schema: %v", err)
	}

	querySchema, err := types.SchemaFromColNames(tableSchema, columns)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid columns: %v", err)
	}

	preds, err := predicate.PredsFromString(predsWire, tableSchema)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid predicates: %v", err)
	}

	result, err := s.engine.Execute(ctx, queryengine.Request{
		DBSchema:    dbSchema,
		TableName:   tableName,
		QuerySchema: querySchema,
		Preds:       preds,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query execution failed: %v", err)
	}

	return resultToStruct(result, requestID)
}

// Health answers a liveness probe, echoing the caller's payload back —
// enough for a load balancer's gRPC health check to confirm the
// connection is served by a live process without hitting the engine.
func (s *QueryServer) Health(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(fmt.Sprintf("ok:%s", req.GetValue())), nil
}

// resultToStruct converts a queryengine.Result into the wire envelope.
func resultToStruct(result *queryengine.Result, requestID string) (*structpb.Struct, error) {
	colNames := types.ColNamesFromSchema(result.Schema)
	columnsVal, err := structpb.NewList(stringsToAny(colNames))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode columns: %v", err)
	}

	rowsList := &structpb.ListValue{Values: make([]*structpb.Value, len(result.Rows))}
	for i, row := range result.Rows {
		cellVals := make([]*structpb.Value, len(row.Cells))
		for j, c := range row.Cells {
			cellVals[j] = cellToValue(c)
		}
		rowsList.Values[i] = structpb.NewListValue(&structpb.ListValue{Values: cellVals})
	}

	statsStruct, err := structpb.NewStruct(map[string]interface{}{
		"containers_scanned": float64(result.Stats.ContainersScanned),
		"containers_pruned":  float64(result.Stats.ContainersPruned),
		"rows_scanned":       float64(result.Stats.RowsScanned),
		"execution_time_ms":  float64(result.Stats.ExecutionTimeMs),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode stats: %v", err)
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"columns":    structpb.NewListValue(columnsVal),
			"rows":       structpb.NewListValue(rowsList),
			"stats":      structpb.NewStructValue(statsStruct),
			"request_id": structpb.NewStringValue(requestID),
		},
	}, nil
}

// cellToValue converts one cell to its structpb.Value representation.
// 64-bit integers are encoded as decimal strings rather than
// structpb.Value's float64-backed NumberValue, which cannot represent the
// full int64/uint64 range without precision loss.
func cellToValue(c types.Cell) *structpb.Value {
	switch {
	case c.Type.IsFloat():
		return structpb.NewNumberValue(c.F)
	case c.Type == types.SkyBool:
		return structpb.NewBoolValue(c.Bool())
	case c.Type.IsSigned():
		return structpb.NewStringValue(fmt.Sprintf("%d", c.I))
	case c.Type.IsUnsigned():
		return structpb.NewStringValue(fmt.Sprintf("%d", c.U))
	default:
		return structpb.NewStringValue(c.S)
	}
}

func stringsToAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// extractRequestID pulls x-request-id from incoming gRPC metadata, or
// returns "" if the caller didn't set one.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			return ids[0]
		}
	}
	return ""
}

// _QueryService_Execute_Handler is the unary handler grpc.Server invokes
// for the Execute method, the same shape protoc-gen-go-grpc emits.
func _QueryService_Execute_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*QueryServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + QueryServiceName + "/Execute",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*QueryServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// _QueryService_Health_Handler is the unary handler grpc.Server invokes
// for the Health method.
func _QueryService_Health_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*QueryServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + QueryServiceName + "/Health",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*QueryServer).Health(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// QueryServiceDesc is the hand-built analog of the *_grpc.pb.go ServiceDesc
// protoc-gen-go-grpc would normally generate from a query.proto file.
var QueryServiceDesc = grpc.ServiceDesc{
	ServiceName: QueryServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: _QueryService_Execute_Handler},
		{MethodName: "Health", Handler: _QueryService_Health_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/api/grpc/query.go",
}

// RegisterQueryServiceServer registers srv with s under QueryServiceDesc.
func RegisterQueryServiceServer(s *grpc.Server, srv *QueryServer) {
	s.RegisterService(&QueryServiceDesc, srv)
}
