// Package remote file: internal/adapter/connector/remote/server.go
package remote

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
)

// serviceName 必须和客户端 full-method 常量里的服务段逐字一致。
const serviceName = "schemafx.connector.v1.Connector"

// Server 把一个进程内连接器按插件协议暴露为 gRPC 服务，和 Connector 客户端互为镜像。
// 被包装连接器缺失的可选能力，对应方法报 Unimplemented，客户端据此降级。
type Server struct {
	conn port.Connector
}

// NewServer 包装要对外暴露的连接器。
func NewServer(conn port.Connector) (*Server, error) {
	if conn == nil {
		return nil, fmt.Errorf("插件服务需要一个非空连接器")
	}
	return &Server{conn: conn}, nil
}

// Register 把协议的全部方法挂到 gRPC 服务器上。
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			s.unary("HealthCheck", s.healthCheck),
			s.unary("ListTables", s.listTables),
			s.unary("GetTable", s.getTable),
			s.unary("GetCapabilities", s.getCapabilities),
			s.unary("GetData", s.getData),
			s.unary("AddRow", s.addRow),
			s.unary("UpdateRow", s.updateRow),
			s.unary("DeleteRow", s.deleteRow),
			s.unary("GetAuthURL", s.getAuthURL),
			s.unary("Authorize", s.authorize),
			s.unary("RevokeAuth", s.revokeAuth),
			s.unary("TestAuth", s.testAuth),
		},
		Metadata: "schemafx/connector/v1/connector.proto",
	}, s)
}

// unary 把 Struct 进 Struct 出的处理函数包装成 grpc 方法描述。
// 没有生成代码，解码和拦截器分派手工完成。
func (s *Server) unary(name string, fn func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			slog.Debug("插件服务: 收到请求", "connector", s.conn.ID(), "method", fullMethod)
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: s, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(ctx, req.(*structpb.Struct))
			})
		},
	}
}

func (s *Server) healthCheck(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	type healthChecker interface {
		HealthCheck(ctx context.Context) error
	}
	if hc, ok := s.conn.(healthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return newResponse(map[string]any{"status": "NOT_SERVING", "error": err.Error()})
		}
	}
	return newResponse(map[string]any{"status": "SERVING"})
}

func (s *Server) listTables(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	path, _ := in.AsMap()["path"].(string)
	descs, err := s.conn.ListTables(ctx, path)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "枚举表失败: %v", err)
	}
	if len(descs) == 0 {
		return newResponse(map[string]any{})
	}
	wire, err := toWire(descs)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "序列化表清单失败: %v", err)
	}
	return newResponse(map[string]any{"tables": wire})
}

func (s *Server) getTable(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	path, _ := in.AsMap()["path"].(string)
	table, err := s.conn.GetTable(ctx, path)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "探测表结构失败: %v", err)
	}
	if table == nil {
		return newResponse(map[string]any{})
	}
	wire, err := toWire(table)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "序列化表结构失败: %v", err)
	}
	return newResponse(map[string]any{"table": wire})
}

func (s *Server) getCapabilities(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	table, err := optionalTable(in)
	if err != nil {
		return nil, err
	}
	caps, err := s.conn.GetCapabilities(ctx, table)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "读取能力声明失败: %v", err)
	}
	wire, err := toWire(caps)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "序列化能力声明失败: %v", err)
	}
	return newResponse(map[string]any{"capabilities": wire})
}

// getData 交出批量形态的数据来源。推送流不能跨进程，
// 只实现了 DataStreamer 的连接器在这里被整体排干成 inline。
func (s *Server) getData(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	table, err := requiredTable(in)
	if err != nil {
		return nil, err
	}

	var def *domain.DataSourceDefinition
	switch impl := s.conn.(type) {
	case port.DataProvider:
		def, err = impl.GetData(ctx, table)
	case port.DataStreamer:
		var ch <-chan domain.Row
		ch, err = impl.GetDataStream(ctx, table)
		if err == nil {
			def = &domain.DataSourceDefinition{Kind: domain.SourceStream, Stream: ch}
		}
	default:
		return nil, status.Errorf(codes.Unimplemented, "连接器 '%s' 不提供数据来源", s.conn.ID())
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "读取数据来源失败: %v", err)
	}

	def, err = portableDefinition(ctx, def)
	if err != nil {
		return nil, err
	}
	wire, errEnc := toWire(def)
	if errEnc != nil {
		return nil, status.Errorf(codes.Internal, "序列化数据来源失败: %v", errEnc)
	}
	return newResponse(map[string]any{"source": wire})
}

func (s *Server) addRow(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	writer, ok := s.conn.(port.RowWriter)
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "连接器 '%s' 不支持新增行", s.conn.ID())
	}
	table, err := requiredTable(in)
	if err != nil {
		return nil, err
	}
	row, err := rowField(in, "row")
	if err != nil {
		return nil, err
	}
	if err := writer.AddRow(ctx, table, row); err != nil {
		return nil, status.Errorf(codes.Internal, "新增行失败: %v", err)
	}
	return newResponse(map[string]any{})
}

func (s *Server) updateRow(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	updater, ok := s.conn.(port.RowUpdater)
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "连接器 '%s' 不支持更新行", s.conn.ID())
	}
	table, err := requiredTable(in)
	if err != nil {
		return nil, err
	}
	key, err := rowField(in, "key")
	if err != nil {
		return nil, err
	}
	row, err := rowField(in, "row")
	if err != nil {
		return nil, err
	}
	if err := updater.UpdateRow(ctx, table, key, row); err != nil {
		return nil, status.Errorf(codes.Internal, "更新行失败: %v", err)
	}
	return newResponse(map[string]any{})
}

func (s *Server) deleteRow(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	deleter, ok := s.conn.(port.RowDeleter)
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "连接器 '%s' 不支持删除行", s.conn.ID())
	}
	table, err := requiredTable(in)
	if err != nil {
		return nil, err
	}
	key, err := rowField(in, "key")
	if err != nil {
		return nil, err
	}
	if err := deleter.DeleteRow(ctx, table, key); err != nil {
		return nil, status.Errorf(codes.Internal, "删除行失败: %v", err)
	}
	return newResponse(map[string]any{})
}

func (s *Server) getAuthURL(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	auth, err := s.authorizer()
	if err != nil {
		return nil, err
	}
	url, err := auth.GetAuthURL(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "获取授权地址失败: %v", err)
	}
	return newResponse(map[string]any{"url": url})
}

func (s *Server) authorize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	auth, err := s.authorizer()
	if err != nil {
		return nil, err
	}
	credential, _ := in.AsMap()["credential"].(string)
	if credential == "" {
		return nil, status.Error(codes.InvalidArgument, "请求缺少凭证 (credential)")
	}
	if err := auth.Authorize(ctx, credential); err != nil {
		return nil, status.Errorf(codes.Internal, "凭证交换失败: %v", err)
	}
	return newResponse(map[string]any{})
}

func (s *Server) revokeAuth(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	auth, err := s.authorizer()
	if err != nil {
		return nil, err
	}
	if err := auth.RevokeAuth(ctx); err != nil {
		return nil, status.Errorf(codes.Internal, "撤销授权失败: %v", err)
	}
	return newResponse(map[string]any{})
}

func (s *Server) testAuth(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	auth, err := s.authorizer()
	if err != nil {
		return nil, err
	}
	if err := auth.TestAuth(ctx); err != nil {
		return nil, status.Errorf(codes.Internal, "授权测试失败: %v", err)
	}
	return newResponse(map[string]any{})
}

func (s *Server) authorizer() (port.Authorizer, error) {
	auth, ok := s.conn.(port.Authorizer)
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "连接器 '%s' 不支持凭证交换", s.conn.ID())
	}
	return auth, nil
}

// portableDefinition 把数据源折算成客户端能接受的 inline 或 url 形态。
// 单文件表转成 file:// 地址 (插件和内核同机部署的约定)，
// stream 排干成 inline，connection 指向内核侧的注册表，无法跨进程。
func portableDefinition(ctx context.Context, def *domain.DataSourceDefinition) (*domain.DataSourceDefinition, error) {
	if def == nil {
		return nil, status.Error(codes.Internal, "连接器返回了空的数据来源")
	}
	switch def.Kind {
	case domain.SourceInline, domain.SourceURL:
		return def, nil
	case domain.SourceFile:
		if len(def.FilePaths) != 1 {
			return nil, status.Errorf(codes.Unimplemented, "无法跨进程传递 %d 个表文件", len(def.FilePaths))
		}
		return &domain.DataSourceDefinition{Kind: domain.SourceURL, URL: "file://" + def.FilePaths[0]}, nil
	case domain.SourceStream:
		if def.Stream == nil {
			return nil, status.Error(codes.Internal, "stream 数据源缺少通道")
		}
		var rows []domain.Row
		for {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case row, ok := <-def.Stream:
				if !ok {
					return &domain.DataSourceDefinition{Kind: domain.SourceInline, Rows: rows}, nil
				}
				rows = append(rows, row)
			}
		}
	default:
		return nil, status.Errorf(codes.Unimplemented, "无法跨进程传递 %q 形态的数据源", def.Kind)
	}
}

// requiredTable 从请求里解出必填的表结构。
func requiredTable(in *structpb.Struct) (*domain.Table, error) {
	table, err := optionalTable(in)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, status.Error(codes.InvalidArgument, "请求缺少表结构 (table)")
	}
	return table, nil
}

func optionalTable(in *structpb.Struct) (*domain.Table, error) {
	raw := in.AsMap()["table"]
	if raw == nil {
		return nil, nil
	}
	var table domain.Table
	if err := fromWire(raw, &table); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "解析表结构失败: %v", err)
	}
	return &table, nil
}

// rowField 从请求里解出行载荷 (row 或 key)。
func rowField(in *structpb.Struct, field string) (domain.Row, error) {
	raw := in.AsMap()[field]
	if raw == nil {
		return nil, status.Errorf(codes.InvalidArgument, "请求缺少 %s 载荷", field)
	}
	var row domain.Row
	if err := fromWire(raw, &row); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "解析 %s 载荷失败: %v", field, err)
	}
	return row, nil
}

func newResponse(payload map[string]any) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "构造响应载荷失败: %v", err)
	}
	return resp, nil
}
