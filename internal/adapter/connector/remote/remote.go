// Package remote file: internal/adapter/connector/remote/remote.go
//
// remote 把连接器契约整体转发给一个外部 gRPC 插件进程。
// 插件协议刻意保持通用: 每个方法的请求和响应都是 google.protobuf.Struct,
// 字段约定见各方法注释, 因此不需要生成代码。
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
)

// 编译期断言，确保 Connector 实现了完整的数据契约
var (
	_ port.Connector    = (*Connector)(nil)
	_ port.DataProvider = (*Connector)(nil)
	_ port.RowWriter    = (*Connector)(nil)
	_ port.RowUpdater   = (*Connector)(nil)
	_ port.RowDeleter   = (*Connector)(nil)
	_ port.Authorizer   = (*Connector)(nil)
)

// 插件服务的完整方法名。和插件侧的注册名必须逐字一致。
const (
	methodListTables      = "/schemafx.connector.v1.Connector/ListTables"
	methodGetTable        = "/schemafx.connector.v1.Connector/GetTable"
	methodGetCapabilities = "/schemafx.connector.v1.Connector/GetCapabilities"
	methodGetData         = "/schemafx.connector.v1.Connector/GetData"
	methodAddRow          = "/schemafx.connector.v1.Connector/AddRow"
	methodUpdateRow       = "/schemafx.connector.v1.Connector/UpdateRow"
	methodDeleteRow       = "/schemafx.connector.v1.Connector/DeleteRow"
	methodGetAuthURL      = "/schemafx.connector.v1.Connector/GetAuthURL"
	methodAuthorize       = "/schemafx.connector.v1.Connector/Authorize"
	methodRevokeAuth      = "/schemafx.connector.v1.Connector/RevokeAuth"
	methodTestAuth        = "/schemafx.connector.v1.Connector/TestAuth"
	methodHealthCheck     = "/schemafx.connector.v1.Connector/HealthCheck"
)

// invoker 抽象 grpc.ClientConn 的一元调用能力, 供测试替身注入。
type invoker interface {
	Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error
}

// Connector 是一个适配器, 它实现了连接器契约,
// 但将其所有调用都转发给一个远程的 gRPC 插件。
type Connector struct {
	id   string
	name string
	addr string

	rpc  invoker
	conn *grpc.ClientConn
}

// New 创建一个新的远程连接器实例。
func New(id, name, address string) (*Connector, error) {
	if id == "" {
		return nil, fmt.Errorf("远程连接器需要一个非空 ID")
	}
	if name == "" {
		name = "远程连接器"
	}

	// 创建一个不安全的gRPC连接（本地开发用），未来可增加TLS
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("无法连接到gRPC插件 at %s: %w", address, err)
	}

	return &Connector{id: id, name: name, addr: address, rpc: conn, conn: conn}, nil
}

func (c *Connector) ID() string   { return c.id }
func (c *Connector) Name() string { return c.name }

// Close 关闭与gRPC插件的连接。
func (c *Connector) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// HealthCheck 询问插件的健康状态。响应约定: {"status": "SERVING"}。
func (c *Connector) HealthCheck(ctx context.Context) error {
	resp, err := c.invoke(ctx, methodHealthCheck, map[string]any{})
	if err != nil {
		return err
	}
	if status, _ := resp["status"].(string); status != "SERVING" {
		return fmt.Errorf("插件报告不健康状态: %v", resp["status"])
	}
	return nil
}

// ListTables 请求 {"path": ...}, 响应 {"tables": [{"path","name"}...]}。
func (c *Connector) ListTables(ctx context.Context, path string) ([]port.TableDescriptor, error) {
	resp, err := c.invoke(ctx, methodListTables, map[string]any{"path": path})
	if err != nil {
		return nil, err
	}
	if resp["tables"] == nil {
		return nil, nil
	}
	var descs []port.TableDescriptor
	if err := fromWire(resp["tables"], &descs); err != nil {
		return nil, fmt.Errorf("解析插件的表清单失败: %w", err)
	}
	return descs, nil
}

// GetTable 请求 {"path": ...}, 响应 {"table": {...}}，插件不认识该表时 table 缺省。
func (c *Connector) GetTable(ctx context.Context, path string) (*domain.Table, error) {
	resp, err := c.invoke(ctx, methodGetTable, map[string]any{"path": path})
	if err != nil {
		return nil, err
	}
	if resp["table"] == nil {
		return nil, nil
	}
	var table domain.Table
	if err := fromWire(resp["table"], &table); err != nil {
		return nil, fmt.Errorf("解析插件的表结构失败: %w", err)
	}
	return &table, nil
}

// GetCapabilities 请求 {"table": {...}}, 响应 {"capabilities": {...}}。
func (c *Connector) GetCapabilities(ctx context.Context, table *domain.Table) (port.Capabilities, error) {
	payload := map[string]any{}
	if table != nil {
		wireTable, err := toWire(table)
		if err != nil {
			return port.Capabilities{}, fmt.Errorf("序列化表结构失败: %w", err)
		}
		payload["table"] = wireTable
	}

	resp, err := c.invoke(ctx, methodGetCapabilities, payload)
	if err != nil {
		return port.Capabilities{}, err
	}
	var caps port.Capabilities
	if resp["capabilities"] != nil {
		if err := fromWire(resp["capabilities"], &caps); err != nil {
			return port.Capabilities{}, fmt.Errorf("解析插件的能力声明失败: %w", err)
		}
	}
	// 推送流通道无法跨进程传递, 远程连接器一律走批量形态
	caps.SupportsStreaming = false
	return caps, nil
}

// GetData 请求 {"table": {...}}, 响应 {"source": {...}}。
// 插件可以内联返回行 (kind=inline), 也可以交出一个可拉取的地址 (kind=url)。
func (c *Connector) GetData(ctx context.Context, table *domain.Table) (*domain.DataSourceDefinition, error) {
	wireTable, err := toWire(table)
	if err != nil {
		return nil, fmt.Errorf("序列化表结构失败: %w", err)
	}
	resp, err := c.invoke(ctx, methodGetData, map[string]any{"table": wireTable})
	if err != nil {
		return nil, err
	}

	var def domain.DataSourceDefinition
	if err := fromWire(resp["source"], &def); err != nil {
		return nil, fmt.Errorf("解析插件的数据源描述失败: %w", err)
	}
	switch def.Kind {
	case domain.SourceInline, domain.SourceURL:
		return &def, nil
	default:
		return nil, fmt.Errorf("远程连接器不支持 %q 形态的数据源", def.Kind)
	}
}

// AddRow 请求 {"table": {...}, "row": {...}}。
func (c *Connector) AddRow(ctx context.Context, table *domain.Table, row domain.Row) error {
	return c.mutate(ctx, methodAddRow, table, map[string]any{"row": row})
}

// UpdateRow 请求 {"table": {...}, "key": {...}, "row": {...}}。
func (c *Connector) UpdateRow(ctx context.Context, table *domain.Table, key domain.Row, row domain.Row) error {
	return c.mutate(ctx, methodUpdateRow, table, map[string]any{"key": key, "row": row})
}

// DeleteRow 请求 {"table": {...}, "key": {...}}。
func (c *Connector) DeleteRow(ctx context.Context, table *domain.Table, key domain.Row) error {
	return c.mutate(ctx, methodDeleteRow, table, map[string]any{"key": key})
}

// GetAuthURL 请求 {}, 响应 {"url": ...}。
func (c *Connector) GetAuthURL(ctx context.Context) (string, error) {
	resp, err := c.invoke(ctx, methodGetAuthURL, map[string]any{})
	if err != nil {
		return "", err
	}
	url, _ := resp["url"].(string)
	if url == "" {
		return "", fmt.Errorf("插件未返回授权地址")
	}
	return url, nil
}

// Authorize 请求 {"credential": ...}。
func (c *Connector) Authorize(ctx context.Context, credential string) error {
	_, err := c.invoke(ctx, methodAuthorize, map[string]any{"credential": credential})
	return err
}

// RevokeAuth 请求 {}。
func (c *Connector) RevokeAuth(ctx context.Context) error {
	_, err := c.invoke(ctx, methodRevokeAuth, map[string]any{})
	return err
}

// TestAuth 请求 {}。
func (c *Connector) TestAuth(ctx context.Context) error {
	_, err := c.invoke(ctx, methodTestAuth, map[string]any{})
	return err
}

func (c *Connector) mutate(ctx context.Context, method string, table *domain.Table, extra map[string]any) error {
	wireTable, err := toWire(table)
	if err != nil {
		return fmt.Errorf("序列化表结构失败: %w", err)
	}
	payload := map[string]any{"table": wireTable}
	for k, v := range extra {
		wireV, errEnc := toWire(v)
		if errEnc != nil {
			return fmt.Errorf("序列化 %s 载荷失败: %w", k, errEnc)
		}
		payload[k] = wireV
	}
	_, err = c.invoke(ctx, method, payload)
	return err
}

// invoke 发起一次 Struct 进 Struct 出的一元调用。
func (c *Connector) invoke(ctx context.Context, method string, payload map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, fmt.Errorf("构造 gRPC 请求载荷失败: %w", err)
	}

	slog.Debug("远程连接器: 正在转发请求到插件", "connector", c.id, "method", method)
	resp := &structpb.Struct{}
	if err := c.rpc.Invoke(ctx, method, req, resp); err != nil {
		return nil, fmt.Errorf("gRPC 调用 %s 失败: %w", method, err)
	}
	return resp.AsMap(), nil
}

// toWire 经由 JSON 把领域对象折算成 structpb 能接受的通用形态。
// time.Time 等类型在这一步统一转成字符串。
func toWire(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromWire 把 AsMap 的通用形态还原成领域对象。
func fromWire(src any, dst any) error {
	if src == nil {
		return fmt.Errorf("插件响应缺少必要字段")
	}
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
