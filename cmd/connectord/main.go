// file: cmd/connectord/main.go

// connectord 把一个本地连接器以插件协议暴露为独立的 gRPC 进程，
// 内核侧通过 connectors.remotes 配置接入。
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/schemafx/schemafx/internal/adapter/connector/file"
	"github.com/schemafx/schemafx/internal/adapter/connector/memory"
	"github.com/schemafx/schemafx/internal/adapter/connector/remote"
	"github.com/schemafx/schemafx/internal/adapter/connector/sqlite"
	"github.com/schemafx/schemafx/internal/core/port"
)

const version = "v0.3.0"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})))

	portFlag := flag.Int("port", 50051, "服务监听端口")
	driverFlag := flag.String("driver", "sqlite", "连接器类型 (memory|file|sqlite)")
	pathFlag := flag.String("path", "", "数据路径: sqlite 的数据库文件或 file 的根目录")
	idFlag := flag.String("id", "connectord", "连接器注册 ID")
	nameFlag := flag.String("name", "", "连接器的人类可读名称")
	flag.Parse()

	slog.Info("🔌 连接器插件进程启动中...", "driver", *driverFlag, "id", *idFlag, "version", version, "port", *portFlag)

	conn, err := buildConnector(context.Background(), *driverFlag, *idFlag, *nameFlag, *pathFlag)
	if err != nil {
		slog.Error("构建连接器失败", "error", err)
		os.Exit(1)
	}
	if closer, ok := conn.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	srv, err := remote.NewServer(conn)
	if err != nil {
		slog.Error("创建插件服务失败", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *portFlag))
	if err != nil {
		slog.Error("gRPC 服务监听端口失败", "port", *portFlag, "error", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	srv.Register(grpcServer)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("收到停机信号，正在排空连接...")
		grpcServer.GracefulStop()
	}()

	slog.Info("✅ 连接器插件启动成功，开始提供服务...")
	if err := grpcServer.Serve(lis); err != nil {
		slog.Error("gRPC 服务启动失败", "error", err)
		os.Exit(1)
	}
	slog.Info("插件进程已退出。")
}

// buildConnector 按 driver 装配要暴露的连接器。
func buildConnector(ctx context.Context, driver, id, name, path string) (port.Connector, error) {
	switch driver {
	case "memory":
		return memory.New(id, name), nil
	case "file":
		if path == "" {
			return nil, fmt.Errorf("file 连接器需要 -path 指定根目录")
		}
		return file.New(id, name, path)
	case "sqlite":
		if path == "" {
			return nil, fmt.Errorf("sqlite 连接器需要 -path 指定数据库文件")
		}
		return sqlite.New(ctx, id, name, path)
	default:
		return nil, fmt.Errorf("未知的连接器类型: %q (支持 memory|file|sqlite)", driver)
	}
}
