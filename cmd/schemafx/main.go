// file: cmd/schemafx/main.go

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schemafx/schemafx/internal/adapter/connector/file"
	"github.com/schemafx/schemafx/internal/adapter/connector/memory"
	"github.com/schemafx/schemafx/internal/adapter/connector/remote"
	"github.com/schemafx/schemafx/internal/adapter/connector/sqlite"
	"github.com/schemafx/schemafx/internal/config"
	"github.com/schemafx/schemafx/internal/core/port"
	"github.com/schemafx/schemafx/internal/fieldcrypt"
	"github.com/schemafx/schemafx/internal/observe"
	"github.com/schemafx/schemafx/internal/queryengine"
	"github.com/schemafx/schemafx/internal/service"
	"github.com/schemafx/schemafx/internal/service/connection"
	"github.com/schemafx/schemafx/internal/service/data"
	"github.com/schemafx/schemafx/internal/service/permission"
	"github.com/schemafx/schemafx/internal/service/schema_config"
	"github.com/schemafx/schemafx/internal/store"
	"github.com/schemafx/schemafx/internal/transport/http/middleware"
	"github.com/schemafx/schemafx/internal/transport/http/router"
)

const version = "v0.3.0"

func main() {
	// 在日志系统完全初始化前，使用标准 log
	log.Printf("SchemaFX %s 正在启动...", version)

	configPath := flag.String("config", "", "配置文件路径，留空时在 ./configs 和当前目录查找 config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("CRITICAL: 加载配置失败: %v", err)
	}

	observe.InitLogger(cfg.Server.LogLevel)
	slog.Info("SchemaFX starting up", "version", version)
	slog.Info("配置加载并解析成功", "data_dir", cfg.DataDir)

	if cfg.Auth.JWTSecret != "" {
		service.SetSigningKey(cfg.Auth.JWTSecret)
	}
	service.SetTokenTTL(cfg.Auth.TokenTTL)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("CRITICAL: 创建数据目录 '%s' 失败: %v", cfg.DataDir, err)
	}

	sysDB, err := store.Open(filepath.Join(cfg.DataDir, "system.db"))
	if err != nil {
		log.Fatalf("CRITICAL: 打开系统数据库失败: %v", err)
	}
	defer func() {
		slog.Info("正在关闭系统数据库连接...")
		if err := sysDB.Close(); err != nil {
			slog.Error("关闭系统数据库时发生错误", "error", err)
		}
	}()

	if err := store.EnsureTables(sysDB); err != nil {
		log.Fatalf("CRITICAL: 初始化平台系统表失败: %v", err)
	}

	ctx := context.Background()
	closers := make([]io.Closer, 0)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				slog.Error("关闭适配器时发生错误", "error", err)
			}
		}
	}()

	// --- 连接器装配 ---
	sqliteConn, err := sqlite.New(ctx, "sqlite", "本地 SQLite 库", filepath.Join(cfg.DataDir, "apps.db"))
	if err != nil {
		log.Fatalf("CRITICAL: 初始化 SQLite 连接器失败: %v", err)
	}
	closers = append(closers, sqliteConn)

	fileConn, err := file.New("file", "文件连接器", filepath.Join(cfg.DataDir, "tables"))
	if err != nil {
		log.Fatalf("CRITICAL: 初始化文件连接器失败: %v", err)
	}
	closers = append(closers, fileConn)

	connectors := []port.Connector{
		memory.New("memory", "内存连接器"),
		fileConn,
		sqliteConn,
	}
	for _, rc := range cfg.Connectors.Remotes {
		remoteConn, err := remote.New(rc.ID, rc.Name, rc.Address)
		if err != nil {
			log.Fatalf("CRITICAL: 接入远程连接器 '%s' (%s) 失败: %v", rc.ID, rc.Address, err)
		}
		closers = append(closers, remoteConn)
		connectors = append(connectors, remoteConn)
		slog.Info("连接器: 远程实例已接入", "id", rc.ID, "address", rc.Address)
	}
	slog.Info("连接器装配完成", "count", len(connectors))

	// --- 服务层装配 ---
	schemas, err := schema_config.NewService(sqliteConn, cfg.Cache.SchemaEntries, cfg.Cache.SchemaTTL)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化模式配置服务失败: %v", err)
	}
	slog.Info("服务层: 模式配置服务初始化完成")

	// 表文件被外部改动后整体失效模式缓存，下次读取重新编译校验器
	if err := fileConn.StartWatcher(func(relPath string) {
		slog.Info("文件连接器报告表文件变更，失效模式缓存", "path", relPath)
		schemas.InvalidateAll()
	}); err != nil {
		slog.Warn("启动文件监视器失败，外部文件改动将不会失效缓存", "error", err)
	}

	perms, err := permission.NewService(sysDB, cfg.Cache.PermissionTTL)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化权限服务失败: %v", err)
	}
	connRegistry, err := connection.NewRegistry(sysDB, cfg.Cache.ConnectionTTL)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化连接注册表失败: %v", err)
	}
	slog.Info("服务层: 权限服务与连接注册表初始化完成")

	codec := fieldcrypt.New(cfg.Engine.EncryptionKey)
	engine, err := queryengine.New(queryengine.Options{
		DSN:         cfg.Engine.DSN,
		Codec:       codec,
		Connections: connRegistry,
	})
	if err != nil {
		log.Fatalf("CRITICAL: 初始化查询引擎失败: %v", err)
	}
	closers = append(closers, engine)
	slog.Info("服务层: 查询引擎初始化完成", "encryption", codec.Enabled())

	dataSvc, err := data.NewService(schemas, engine, codec, connectors, data.Options{
		MaxActionDepth: cfg.Actions.MaxDepth,
		AuditDB:        sysDB,
	})
	if err != nil {
		log.Fatalf("CRITICAL: 初始化数据服务失败: %v", err)
	}
	slog.Info("服务层: 数据服务初始化完成", "connectors", dataSvc.ConnectorIDs())

	limiter := middleware.NewRequestLimiter(sysDB, cfg.RateLimit)
	loginLock := middleware.NewLoginFailureLock(5, 15*time.Minute)
	slog.Info("服务层: 速率限制器初始化完成")

	// --- 首次安装令牌 ---
	var setupToken string
	var setupTokenDeadline time.Time
	if service.UserCount(sysDB) == 0 {
		setupToken = genSetupToken()
		setupTokenDeadline = time.Now().Add(30 * time.Minute)
		slog.Warn("系统中无管理员，安装令牌已生成 (30分钟内有效)", "setup_token", setupToken)
	}

	httpRouter := router.New(router.Dependencies{
		Data:               dataSvc,
		Permissions:        perms,
		Connections:        connRegistry,
		AuthDB:             sysDB,
		Limiter:            limiter,
		LoginLock:          loginLock,
		CORSOrigins:        cfg.Server.CORSOrigins,
		SetupToken:         setupToken,
		SetupTokenDeadline: setupTokenDeadline,
	})
	slog.Info("传输层: HTTP 路由器创建完成。")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: httpRouter,
	}

	go func() {
		slog.Info("SchemaFX 启动成功，开始监听HTTP请求...", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP服务启动失败", "error", err)
			os.Exit(1)
		}
	}()

	if cfg.Server.PprofAddr != "" {
		observe.EnablePprof(cfg.Server.PprofAddr)
	}
	observe.Register()
	slog.Info("监控: metrics 已注册。")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("收到停机信号，准备优雅关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP服务优雅关闭失败", "error", err)
		os.Exit(1)
	}

	slog.Info("HTTP服务已成功关闭。")
	slog.Info("程序即将退出。")
}

// genSetupToken 生成一次性的安装令牌
func genSetupToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback_token_generation_failed"
	}
	return hex.EncodeToString(b)
}
