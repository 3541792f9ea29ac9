// file: internal/transport/http/router/router.go
package router

import (
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/schemafx/schemafx/internal/core/domain"
	"github.com/schemafx/schemafx/internal/core/port"
	"github.com/schemafx/schemafx/internal/observe"
	"github.com/schemafx/schemafx/internal/service"
	"github.com/schemafx/schemafx/internal/service/connection"
	"github.com/schemafx/schemafx/internal/transport/http/middleware"
)

// maxQueryLimit 是单次查询允许返回的最大行数，超过时在传输层截断。
const maxQueryLimit = 2000

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Data               port.DataService
	Permissions        port.PermissionService
	Connections        *connection.Registry
	AuthDB             *sql.DB
	Limiter            *middleware.RequestLimiter
	LoginLock          *middleware.LoginFailureLock
	CORSOrigins        []string
	SetupToken         string
	SetupTokenDeadline time.Time
}

// New 创建并配置一个全新的、基于 Gin 的 HTTP 路由器
func New(deps Dependencies) http.Handler {
	router := gin.Default()

	// --- 配置全局中间件 ---
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(observe.PrometheusMiddleware())
	router.Use(middleware.ErrorHandlingMiddleware())

	// --- 运维端点，不做认证和限流 ---
	router.GET("/healthz", healthzHandler(deps.AuthDB))
	router.GET("/metrics", gin.WrapH(observe.Handler()))

	authService := service.NewAuthenticator(deps.AuthDB)
	v1 := router.Group("/api/v1")
	{
		// --- 系统/认证平面 (System/Auth Plane) ---
		authGroup := v1.Group("/auth")
		authGroup.Use(deps.Limiter.LightweightChain()...)
		{
			authGroup.POST("/login", deps.LoginLock.Middleware(), loginHandler(deps.AuthDB))
			authGroup.POST("/register", registerHandler(deps.AuthDB))
		}
		systemGroup := v1.Group("/system")
		systemGroup.Use(deps.Limiter.LightweightChain()...)
		{
			systemGroup.Any("/setup", setupHandler(deps.AuthDB, deps.SetupToken, deps.SetupTokenDeadline))
			systemGroup.GET("/status", statusHandler(deps.AuthDB))
		}

		// --- 模式平面 (Schema Plane) ---
		schemaGroup := v1.Group("/schemas")
		schemaGroup.Use(deps.Limiter.FullChain()...)
		schemaGroup.Use(authMiddleware(authService))
		{
			schemaGroup.GET("/:appID", requirePermission(deps.Permissions, domain.LevelRead), getSchemaHandler(deps.Data))
			schemaGroup.PUT("/:appID", requirePermission(deps.Permissions, domain.LevelAdmin), putSchemaHandler(deps.Data))
		}

		// --- 数据平面 (Data Plane) ---
		dataGroup := v1.Group("/data")
		dataGroup.Use(deps.Limiter.FullChain()...)
		dataGroup.Use(authMiddleware(authService))
		{
			dataGroup.POST("/:appID/:tableID/query", requirePermission(deps.Permissions, domain.LevelRead), queryDataHandler(deps.Data))
			dataGroup.POST("/:appID/:tableID/actions/:actionID", requirePermission(deps.Permissions, domain.LevelWrite), executeActionHandler(deps.Data))
		}

		// --- 控制平面 (Control Plane)，仅限管理员 ---
		permGroup := v1.Group("/permissions")
		permGroup.Use(deps.Limiter.Global(), deps.Limiter.PerIP(), deps.Limiter.PerUser())
		permGroup.Use(authMiddleware(authService), requireAdmin())
		{
			permGroup.GET("", listPermissionsHandler(deps.Permissions))
			permGroup.POST("", grantPermissionHandler(deps.Permissions))
			permGroup.PUT("/:id/move", movePermissionHandler(deps.Permissions))
			permGroup.DELETE("/:id", revokePermissionHandler(deps.Permissions))
		}

		connGroup := v1.Group("/connections")
		connGroup.Use(deps.Limiter.Global(), deps.Limiter.PerIP(), deps.Limiter.PerUser())
		connGroup.Use(authMiddleware(authService), requireAdmin())
		{
			connGroup.GET("", listConnectionsHandler(deps.Connections))
			connGroup.POST("", registerConnectionHandler(deps.Connections))
			connGroup.PUT("/:id", updateConnectionHandler(deps.Connections))
			connGroup.DELETE("/:id", removeConnectionHandler(deps.Connections))
		}

		adminGroup := v1.Group("/admin")
		adminGroup.Use(deps.Limiter.Global(), deps.Limiter.PerIP(), deps.Limiter.PerUser())
		adminGroup.Use(authMiddleware(authService), requireAdmin())
		{
			userGroup := adminGroup.Group("/users")
			{
				userGroup.GET("", listUsersHandler(deps.AuthDB))
				userGroup.POST("", createUserHandler(deps.AuthDB))
				userGroup.PUT("/:id/role", updateUserRoleHandler(deps.AuthDB))
				userGroup.PUT("/:id/rate-limit", updateUserLimitHandler(deps.AuthDB))
				userGroup.DELETE("/:id", deleteUserHandler(deps.AuthDB))
			}
		}
	}

	return router
}

// =============================================================================
//  Gin 中间件 (Middleware)
// =============================================================================

// authMiddleware 是一个将 service.Authenticator 集成到 gin 流程的中间件
func authMiddleware(auth *service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		}))
		handler.ServeHTTP(c.Writer, c.Request)
		if c.Writer.Written() {
			c.Abort()
		}
	}
}

// requireAdmin 是一个确保只有管理员角色才能访问的中间件
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := service.ClaimFrom(c.Request)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "需要认证"})
			return
		}
		if claims.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "需要管理员权限"})
			return
		}
		c.Next()
	}
}

// requirePermission 按路由中的 appID 检查调用者在该应用上的访问级别。
// 管理员角色天然放行，其余身份查询授权记录。
func requirePermission(perms port.PermissionService, level domain.PermissionLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := service.ClaimFrom(c.Request)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "需要认证"})
			return
		}
		if claims.Role == "admin" {
			c.Next()
			return
		}

		target := domain.Target{Type: domain.TargetApp, ID: c.Param("appID")}
		ok, err := perms.HasPermission(c.Request.Context(), target, claims.Email, level)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "权限不足"})
			return
		}
		c.Next()
	}
}

// =============================================================================
//  模式平面处理器 (Schema Plane Handlers)
// =============================================================================

// getSchemaHandler 返回指定应用的完整模式文档
func getSchemaHandler(data port.DataService) gin.HandlerFunc {
	return func(c *gin.Context) {
		schema, err := data.GetSchema(c.Request.Context(), c.Param("appID"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": schema})
	}
}

// putSchemaHandler 对指定应用执行一次模式编辑
func putSchemaHandler(data port.DataService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var edit port.SchemaMutation
		if err := c.ShouldBindJSON(&edit); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}

		schema, err := data.MutateSchema(c.Request.Context(), c.Param("appID"), edit)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if schema == nil {
			// 整个模式已删除
			c.JSON(http.StatusOK, gin.H{"status": "success"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": schema})
	}
}

// =============================================================================
//  数据平面处理器 (Data Plane Handlers)
// =============================================================================

// queryDataHandler 处理声明式数据查询请求。空请求体按无条件查询处理。
func queryDataHandler(data port.DataService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var spec domain.QuerySpec
		if err := c.ShouldBindJSON(&spec); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体: " + err.Error()})
			return
		}
		if spec.Limit > maxQueryLimit {
			spec.Limit = maxQueryLimit
		}

		rows, err := data.QueryData(c.Request.Context(), c.Param("appID"), c.Param("tableID"), &spec)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if rows == nil {
			rows = []domain.Row{}
		}
		c.JSON(http.StatusOK, gin.H{"data": rows, "count": len(rows)})
	}
}

// executeActionHandler 执行表上声明的动作
func executeActionHandler(data port.DataService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload struct {
			Rows []domain.Row `json:"rows"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体: " + err.Error()})
			return
		}

		appID, tableID, actionID := c.Param("appID"), c.Param("tableID"), c.Param("actionID")
		claims := service.ClaimFrom(c.Request)
		log.Printf("审计日志: 用户 '%s' 正在对应用 '%s' 的表 '%s' 执行动作 '%s'。", claims.Email, appID, tableID, actionID)

		if err := data.ExecuteAction(c.Request.Context(), appID, tableID, actionID, payload.Rows); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

// =============================================================================
//  系统与认证处理器
// =============================================================================

// healthzHandler 返回进程健康状态，系统库不可达时报 503
func healthzHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// statusHandler 返回系统状态，用于前端判断是否需要进入安装流程
func statusHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if service.UserCount(db) > 0 {
			c.JSON(http.StatusOK, gin.H{"status": "ready_for_login"})
		} else {
			c.JSON(http.StatusOK, gin.H{"status": "needs_setup"})
		}
	}
}

// loginHandler 处理用户登录请求。
// 请求体用 ShouldBindBodyWith 读取，和外层的登录失败锁定中间件共享缓存的 body。
func loginHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			User string `json:"user" binding:"required"`
			Pass string `json:"pass" binding:"required"`
		}
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "用户名或密码不能为空"})
			return
		}
		id, role, ok := service.CheckUser(db, req.User, req.Pass)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码无效"})
			return
		}
		token, err := service.GenToken(id, req.User, role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "生成令牌失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": gin.H{"id": id, "email": req.User, "role": role}})
	}
}

// registerHandler 处理自助注册，新账户一律是只读的 viewer 角色
func registerHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			User string `json:"user" binding:"required"`
			Pass string `json:"pass" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "用户名或密码不能为空"})
			return
		}

		id, err := service.CreateUser(c.Request.Context(), db, req.User, req.Pass, "viewer")
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				c.JSON(http.StatusConflict, gin.H{"error": "该邮箱已被注册"})
				return
			}
			log.Printf("ERROR: [API /register] 创建账户 '%s' 失败: %v", req.User, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注册失败: " + err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "email": req.User, "role": "viewer"})
	}
}

// setupHandler 处理首次安装时的管理员创建请求
func setupHandler(db *sql.DB, token string, deadline time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			if service.UserCount(db) > 0 {
				c.JSON(http.StatusForbidden, gin.H{"error": "系统已安装，无法获取安装令牌"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
			return
		}

		if c.Request.Method == http.MethodPost {
			if service.UserCount(db) > 0 {
				c.JSON(http.StatusForbidden, gin.H{"error": "系统已存在管理员账户，无法重复设置"})
				return
			}
			var req struct {
				Token string `json:"token" binding:"required"`
				User  string `json:"user" binding:"required"`
				Pass  string `json:"pass" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "令牌、用户名或密码不能为空"})
				return
			}
			if req.Token != token || token == "" || time.Now().After(deadline) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "无效或过期的安装令牌"})
				return
			}
			if err := service.CreateAdmin(db, req.User, req.Pass); err != nil {
				log.Printf("ERROR: [API /setup] 创建管理员 '%s' 失败: %v", req.User, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "创建管理员失败: " + err.Error()})
				return
			}
			id, _, _ := service.CheckUser(db, req.User, req.Pass)
			jwtToken, err := service.GenToken(id, req.User, "admin")
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "为新管理员生成令牌失败"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": jwtToken, "user": gin.H{"id": id, "email": req.User, "role": "admin"}})
			return
		}
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "仅支持 GET 和 POST 方法"})
	}
}

// =============================================================================
//  权限管理处理器 (Permission Handlers)
// =============================================================================

func listPermissionsHandler(perms port.PermissionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetType := c.Query("targetType")
		targetID := c.Query("targetId")
		if targetType == "" || targetID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 'targetType' 或 'targetId' 参数"})
			return
		}

		list, err := perms.ListByTarget(c.Request.Context(), domain.Target{Type: domain.TargetType(targetType), ID: targetID})
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func grantPermissionHandler(perms port.PermissionService) gin.HandlerFunc {
	type grantPayload struct {
		TargetType string `json:"targetType" binding:"required,oneof=app connection"`
		TargetID   string `json:"targetId" binding:"required"`
		Email      string `json:"email" binding:"required"`
		Level      string `json:"level" binding:"required,oneof=read write admin"`
	}

	return func(c *gin.Context) {
		var payload grantPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}

		id, err := perms.Grant(c.Request.Context(), domain.Permission{
			TargetType: domain.TargetType(payload.TargetType),
			TargetID:   payload.TargetID,
			Email:      payload.Email,
			Level:      domain.PermissionLevel(payload.Level),
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func movePermissionHandler(perms port.PermissionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的授权记录ID"})
			return
		}
		var target domain.Target
		if err := c.ShouldBindJSON(&target); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}

		if err := perms.Move(c.Request.Context(), id, target); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func revokePermissionHandler(perms port.PermissionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的授权记录ID"})
			return
		}

		if err := perms.Revoke(c.Request.Context(), id); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

// =============================================================================
//  连接管理处理器 (Connection Handlers)
// =============================================================================

func listConnectionsHandler(reg *connection.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		conns, err := reg.List(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		if conns == nil {
			conns = []domain.Connection{}
		}
		c.JSON(http.StatusOK, gin.H{"data": conns})
	}
}

func registerConnectionHandler(reg *connection.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var conn domain.Connection
		if err := c.ShouldBindJSON(&conn); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}

		id, err := reg.Register(c.Request.Context(), conn)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func updateConnectionHandler(reg *connection.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var conn domain.Connection
		if err := c.ShouldBindJSON(&conn); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}
		conn.ID = c.Param("id")

		if err := reg.Update(c.Request.Context(), conn); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func removeConnectionHandler(reg *connection.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := reg.Remove(c.Request.Context(), c.Param("id")); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

// =============================================================================
//  账户管理处理器 (User Admin Handlers)
// =============================================================================

func listUsersHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := service.ListUsers(c.Request.Context(), db)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if users == nil {
			users = []domain.User{}
		}
		c.JSON(http.StatusOK, gin.H{"data": users})
	}
}

func createUserHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			User string `json:"user" binding:"required"`
			Pass string `json:"pass" binding:"required"`
			Role string `json:"role" binding:"omitempty,oneof=admin viewer"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}
		if req.Role == "" {
			req.Role = "viewer"
		}

		id, err := service.CreateUser(c.Request.Context(), db, req.User, req.Pass, req.Role)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				c.JSON(http.StatusConflict, gin.H{"error": "该邮箱已被注册"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "创建账户失败: " + err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "email": req.User, "role": req.Role})
	}
}

func updateUserRoleHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的用户ID"})
			return
		}
		var req struct {
			Role string `json:"role" binding:"required,oneof=admin viewer"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}

		if err := service.UpdateUserRole(c.Request.Context(), db, id, req.Role); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func updateUserLimitHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的用户ID"})
			return
		}
		var settings domain.UserLimitSetting
		if err := c.ShouldBindJSON(&settings); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}

		if err := service.UpdateUserLimitSettings(c.Request.Context(), db, id, settings); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func deleteUserHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的用户ID"})
			return
		}

		if err := service.DeleteUser(c.Request.Context(), db, id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}
