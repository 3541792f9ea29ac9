// Package middleware file: internal/transport/http/middleware/limiter.go
package middleware

import (
	"database/sql"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/schemafx/schemafx/internal/config"
	"github.com/schemafx/schemafx/internal/service"
)

// limiterEntry 存储限制器和最后访问时间，被 RequestLimiter 的各层复用
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ============================================================================
//  请求速率限制器 (Request Rate Limiter)
// ============================================================================

// RequestLimiter 是一个统一的结构，管理全局、按IP、按用户、按应用四层速率限制。
// 按用户一层会在首次见到某个用户时读一次系统库，加载其个性化限速。
type RequestLimiter struct {
	db *sql.DB

	globalLimiter *rate.Limiter

	ipLimiters map[string]*limiterEntry
	ipMu       sync.Mutex
	ipRate     rate.Limit
	ipBurst    int

	userLimiters map[int64]*limiterEntry
	userMu       sync.Mutex
	userRate     rate.Limit
	userBurst    int

	appLimiters map[string]*limiterEntry
	appMu       sync.Mutex
	appRate     rate.Limit
	appBurst    int
}

// NewRequestLimiter 根据配置创建一个功能完备的请求速率限制器。
// db 用于加载用户的个性化限速，传 nil 时所有用户走配置默认值。
func NewRequestLimiter(db *sql.DB, cfg config.RateLimitConfig) *RequestLimiter {
	rl := &RequestLimiter{
		db: db,

		globalLimiter: rate.NewLimiter(rate.Limit(cfg.GlobalPerSecond), cfg.GlobalBurst),

		ipLimiters: make(map[string]*limiterEntry),
		ipRate:     rate.Limit(cfg.IPPerMinute / 60.0),
		ipBurst:    cfg.IPBurst,

		userLimiters: make(map[int64]*limiterEntry),
		userRate:     rate.Limit(cfg.UserPerSecond),
		userBurst:    cfg.UserBurst,

		appLimiters: make(map[string]*limiterEntry),
		appRate:     rate.Limit(cfg.AppPerSecond),
		appBurst:    cfg.AppBurst,
	}

	go rl.cleanupIPs()
	go rl.cleanupUsers()
	go rl.cleanupApps()

	log.Printf(
		"信息: [Request Limiter] 初始化完成。全局限制: %.2f req/s, 峰值: %d。IP限制: %.2f req/min, 峰值: %d",
		cfg.GlobalPerSecond, cfg.GlobalBurst, cfg.IPPerMinute, cfg.IPBurst,
	)

	return rl
}

// cleanupIPs 定期清理不活跃的IP条目
func (rl *RequestLimiter) cleanupIPs() {
	for {
		time.Sleep(10 * time.Minute)
		rl.ipMu.Lock()
		for ip, entry := range rl.ipLimiters {
			if time.Since(entry.lastSeen) > 15*time.Minute {
				delete(rl.ipLimiters, ip)
			}
		}
		rl.ipMu.Unlock()
	}
}

// cleanupUsers 定期清理不活跃的用户条目
func (rl *RequestLimiter) cleanupUsers() {
	for {
		time.Sleep(10 * time.Minute)
		rl.userMu.Lock()
		for id, entry := range rl.userLimiters {
			if time.Since(entry.lastSeen) > 15*time.Minute {
				delete(rl.userLimiters, id)
			}
		}
		rl.userMu.Unlock()
	}
}

// cleanupApps 定期清理不活跃的应用条目
func (rl *RequestLimiter) cleanupApps() {
	for {
		time.Sleep(10 * time.Minute)
		rl.appMu.Lock()
		for id, entry := range rl.appLimiters {
			if time.Since(entry.lastSeen) > 15*time.Minute {
				delete(rl.appLimiters, id)
			}
		}
		rl.appMu.Unlock()
	}
}

// ==================================================================
//  模块化的中间件方法
// ==================================================================

// Global 返回全局限制中间件
func (rl *RequestLimiter) Global() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.globalLimiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "系统繁忙，请稍后再试 (global limit)"})
		}
	}
}

// PerIP 返回IP限制中间件
func (rl *RequestLimiter) PerIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := getClientIP(c.Request)
		rl.ipMu.Lock()
		entry, exists := rl.ipLimiters[ip]
		if !exists {
			limiter := rate.NewLimiter(rl.ipRate, rl.ipBurst)
			entry = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
			rl.ipLimiters[ip] = entry
		}
		entry.lastSeen = time.Now()
		rl.ipMu.Unlock()

		if !entry.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "您的请求过于频繁，请稍后再试 (per-ip limit)"})
		}
	}
}

// PerUser 返回用户限制中间件。未认证的请求直接放行。
func (rl *RequestLimiter) PerUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := service.ClaimFrom(c.Request)
		if claims == nil {
			return
		}

		userID := claims.ID
		rl.userMu.Lock()
		entry, exists := rl.userLimiters[userID]
		if !exists {
			rateLimit, burstSize := rl.userRate, rl.userBurst // 先使用默认值
			if rl.db != nil {
				if settings, err := service.GetUserLimitSettings(c.Request.Context(), rl.db, userID); err == nil && settings != nil {
					rateLimit = rate.Limit(settings.RateLimitPerSecond)
					burstSize = settings.BurstSize
					log.Printf("调试: [Request Limiter] 为用户ID %d 加载了特定速率限制: %.2f req/s, burst %d", userID, rateLimit, burstSize)
				}
			}
			limiter := rate.NewLimiter(rateLimit, burstSize)
			entry = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
			rl.userLimiters[userID] = entry
		}
		entry.lastSeen = time.Now()
		rl.userMu.Unlock()

		if !entry.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "您的账户请求过于频繁，请稍后再试 (per-user limit)"})
		}
	}
}

// PerApp 返回应用限制中间件，按路由参数 appID 分桶。没有该参数的路由直接放行。
func (rl *RequestLimiter) PerApp() gin.HandlerFunc {
	return func(c *gin.Context) {
		appID := c.Param("appID")
		if appID == "" {
			return
		}

		rl.appMu.Lock()
		entry, exists := rl.appLimiters[appID]
		if !exists {
			limiter := rate.NewLimiter(rl.appRate, rl.appBurst)
			entry = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
			rl.appLimiters[appID] = entry
		}
		entry.lastSeen = time.Now()
		rl.appMu.Unlock()

		if !entry.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "此应用接口请求过于频繁，请稍后再试 (per-app limit)"})
		}
	}
}

// FullChain 组合了所有四个限制层，用于核心业务API。
func (rl *RequestLimiter) FullChain() gin.HandlersChain {
	// 顺序: Global -> IP -> User -> App
	return gin.HandlersChain{rl.Global(), rl.PerIP(), rl.PerUser(), rl.PerApp()}
}

// LightweightChain 组合了基础的限制层，用于公共/轻量级API。
func (rl *RequestLimiter) LightweightChain() gin.HandlersChain {
	// 顺序: Global -> IP
	return gin.HandlersChain{rl.Global(), rl.PerIP()}
}

// getClientIP 从请求中获取客户端IP地址，考虑代理情况
func getClientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	if ip != "" {
		return ip
	}
	ip = r.Header.Get("X-Real-IP")
	if ip != "" {
		return ip
	}
	ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	return ip
}

// ============================================================================
//  失败计数与临时锁定 (Failure Counting & Temporary Lockout)
// ============================================================================

// LoginFailureLock 结构体，用于实现登录失败锁定逻辑
type LoginFailureLock struct {
	failureCache    *cache.Cache
	maxFailures     int
	lockoutDuration time.Duration
}

// NewLoginFailureLock 创建一个新的登录失败锁定器
func NewLoginFailureLock(maxFailures int, lockoutDuration time.Duration) *LoginFailureLock {
	return &LoginFailureLock{
		failureCache:    cache.New(5*time.Minute, 10*time.Minute),
		maxFailures:     maxFailures,
		lockoutDuration: lockoutDuration,
	}
}

// Middleware 返回一个特殊的中间件，用于包裹登录处理器。
// 请求体通过 ShouldBindBodyWith 读取并缓存在 gin 上下文里，
// 登录处理器用同样的方式绑定即可复用，不会出现 body 已被消费的问题。
func (l *LoginFailureLock) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var probe struct {
			User string `json:"user"`
		}
		if err := c.ShouldBindBodyWith(&probe, binding.JSON); err != nil || strings.TrimSpace(probe.User) == "" {
			// 拿不到用户名就不做计数，交给登录处理器正常报错
			c.Next()
			return
		}
		username := strings.TrimSpace(probe.User)
		ip := getClientIP(c.Request)
		lockKey := "lock:" + ip + ":" + username

		if _, found := l.failureCache.Get(lockKey); found {
			log.Printf("警告: [Login Lock] 已锁定的账户 '%s' (来自IP: %s) 再次尝试登录。", username, ip)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码无效"})
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			failureKey := "failures:" + ip + ":" + username

			// Increment 在 key 不存在时返回 error，此时写入初始值 1。
			if err := l.failureCache.Increment(failureKey, int64(1)); err != nil {
				l.failureCache.Set(failureKey, int64(1), cache.DefaultExpiration)
			}

			var currentFailures int
			if x, found := l.failureCache.Get(failureKey); found {
				currentFailures = int(x.(int64)) // 从缓存取出的值需要类型断言
			}

			log.Printf("信息: [Login Failure] 账户 '%s' (来自IP: %s) 登录失败，当前失败次数: %d", username, ip, currentFailures)

			if currentFailures >= l.maxFailures {
				l.failureCache.Set(lockKey, true, l.lockoutDuration)
				l.failureCache.Delete(failureKey)
				log.Printf("警告: [Login Lock] 账户 '%s' (来自IP: %s) 已被临时锁定 %v。", username, ip, l.lockoutDuration)
			}
		case http.StatusOK:
			l.failureCache.Delete("failures:" + ip + ":" + username)
		}
	}
}
