// Package domain file: internal/core/domain/user.go
package domain

// User 是平台账户。密码散列只在服务层出现，不随 User 外传。
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserLimitSetting 是单个用户的个性化速率限制，字段为空时走全局默认值。
type UserLimitSetting struct {
	RateLimitPerSecond float64 `json:"rate_limit_per_second"`
	BurstSize          int     `json:"burst_size"`
}
