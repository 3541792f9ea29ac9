// Package domain file: internal/core/domain/permission.go
package domain

// TargetType 是权限目标的类型：应用或外部连接。
type TargetType string

const (
	TargetApp        TargetType = "app"
	TargetConnection TargetType = "connection"
)

// PermissionLevel 是访问级别，高级别覆盖低级别。
type PermissionLevel string

const (
	LevelRead  PermissionLevel = "read"
	LevelWrite PermissionLevel = "write"
	LevelAdmin PermissionLevel = "admin"
)

func (l PermissionLevel) rank() int {
	switch l {
	case LevelRead:
		return 1
	case LevelWrite:
		return 2
	case LevelAdmin:
		return 3
	}
	return 0
}

// Covers 判断当前级别是否满足所需级别。
func (l PermissionLevel) Covers(want PermissionLevel) bool {
	return l.rank() >= want.rank() && want.rank() > 0
}

// Permission 是一条授权记录：给某个邮箱在某个目标上授予某个级别。
type Permission struct {
	ID         int64           `json:"id"`
	TargetType TargetType      `json:"targetType"`
	TargetID   string          `json:"targetId"`
	Email      string          `json:"email"`
	Level      PermissionLevel `json:"level"`
}

// Target 是权限作用域的 (类型, ID) 组合，也是权限缓存的键。
type Target struct {
	Type TargetType `json:"type"`
	ID   string     `json:"id"`
}
