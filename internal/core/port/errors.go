// Package port file: internal/core/port/errors.go
package port

import "errors"

// Standard errors
var (
	ErrPermissionDenied   = errors.New("权限不足，操作被拒绝")
	ErrSchemaNotFound     = errors.New("指定的应用模式未找到")
	ErrTableNotFound      = errors.New("在当前应用模式中未找到指定的表")
	ErrConnectorNotFound  = errors.New("表声明的连接器没有已注册的实例")
	ErrActionNotFound     = errors.New("在当前表中未找到指定的动作")
	ErrConnectionNotFound = errors.New("指定的外部连接未找到")
	ErrPermissionNotFound = errors.New("指定的授权记录未找到")
	ErrDuplicateConnector = errors.New("连接器 ID 重复，无法完成注册")
	ErrConnectorContract  = errors.New("连接器未实现该操作要求的能力")
	ErrRecursionLimit     = errors.New("动作递归深度超过上限")
	ErrDecryptFailed      = errors.New("字段解密失败")
)
