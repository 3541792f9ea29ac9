// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/schemafx/schemafx/internal/core/port"
	"github.com/schemafx/schemafx/internal/validate"
)

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
// 处理器只需 c.Error(err) 并返回，状态码的映射全部收拢在这里。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 首先，执行请求链中的后续操作（即你的API处理器）
		c.Next()

		// c.Next() 执行完毕后，检查上下文中是否有错误
		// 处理器中通过 c.Error(err) 附加的错误都会被收集到 c.Errors
		if len(c.Errors) == 0 {
			return
		}

		// 我们只处理最后一个错误，因为它通常是根本原因
		lastError := c.Errors.Last()
		err := lastError.Err

		// 行数据校验失败：把每条违规逐条返回给调用方
		var violations validate.Violations
		if errors.As(err, &violations) {
			details := make([]gin.H, 0, len(violations))
			for _, v := range violations {
				details = append(details, gin.H{"field": v.Field, "code": v.Code, "message": v.Message})
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "数据校验失败", "violations": details})
			return
		}

		// 检查是否是参数绑定或验证错误
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数验证失败", "details": ve.Error()})
			return
		}

		// 根据我们定义的业务错误类型，返回不同的HTTP状态码
		switch {
		case errors.Is(err, port.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "权限不足"})

		case errors.Is(err, port.ErrSchemaNotFound),
			errors.Is(err, port.ErrTableNotFound),
			errors.Is(err, port.ErrConnectorNotFound),
			errors.Is(err, port.ErrActionNotFound),
			errors.Is(err, port.ErrConnectionNotFound),
			errors.Is(err, port.ErrPermissionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		case errors.Is(err, port.ErrRecursionLimit):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

		case errors.Is(err, port.ErrDuplicateConnector):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

		case errors.Is(err, port.ErrConnectorContract):
			c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})

		default:
			// 对于所有其他未知错误，返回 500 服务器内部错误
			c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		}
	}
}
