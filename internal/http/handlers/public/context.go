package public

import (
	"github.com/storefront-bridge/internal/constants"
	"github.com/storefront-bridge/internal/http/response"
	"github.com/storefront-bridge/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestLog 提供携带 request_id 的日志实例
func requestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// getSessionID 从上下文取会话标识（由会话中间件写入）
func getSessionID(c *gin.Context) (string, bool) {
	value, ok := c.Get(constants.SessionContextKey)
	if !ok {
		response.Unauthorized(c, "session token required")
		return "", false
	}
	sessionID, ok := value.(string)
	if !ok || sessionID == "" {
		response.Unauthorized(c, "session token invalid")
		return "", false
	}
	return sessionID, true
}
