package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// respondError 统一错误响应：{error: 错误码, message: 说明}，extra 追加附加字段
func respondError(c *gin.Context, status int, message string, extra ...gin.H) {
	body := gin.H{
		"error":   errorCode(status),
		"message": message,
	}
	for _, e := range extra {
		for k, v := range e {
			body[k] = v
		}
	}
	c.JSON(status, body)
}

// errorCode 由状态码得到机器可读的错误码，如 404 -> not_found
func errorCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ToLower(strings.ReplaceAll(text, " ", "_"))
}
