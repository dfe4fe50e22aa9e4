package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response envelope shared by every endpoint.
// code 0 means success; non-zero codes are app-level error codes.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// FailData is Fail with an extra payload, used for quota rejections that
// carry remaining/required amounts.
func FailData(c *gin.Context, httpStatus int, code int, msg string, data any) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    data,
	})
}
