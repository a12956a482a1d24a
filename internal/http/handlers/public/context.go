package public

import (
	"strconv"
	"strings"

	"github.com/ordernext/internal/http/response"

	"github.com/gin-gonic/gin"
)

const sessionTokenHeader = "X-Session-Token"

func getSessionToken(c *gin.Context) (string, bool) {
	token := strings.TrimSpace(c.GetHeader(sessionTokenHeader))
	if token == "" {
		response.BadRequest(c, "缺少会话标识")
		return "", false
	}
	return token, true
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		response.BadRequest(c, "参数 "+name+" 非法")
		return 0, false
	}
	return uint(parsed), true
}
