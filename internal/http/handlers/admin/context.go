package admin

import (
	"strconv"

	"github.com/ordernext/internal/http/response"

	"github.com/gin-gonic/gin"
)

func getAdminID(c *gin.Context) (uint, bool) {
	value, exists := c.Get("admin_id")
	if !exists {
		response.Unauthorized(c, "未登录")
		return 0, false
	}
	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			response.BadRequest(c, "管理员 ID 非法")
			return 0, false
		}
		return uint(v), true
	default:
		response.Error(c, response.CodeInternal, "管理员 ID 类型异常")
		return 0, false
	}
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

func parseUintQuery(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		response.BadRequest(c, "参数 "+name+" 非法")
		return 0, false
	}
	return uint(parsed), true
}
