package shared

import (
	"strconv"

	"github.com/ordernext/internal/repository"

	"github.com/gin-gonic/gin"
)

// ParsePagination 解析分页查询参数
func ParsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return repository.NormalizePagination(page, pageSize)
}
