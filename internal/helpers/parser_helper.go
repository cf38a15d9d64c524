package helpers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func StringToInt(s string) (int, error) {
	return strconv.Atoi(s)
}

// ParsePagination reads ?page= and ?limit= with the defaults used across list endpoints.
func ParsePagination(c *gin.Context) (page, limit int, err error) {
	page, err = StringToInt(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 0, 0, fmt.Errorf("invalid page number")
	}

	limit, err = StringToInt(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		return 0, 0, fmt.Errorf("invalid limit")
	}

	return page, limit, nil
}

func TotalPages(total int64, limit int) int64 {
	return (total + int64(limit) - 1) / int64(limit)
}

func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}
