package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dateOnly = "2006-01-02"

// PageDefaults are the fallbacks for absent page/size query parameters.
type PageDefaults struct {
	Size int
}

func (d PageDefaults) parse(c *gin.Context) (usecase.PageRequest, bool) {
	pr := usecase.PageRequest{Page: 0, Size: d.Size}
	if pr.Size <= 0 {
		pr.Size = 10
	}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "page", "must be an integer")
			return pr, false
		}
		pr.Page = n
	}
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "size", "must be an integer")
			return pr, false
		}
		pr.Size = n
	}
	return pr, true
}

// queryTime parses an RFC 3339 timestamp or a bare date. A bare date means
// the start of that day, or its last instant when endOfDay is set.
func queryTime(c *gin.Context, name string, endOfDay bool) (*time.Time, bool) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		t = t.UTC()
		return &t, true
	}
	t, err := time.Parse(dateOnly, v)
	if err != nil {
		badRequest(c, name, "must be RFC 3339 or YYYY-MM-DD")
		return nil, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return &t, true
}

func queryDecimal(c *gin.Context, name string) (*decimal.Decimal, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		badRequest(c, name, "must be a decimal number")
		return nil, false
	}
	return &d, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id", "must be a positive integer")
		return 0, false
	}
	return id, true
}
