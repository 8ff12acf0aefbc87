package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Params holds page-based pagination extracted from a request.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// FromContext reads page and limit from the query string. A missing or
// malformed limit uses DefaultLimit; any numeric limit is clamped to
// [1, MaxLimit]. Page is at least 1 and at most the last page whose
// offset still fits in an int.
func FromContext(c echo.Context) Params {
	return New(c.QueryParam("page"), c.QueryParam("limit"))
}

func New(rawPage, rawLimit string) Params {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(rawLimit)
	if err != nil {
		limit = DefaultLimit
	}
	limit = clamp(limit, 1, MaxLimit)
	page = clamp(page, 1, math.MaxInt/limit)

	return Params{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Response wraps a paginated API response.
type Response struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func NewResponse(data interface{}, total, page, limit int) *Response {
	return &Response{Data: data, Total: total, Page: page, Limit: limit}
}
