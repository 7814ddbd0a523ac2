package handlers

import (
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"markbox/internal/ordering"
)

// PageInfo описывает текущую страницу списка.
type PageInfo struct {
	Number        int    `json:"number"`
	NumPages      int    `json:"num_pages"`
	Count         int64  `json:"count"`
	HasPrevious   bool   `json:"has_previous"`
	HasNext       bool   `json:"has_next"`
	PreviousQuery string `json:"previous_query,omitempty"`
	NextQuery     string `json:"next_query,omitempty"`
	FirstQuery    string `json:"first_query"`
	LastQuery     string `json:"last_query"`
	// FirstID и LastID относятся к текущей странице, а не ко всему списку.
	FirstID string `json:"first_id,omitempty"`
	LastID  string `json:"last_id,omitempty"`
}

// replaceQuery копирует параметры запроса и заменяет в них field на value.
func replaceQuery(query url.Values, field, value string) string {
	q := make(url.Values, len(query))
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(field, value)
	return q.Encode()
}

func pageNumber(c *gin.Context) int {
	return ordering.ParsePage(c.Query("page"))
}

func pageInfo[T any](c *gin.Context, p ordering.Page[T], id func(T) string) PageInfo {
	query := c.Request.URL.Query()
	info := PageInfo{
		Number:      p.Number,
		NumPages:    p.NumPages,
		Count:       p.Count,
		HasPrevious: p.HasPrevious,
		HasNext:     p.HasNext,
		FirstQuery:  replaceQuery(query, "page", "1"),
		LastQuery:   replaceQuery(query, "page", "last"),
	}
	if p.HasPrevious {
		info.PreviousQuery = replaceQuery(query, "page", strconv.Itoa(p.Number-1))
	}
	if p.HasNext {
		info.NextQuery = replaceQuery(query, "page", strconv.Itoa(p.Number+1))
	}
	if n := len(p.Records); n > 0 {
		info.FirstID = id(p.Records[0])
		info.LastID = id(p.Records[n-1])
	}
	return info
}
