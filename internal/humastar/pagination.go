package humastar

import (
	"fmt"
	"net/url"
	"strconv"
)

// Pager is implemented by response bodies that carry pagination metadata.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is an offset/limit page of items. Returned from a handler it
// produces first, prev, next and last Link headers through LinkTransformer.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Items skipped before this page"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// PaginationLinks returns Link header values for the pages around this one.
// A zero limit yields none.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	if p.Limit <= 0 {
		return nil
	}
	links := []string{pageLink(basePath, 0, p.Limit, "first")}
	if p.Offset > 0 {
		links = append(links, pageLink(basePath, max(p.Offset-p.Limit, 0), p.Limit, "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, pageLink(basePath, p.Offset+p.Limit, p.Limit, "next"))
	}
	if p.Total > 0 {
		links = append(links, pageLink(basePath, (p.Total-1)/p.Limit*p.Limit, p.Limit, "last"))
	}
	return links
}

func pageLink(basePath string, offset, limit int, rel string) string {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	return fmt.Sprintf(`<%s?%s>; rel="%s"`, basePath, q.Encode(), rel)
}
