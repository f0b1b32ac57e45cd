package policy

import (
	"strings"

	"github.com/raysh454/policyctl/internal/apiclient"
)

const (
	DefaultSort = "id"
	DirAsc      = "asc"
	DirDesc     = "desc"
)

// ListQuery is the search, sort and paging state of a policy listing.
type ListQuery struct {
	Q      string
	Sort   string
	Dir    string
	Limit  int
	Offset int
}

// Normalized fills in the default sort column and direction and lower-cases both.
func (q ListQuery) Normalized() ListQuery {
	q.Sort = strings.ToLower(strings.TrimSpace(q.Sort))
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	q.Dir = strings.ToLower(strings.TrimSpace(q.Dir))
	if q.Dir != DirAsc {
		q.Dir = DirDesc
	}
	return q
}

// Toggle selects column as the sort key. Clicking the current column while it
// is descending flips it to ascending; anything else sorts descending.
func (q ListQuery) Toggle(column string) ListQuery {
	cur := q.Normalized()
	column = strings.ToLower(strings.TrimSpace(column))
	next := DirDesc
	if cur.Sort == column && cur.Dir == DirDesc {
		next = DirAsc
	}
	q.Sort = column
	q.Dir = next
	return q
}

// Params renders the query for the request URL. Empty fields are omitted.
func (q ListQuery) Params() apiclient.Params {
	var q2, sort, dir, limit, offset any
	if q.Q != "" {
		q2 = q.Q
	}
	if q.Sort != "" {
		sort = q.Sort
	}
	if q.Dir != "" {
		dir = q.Dir
	}
	if q.Limit > 0 {
		limit = q.Limit
	}
	if q.Offset > 0 {
		offset = q.Offset
	}
	return apiclient.Params{
		{Key: "q", Value: q2},
		{Key: "sort", Value: sort},
		{Key: "dir", Value: dir},
		{Key: "limit", Value: limit},
		{Key: "offset", Value: offset},
	}
}
