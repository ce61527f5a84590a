package request

import (
	"net/http"
	"strconv"
)

// ListParams holds the parsed query of a list request.
type ListParams struct {
	ClusterIdentifier string
	Status            string
	Limit             int
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ParseList extracts the filters and limit from query parameters. Invalid
// limits fall back to the default.
func ParseList(r *http.Request) ListParams {
	q := r.URL.Query()
	p := ListParams{
		ClusterIdentifier: q.Get("cluster_identifier"),
		Status:            q.Get("status"),
		Limit:             DefaultLimit,
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			p.Limit = limit
		}
	}

	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	return p
}
