package httpapi

import (
	"net/http"
	"net/url"
	"strconv"

	"spycats/pkg/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func queryInt(q url.Values, key string, fallback int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, badRequest("%s must be a positive integer", key)
	}
	return n, nil
}

// paginate slices items according to ?page= and ?page_size= and builds the
// next/previous links. A page past the end is not found.
func paginate[T any](r *http.Request, items []T) (page[T], error) {
	q := r.URL.Query()
	number, err := queryInt(q, "page", 1)
	if err != nil {
		return page[T]{}, err
	}
	size, err := queryInt(q, "page_size", defaultPageSize)
	if err != nil {
		return page[T]{}, err
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	start := (number - 1) * size
	if start > 0 && start >= len(items) {
		return page[T]{}, domain.NewError(domain.ErrNotFound, "", "", "invalid page %d", number)
	}
	end := min(start+size, len(items))

	link := func(n int) *string {
		u := *r.URL
		values := u.Query()
		values.Set("page", strconv.Itoa(n))
		values.Set("page_size", strconv.Itoa(size))
		u.RawQuery = values.Encode()
		s := u.String()
		return &s
	}
	out := page[T]{Count: len(items), Results: items[start:end]}
	if out.Results == nil {
		out.Results = []T{}
	}
	if end < len(items) {
		out.Next = link(number + 1)
	}
	if number > 1 {
		out.Previous = link(number - 1)
	}
	return out, nil
}
