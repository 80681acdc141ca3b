package service

import (
	"strings"

	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
)

// Filter keeps the items where any field contains query, ignoring case. The
// query is trimmed and one leading '#' is dropped; an empty query returns
// items unchanged.
func Filter[T any](items []T, query string, fields func(T) []string) []T {
	q := normalizeQuery(query)
	if q == "" {
		return items
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		for _, f := range fields(item) {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func normalizeQuery(query string) string {
	q := strings.TrimPrefix(strings.TrimSpace(query), "#")
	return strings.ToLower(strings.TrimSpace(q))
}

// searchPage filters the whole ordered set before cutting the requested
// window, so a page of search results is never short while later rows match.
// load must return every row when asked for limit 0.
func searchPage[T any](query string, limit, offset int, fields func(T) []string, load func(limit, offset int) ([]T, error)) ([]T, error) {
	if normalizeQuery(query) == "" {
		return load(limit, offset)
	}
	all, err := load(0, 0)
	if err != nil {
		return nil, err
	}
	return Paginate(Filter(all, query, fields), limit, offset), nil
}

// Paginate returns items[offset:offset+limit]. A non-positive limit keeps the rest.
func Paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// MediaFields searches title, description and tags.
func MediaFields(item models.MediaItem) []string {
	return item.SearchFields()
}

// ProfileFields searches username and full name.
func ProfileFields(p *models.Profile) []string {
	return []string{p.Username, p.FullName}
}
