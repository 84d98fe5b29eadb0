package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ListOptions carries the generic list parameters exposed by the admin API.
type ListOptions struct {
	SortKey string
	Limit   int
}

// TranslateSortKey maps an API sort key onto an ORDER BY fragment. A leading
// '-' selects descending order, otherwise ascending. Columns must be listed
// in allowed; the map also resolves legacy aliases (created_date is accepted
// wherever created_at is).
func TranslateSortKey(key string, allowed map[string]string) (string, error) {
	if key == "" {
		return "", errors.New("empty sort key")
	}
	direction := "ASC"
	if strings.HasPrefix(key, "-") {
		direction = "DESC"
		key = key[1:]
	}
	column, ok := allowed[key]
	if !ok {
		return "", fmt.Errorf("unsupported sort key %q", key)
	}
	return column + " " + direction, nil
}

// orderClause resolves opts against allowed, falling back to fallback when no
// sort key was supplied. An unknown key is an error rather than silently
// ignored: sort keys come straight from query strings.
func orderClause(opts ListOptions, allowed map[string]string, fallback string) (string, error) {
	if opts.SortKey == "" {
		return fallback, nil
	}
	return TranslateSortKey(opts.SortKey, allowed)
}
