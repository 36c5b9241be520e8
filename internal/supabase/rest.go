package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Filter is a PostgREST horizontal filter, e.g. Eq("email", "a@b.c") → email=eq.a@b.c.
type Filter struct {
	Column   string
	Operator string
	Value    string
}

// Eq returns an equality filter on column.
func Eq(column, value string) Filter {
	return Filter{Column: column, Operator: "eq", Value: value}
}

func (f Filter) apply(q url.Values) {
	q.Add(f.Column, f.Operator+"."+f.Value)
}

func tablePath(table string) string {
	return "/rest/v1/" + url.PathEscape(table)
}

// Upsert inserts row into table, merging into the existing row when onConflict columns collide.
func (c *Client) Upsert(ctx context.Context, table string, row any, onConflict ...string) error {
	q := url.Values{}
	if len(onConflict) > 0 {
		q.Set("on_conflict", strings.Join(onConflict, ","))
	}
	return c.do(ctx, request{
		method:  http.MethodPost,
		path:    tablePath(table),
		query:   q,
		body:    row,
		headers: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
	}, nil)
}

// Update applies patch to every row in table matching filters and decodes the updated rows into out
// (a pointer to a slice). At least one filter is required.
func (c *Client) Update(ctx context.Context, table string, patch any, out any, filters ...Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("supabase: update on %s without filters", table)
	}
	q := url.Values{}
	for _, f := range filters {
		f.apply(q)
	}
	return c.do(ctx, request{
		method:  http.MethodPatch,
		path:    tablePath(table),
		query:   q,
		body:    patch,
		headers: map[string]string{"Prefer": "return=representation"},
	}, out)
}

// Select reads columns of rows in table matching filters into out (a pointer to a slice).
// limit <= 0 means no limit.
func (c *Client) Select(ctx context.Context, table, columns string, limit int, out any, filters ...Filter) error {
	q := url.Values{}
	if columns != "" {
		q.Set("select", columns)
	}
	for _, f := range filters {
		f.apply(q)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return c.do(ctx, request{
		method: http.MethodGet,
		path:   tablePath(table),
		query:  q,
	}, out)
}
