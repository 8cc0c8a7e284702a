package notion

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches all pages from a Notion database, handling pagination.
// Rate limiting is enforced by the Client (3 req/s by default).
// Uses prefetch: starts fetching page N+1 in a goroutine while processing
// page N.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	newReq := func(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}
		return req
	}

	type prefetchResult struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	var prefetchCh <-chan prefetchResult

	for {
		var resp *notionapi.DatabaseQueryResponse
		var err error

		if prefetchCh != nil {
			result := <-prefetchCh
			resp, err = result.resp, result.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, newReq(""))
		}

		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}

		nextReq := newReq(resp.NextCursor)
		ch := make(chan prefetchResult, 1)
		prefetchCh = ch
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, nextReq)
			ch <- prefetchResult{resp: r, err: e}
		}()
	}

	return all, nil
}

// Schema is the resolved shape of a database: its canonical ID, title and
// the type of each property.
type Schema struct {
	ID         string
	Title      string
	Properties map[string]string
}

// ResolveDatabase looks up a database and its property types. The returned
// ID is the canonical (dashed) form, which is what queries should use.
func ResolveDatabase(ctx context.Context, c Client, dbID string) (*Schema, error) {
	db, err := c.GetDatabase(ctx, dbID)
	if err != nil {
		return nil, eris.Wrap(err, "notion: resolve database")
	}

	s := &Schema{
		ID:         string(db.ID),
		Properties: make(map[string]string, len(db.Properties)),
	}
	if s.ID == "" {
		s.ID = dbID
	}
	for _, rt := range db.Title {
		s.Title += rt.PlainText
	}
	for name, cfg := range db.Properties {
		if cfg == nil {
			continue
		}
		s.Properties[name] = string(cfg.GetType())
	}
	return s, nil
}

// BuildFilter builds a single-property filter. Text-like properties match by
// substring, the rest by equality.
func BuildFilter(property, propType string, value any) (notionapi.Filter, error) {
	if property == "" {
		return nil, eris.New("notion: filter property is required")
	}

	f := notionapi.PropertyFilter{Property: property}

	switch strings.ToLower(propType) {
	case "title", "rich_text", "url", "email", "phone_number":
		f.RichText = &notionapi.TextFilterCondition{Contains: fmt.Sprint(value)}
	case "select":
		f.Select = &notionapi.SelectFilterCondition{Equals: fmt.Sprint(value)}
	case "status":
		f.Status = &notionapi.StatusFilterCondition{Equals: fmt.Sprint(value)}
	case "checkbox":
		b, err := toBool(value)
		if err != nil {
			return nil, err
		}
		f.Checkbox = &notionapi.CheckboxFilterCondition{Equals: b}
	case "number":
		n, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		f.Number = &notionapi.NumberFilterCondition{Equals: &n}
	default:
		return nil, eris.Errorf("notion: unsupported filter type %q", propType)
	}

	return f, nil
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, eris.Errorf("notion: checkbox filter value %q is not a boolean", t)
		}
		return b, nil
	}
	return false, eris.Errorf("notion: checkbox filter value %v is not a boolean", v)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, eris.Errorf("notion: number filter value %q is not a number", t)
		}
		return f, nil
	}
	return 0, eris.Errorf("notion: number filter value %v is not a number", v)
}
