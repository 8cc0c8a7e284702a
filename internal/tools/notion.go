package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/pkg/notion"
)

type notionQuery struct {
	client     notion.Client
	databaseID string

	mu     sync.Mutex
	schema *notion.Schema
}

// NotionTool returns queryNotionDatabase for the given database. A nil client
// or empty database ID yields a tool that reports it is not configured.
func NotionTool(client notion.Client, databaseID string) Tool {
	q := &notionQuery{client: client, databaseID: databaseID}
	return Tool{
		Name:        "queryNotionDatabase",
		Description: "Query the team's Notion database. Optionally filter on one property; text properties match by substring, select, status, checkbox and number properties by equality.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filter": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"property": map[string]any{"type": "string", "description": "Property name"},
						"type": map[string]any{
							"type":        "string",
							"description": "Property type; looked up from the database when omitted",
							"enum":        []string{"title", "rich_text", "url", "email", "phone_number", "select", "status", "checkbox", "number"},
						},
						"value": map[string]any{"description": "Value to match"},
					},
					"required": []string{"property", "value"},
				},
				"pageSize": map[string]any{"type": "integer", "description": "Maximum rows (default 10, max 100)"},
			},
		},
		Execute: q.execute,
	}
}

// resolve returns the database schema, fetching it once per process.
func (q *notionQuery) resolve(ctx context.Context) (*notion.Schema, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.schema != nil {
		return q.schema, nil
	}
	s, err := notion.ResolveDatabase(ctx, q.client, q.databaseID)
	if err != nil {
		return nil, err
	}
	q.schema = s
	return s, nil
}

func (q *notionQuery) execute(ctx context.Context, input json.RawMessage) Result {
	if q.client == nil || q.databaseID == "" {
		return fail("Notion is not configured")
	}

	var args struct {
		Filter *struct {
			Property string `json:"property"`
			Type     string `json:"type"`
			Value    any    `json:"value"`
		} `json:"filter"`
		PageSize int `json:"pageSize"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return fail("Invalid input: " + err.Error())
	}
	pageSize := clampInt(args.PageSize, 10, 1, 100)

	schema, err := q.resolve(ctx)
	if err != nil {
		zap.L().Warn("tools: resolve notion database failed", zap.String("database_id", q.databaseID), zap.Error(err))
		return fail("Failed to query Notion: " + err.Error())
	}

	req := &notionapi.DatabaseQueryRequest{PageSize: pageSize}
	if args.Filter != nil {
		propType := args.Filter.Type
		if propType == "" {
			t, known := schema.Properties[args.Filter.Property]
			if !known {
				return fail(fmt.Sprintf("Unknown property: %s", args.Filter.Property))
			}
			propType = t
		}
		f, err := notion.BuildFilter(args.Filter.Property, propType, args.Filter.Value)
		if err != nil {
			return fail(err.Error())
		}
		req.Filter = f
	}

	resp, err := q.client.QueryDatabase(ctx, schema.ID, req)
	if err != nil {
		zap.L().Warn("tools: query notion database failed", zap.String("database_id", schema.ID), zap.Error(err))
		return fail("Failed to query Notion: " + err.Error())
	}

	results := make([]map[string]any, 0, len(resp.Results))
	for _, p := range resp.Results {
		results = append(results, pageToMap(p))
	}

	return ok(Result{
		"database": schema.Title,
		"count":    len(results),
		"hasMore":  resp.HasMore,
		"results":  results,
	})
}

func pageToMap(p notionapi.Page) map[string]any {
	props := make(map[string]any, len(p.Properties))
	for name, prop := range p.Properties {
		props[name] = notion.PlainValue(prop)
	}
	return map[string]any{
		"id":             string(p.ID),
		"url":            p.URL,
		"createdTime":    p.CreatedTime.Format(time.RFC3339),
		"lastEditedTime": p.LastEditedTime.Format(time.RFC3339),
		"properties":     props,
	}
}
