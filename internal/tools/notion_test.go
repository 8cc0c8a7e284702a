package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	notionmocks "github.com/sells-group/dashboard-api/pkg/notion/mocks"
)

func execNotion(t *testing.T, tool Tool, input string) map[string]any {
	t.Helper()
	var out map[string]any
	raw := Set{tool}.Execute(context.Background(), tool.Name, json.RawMessage(input))
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func testDatabase() *notionapi.Database {
	return &notionapi.Database{
		ID:    "db-canonical",
		Title: []notionapi.RichText{{PlainText: "Leads"}},
		Properties: notionapi.PropertyConfigs{
			"Name":   &notionapi.TitlePropertyConfig{Type: notionapi.PropertyConfigType("title")},
			"Status": &notionapi.StatusPropertyConfig{Type: notionapi.PropertyConfigType("status")},
		},
	}
}

func TestNotionTool_NotConfigured(t *testing.T) {
	out := execNotion(t, NotionTool(nil, ""), `{}`)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Notion is not configured", out["error"])

	client := notionmocks.NewMockClient(t)
	out = execNotion(t, NotionTool(client, ""), `{}`)
	assert.Equal(t, false, out["success"])
}

func TestNotionTool_QueryWithoutFilter(t *testing.T) {
	client := notionmocks.NewMockClient(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	client.On("GetDatabase", mock.Anything, "db-1").Return(testDatabase(), nil).Once()
	client.On("QueryDatabase", mock.Anything, "db-canonical", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.PageSize == 10 && req.Filter == nil
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{
			ID:             "page-1",
			URL:            "https://notion.so/page-1",
			CreatedTime:    created,
			LastEditedTime: created,
			Properties: notionapi.Properties{
				"Name":   &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: "Acme"}}},
				"Status": &notionapi.StatusProperty{Status: notionapi.Status{Name: "Active"}},
			},
		}},
		HasMore: true,
	}, nil).Twice()

	tool := NotionTool(client, "db-1")
	out := execNotion(t, tool, `{}`)

	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Leads", out["database"])
	assert.Equal(t, float64(1), out["count"])
	assert.Equal(t, true, out["hasMore"])

	results := out["results"].([]any)
	require.Len(t, results, 1)
	row := results[0].(map[string]any)
	assert.Equal(t, "page-1", row["id"])
	assert.Equal(t, "https://notion.so/page-1", row["url"])
	assert.Equal(t, "2025-01-02T03:04:05Z", row["createdTime"])
	assert.Equal(t, map[string]any{"Name": "Acme", "Status": "Active"}, row["properties"])

	// The schema is resolved once and reused.
	execNotion(t, tool, `{}`)
}

func TestNotionTool_FilterTypeFromSchema(t *testing.T) {
	client := notionmocks.NewMockClient(t)
	client.On("GetDatabase", mock.Anything, "db-1").Return(testDatabase(), nil).Once()
	client.On("QueryDatabase", mock.Anything, "db-canonical", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && req.PageSize == 100 &&
			pf.Property == "Status" && pf.Status != nil && pf.Status.Equals == "Active"
	})).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()

	out := execNotion(t, NotionTool(client, "db-1"),
		`{"filter":{"property":"Status","value":"Active"},"pageSize":500}`)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(0), out["count"])
}

func TestNotionTool_ExplicitTextFilter(t *testing.T) {
	client := notionmocks.NewMockClient(t)
	client.On("GetDatabase", mock.Anything, "db-1").Return(testDatabase(), nil).Once()
	client.On("QueryDatabase", mock.Anything, "db-canonical", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return ok && pf.Property == "Website" && pf.RichText != nil && pf.RichText.Contains == "acme"
	})).Return(&notionapi.DatabaseQueryResponse{}, nil).Once()

	out := execNotion(t, NotionTool(client, "db-1"),
		`{"filter":{"property":"Website","type":"url","value":"acme"}}`)
	assert.Equal(t, true, out["success"])
}

func TestNotionTool_Failures(t *testing.T) {
	t.Run("unknown property", func(t *testing.T) {
		client := notionmocks.NewMockClient(t)
		client.On("GetDatabase", mock.Anything, "db-1").Return(testDatabase(), nil).Once()

		out := execNotion(t, NotionTool(client, "db-1"), `{"filter":{"property":"Owner","value":"x"}}`)
		assert.Equal(t, false, out["success"])
		assert.Equal(t, "Unknown property: Owner", out["error"])
	})

	t.Run("resolve fails and is retried next call", func(t *testing.T) {
		client := notionmocks.NewMockClient(t)
		client.On("GetDatabase", mock.Anything, "db-1").Return(nil, errors.New("unauthorized")).Twice()

		tool := NotionTool(client, "db-1")
		out := execNotion(t, tool, `{}`)
		assert.Equal(t, false, out["success"])
		assert.Contains(t, out["error"], "unauthorized")
		execNotion(t, tool, `{}`)
	})

	t.Run("query fails", func(t *testing.T) {
		client := notionmocks.NewMockClient(t)
		client.On("GetDatabase", mock.Anything, "db-1").Return(testDatabase(), nil).Once()
		client.On("QueryDatabase", mock.Anything, "db-canonical", mock.Anything).Return(nil, errors.New("rate limited")).Once()

		out := execNotion(t, NotionTool(client, "db-1"), `{}`)
		assert.Equal(t, false, out["success"])
		assert.Contains(t, out["error"], "rate limited")
	})
}
