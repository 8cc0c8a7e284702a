package tools

import (
	"github.com/sells-group/dashboard-api/pkg/firecrawl"
	"github.com/sells-group/dashboard-api/pkg/notion"
)

// Deps are the backends behind the default tools. A nil Notion or Firecrawl
// client produces a tool that reports it is not configured.
type Deps struct {
	Store            CRMStore
	Notion           notion.Client
	NotionDatabaseID string
	Firecrawl        firecrawl.Client
	WebSearchOptions []WebSearchOption
}

// Default builds the registry the chat endpoint exposes.
func Default(d Deps) *Registry {
	r := NewRegistry(CRMTools(d.Store)...)
	r.Register(NotionTool(d.Notion, d.NotionDatabaseID))
	r.Register(WebSearchTool(d.Firecrawl, d.WebSearchOptions...))
	return r
}
