package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/model"
	"github.com/sells-group/dashboard-api/internal/store"
)

// CRMStore is the slice of the datastore the CRM tools read.
type CRMStore interface {
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	ListContacts(ctx context.Context, page store.Page) ([]model.Contact, int, error)
	SearchContacts(ctx context.Context, query string, limit int) ([]model.Contact, error)
}

// Failure reasons for getContact.
const (
	ReasonNotFound       = "not_found"
	ReasonDatastoreError = "datastore_error"
)

// CRMTools returns searchContacts, getContact and listContacts.
func CRMTools(s CRMStore) []Tool {
	return []Tool{
		{
			Name:        "searchContacts",
			Description: "Search CRM contacts by name, email, company or role. Matching is case-insensitive and partial.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Text to look for"},
					"limit": map[string]any{"type": "integer", "description": "Maximum results (default 10, max 50)"},
				},
				"required": []string{"query"},
			},
			Execute: func(ctx context.Context, input json.RawMessage) Result {
				return searchContacts(ctx, s, input)
			},
		},
		{
			Name:        "getContact",
			Description: "Get a single CRM contact by ID.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{"type": "string", "description": "Contact ID"},
				},
				"required": []string{"id"},
			},
			Execute: func(ctx context.Context, input json.RawMessage) Result {
				return getContact(ctx, s, input)
			},
		},
		{
			Name:        "listContacts",
			Description: "List CRM contacts alphabetically by name, one page at a time.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit":  map[string]any{"type": "integer", "description": "Page size (default 20, max 100)"},
					"offset": map[string]any{"type": "integer", "description": "Rows to skip (default 0)"},
				},
			},
			Execute: func(ctx context.Context, input json.RawMessage) Result {
				return listContacts(ctx, s, input)
			},
		},
	}
}

func searchContacts(ctx context.Context, s CRMStore, input json.RawMessage) Result {
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return fail("Invalid input: " + err.Error())
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return fail("query is required")
	}
	limit := clampInt(args.Limit, 10, 1, 50)

	contacts, err := s.SearchContacts(ctx, query, limit)
	if err != nil {
		zap.L().Warn("tools: search contacts failed", zap.String("query", query), zap.Error(err))
		return fail("Failed to search contacts: " + err.Error())
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}

	return ok(Result{"count": len(contacts), "contacts": contacts})
}

func getContact(ctx context.Context, s CRMStore, input json.RawMessage) Result {
	var args struct {
		ID string `json:"id"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return fail("Invalid input: " + err.Error())
	}
	id := strings.TrimSpace(args.ID)
	if id == "" {
		return fail("id is required")
	}

	c, err := s.GetContact(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return failReason("Contact not found", ReasonNotFound)
	}
	if err != nil {
		zap.L().Warn("tools: get contact failed", zap.String("id", id), zap.Error(err))
		return failReason(err.Error(), ReasonDatastoreError)
	}

	return ok(Result{"contact": c})
}

func listContacts(ctx context.Context, s CRMStore, input json.RawMessage) Result {
	var args struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return fail("Invalid input: " + err.Error())
	}
	page := store.Page{Limit: args.Limit, Offset: args.Offset}.Normalize(20, 100)

	contacts, total, err := s.ListContacts(ctx, page)
	if err != nil {
		zap.L().Warn("tools: list contacts failed", zap.Error(err))
		return fail("Failed to list contacts: " + err.Error())
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}

	return ok(Result{
		"contacts": contacts,
		"count":    len(contacts),
		"total":    total,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}
