// Package notionsync imports CRM records from a Notion database.
package notionsync

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/model"
	"github.com/sells-group/dashboard-api/internal/resilience"
	"github.com/sells-group/dashboard-api/pkg/notion"
)

// ContactWriter persists imported contacts.
type ContactWriter interface {
	UpsertContactByEmail(ctx context.Context, c model.Contact) (*model.Contact, bool, error)
}

// Mapping names the Notion properties read for each contact field. The
// contact name always comes from the title property.
type Mapping struct {
	Email   string
	Company string
	Role    string
	Phone   string
}

// DefaultMapping matches the property names of the team's contacts database.
var DefaultMapping = Mapping{
	Email:   "Email",
	Company: "Company",
	Role:    "Role",
	Phone:   "Phone",
}

// Stats summarizes an import.
type Stats struct {
	Pages   int
	Created int
	Updated int
	Skipped int
	Failed  int
}

// Importer copies contacts from Notion into the store.
type Importer struct {
	client  notion.Client
	writer  ContactWriter
	mapping Mapping
	retry   resilience.RetryConfig
}

// Option configures an Importer.
type Option func(*Importer)

// WithMapping overrides DefaultMapping.
func WithMapping(m Mapping) Option {
	return func(i *Importer) { i.mapping = m }
}

// WithRetry overrides the retry policy for store writes.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(i *Importer) { i.retry = cfg }
}

// NewImporter creates an Importer.
func NewImporter(client notion.Client, writer ContactWriter, opts ...Option) *Importer {
	i := &Importer{
		client:  client,
		writer:  writer,
		mapping: DefaultMapping,
		retry:   resilience.DefaultRetryConfig(),
	}
	i.retry.OnRetry = resilience.RetryLogger("store", "upsert_contact")
	for _, o := range opts {
		o(i)
	}
	return i
}

// Import reads every page of dbID and upserts a contact per page, keyed by
// email. Pages without a name or email are skipped. A row that still fails
// after retries is counted and the import moves on; only a failed query or
// a cancelled context aborts it.
func (i *Importer) Import(ctx context.Context, dbID string) (Stats, error) {
	var stats Stats

	pages, err := notion.QueryAll(ctx, i.client, dbID, nil)
	if err != nil {
		return stats, eris.Wrap(err, "notionsync: query contacts")
	}
	stats.Pages = len(pages)

	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "notionsync: import cancelled")
		}

		c, reason := i.parseContact(p)
		if reason != "" {
			zap.L().Warn("notionsync: skipping page",
				zap.String("page_id", string(p.ID)),
				zap.String("reason", reason),
			)
			stats.Skipped++
			continue
		}

		created, err := resilience.DoVal(ctx, i.retry, func(ctx context.Context) (bool, error) {
			_, created, err := i.writer.UpsertContactByEmail(ctx, c)
			return created, err
		})
		if err != nil {
			if ctx.Err() != nil {
				return stats, eris.Wrap(ctx.Err(), "notionsync: import cancelled")
			}
			zap.L().Error("notionsync: upsert contact",
				zap.String("page_id", string(p.ID)),
				zap.String("email", c.Email),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	zap.L().Info("notionsync: import finished",
		zap.String("database_id", dbID),
		zap.Int("pages", stats.Pages),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// parseContact maps a page to a contact, or returns why it cannot.
func (i *Importer) parseContact(p notionapi.Page) (model.Contact, string) {
	c := model.Contact{
		Name:    notion.TitleValue(p),
		Email:   strings.ToLower(notion.TextValue(p, i.mapping.Email)),
		Company: notion.TextValue(p, i.mapping.Company),
		Role:    notion.TextValue(p, i.mapping.Role),
		Phone:   notion.TextValue(p, i.mapping.Phone),
	}
	switch {
	case c.Name == "":
		return c, "missing name"
	case c.Email == "":
		return c, "missing email"
	}
	return c, ""
}
