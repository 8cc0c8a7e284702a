package store

import (
	"context"
	"errors"
	"strings"

	"github.com/sells-group/dashboard-api/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Page bounds a list query.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize applies the default limit and clamps both bounds.
func (p Page) Normalize(defaultLimit, maxLimit int) Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Store defines the persistence interface for the CRM dashboard.
type Store interface {
	// Contacts
	CreateContact(ctx context.Context, c model.Contact) (*model.Contact, error)
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	UpdateContact(ctx context.Context, c model.Contact) (*model.Contact, error)
	DeleteContact(ctx context.Context, id string) error
	ListContacts(ctx context.Context, page Page) ([]model.Contact, int, error)
	SearchContacts(ctx context.Context, query string, limit int) ([]model.Contact, error)
	UpsertContactByEmail(ctx context.Context, c model.Contact) (*model.Contact, bool, error)

	// Companies
	CreateCompany(ctx context.Context, c model.Company) (*model.Company, error)
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	UpdateCompany(ctx context.Context, c model.Company) (*model.Company, error)
	DeleteCompany(ctx context.Context, id string) error
	ListCompanies(ctx context.Context, page Page) ([]model.Company, int, error)

	// Projects
	CreateProject(ctx context.Context, p model.Project) (*model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	UpdateProject(ctx context.Context, p model.Project) (*model.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context, page Page) ([]model.Project, int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

type scannable interface {
	Scan(dest ...any) error
}

// likePattern builds a substring pattern for LIKE/ILIKE with the wildcard
// characters in q escaped.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}
