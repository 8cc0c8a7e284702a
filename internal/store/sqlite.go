package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dashboard-api/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	company    TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	notes      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(name);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS companies (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	domain      TEXT NOT NULL DEFAULT '',
	industry    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);

CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'planned',
	company_id  TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	due_date    DATETIME,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_projects_name ON projects(name);
CREATE INDEX IF NOT EXISTS idx_projects_company_id ON projects(company_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteNotFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return eris.Wrap(err, msg)
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Contacts ---

func (s *SQLiteStore) CreateContact(ctx context.Context, c model.Contact) (*model.Contact, error) {
	c.ID = uuid.New().String()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (`+contactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Phone, c.Company, c.Role, c.Notes, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert contact")
	}
	return &c, nil
}

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	c, err := scanContact(s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
	if err != nil {
		return nil, sqliteNotFound(err, "sqlite: get contact "+id)
	}
	return c, nil
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, c model.Contact) (*model.Contact, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET name = ?, email = ?, phone = ?, company = ?, role = ?, notes = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Email, c.Phone, c.Company, c.Role, c.Notes, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update contact %s", c.ID)
	}
	if err := checkRowsAffected(res); err != nil {
		return nil, err
	}
	return s.GetContact(ctx, c.ID)
}

func (s *SQLiteStore) DeleteContact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete contact %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ListContacts(ctx context.Context, page Page) ([]model.Contact, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM contacts`).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count contacts")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts ORDER BY name ASC, id ASC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list contacts")
	}
	contacts, err := sqliteContacts(rows)
	return contacts, total, err
}

func (s *SQLiteStore) SearchContacts(ctx context.Context, query string, limit int) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts
		WHERE name LIKE ?1 ESCAPE '\' OR email LIKE ?1 ESCAPE '\' OR company LIKE ?1 ESCAPE '\' OR role LIKE ?1 ESCAPE '\'
		ORDER BY name ASC, id ASC LIMIT ?2`,
		likePattern(query), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search contacts")
	}
	return sqliteContacts(rows)
}

func (s *SQLiteStore) UpsertContactByEmail(ctx context.Context, c model.Contact) (*model.Contact, bool, error) {
	if strings.TrimSpace(c.Email) == "" {
		return nil, false, eris.New("sqlite: upsert contact: email is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: begin upsert contact")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	created := false
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM contacts WHERE email = ? COLLATE NOCASE ORDER BY created_at ASC LIMIT 1`,
		c.Email,
	).Scan(&c.ID, &c.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		c.ID = uuid.New().String()
		c.CreatedAt = now
		c.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO contacts (`+contactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Email, c.Phone, c.Company, c.Role, c.Notes, c.CreatedAt, c.UpdatedAt,
		)
	case err != nil:
		return nil, false, eris.Wrap(err, "sqlite: lookup contact by email")
	default:
		c.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`UPDATE contacts SET name = ?, phone = ?, company = ?, role = ?, updated_at = ? WHERE id = ?`,
			c.Name, c.Phone, c.Company, c.Role, c.UpdatedAt, c.ID,
		)
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: write contact")
	}

	if err := tx.Commit(); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: commit upsert contact")
	}
	return &c, created, nil
}

func sqliteContacts(rows *sql.Rows) ([]model.Contact, error) {
	defer rows.Close()
	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		contacts = append(contacts, *c)
	}
	return contacts, eris.Wrap(rows.Err(), "sqlite: iterate contacts")
}

// --- Companies ---

func (s *SQLiteStore) CreateCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	c.ID = uuid.New().String()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (`+companyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Domain, c.Industry, c.Description, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert company")
	}
	return &c, nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	c, err := scanCompany(s.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = ?`, id))
	if err != nil {
		return nil, sqliteNotFound(err, "sqlite: get company "+id)
	}
	return c, nil
}

func (s *SQLiteStore) UpdateCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET name = ?, domain = ?, industry = ?, description = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Domain, c.Industry, c.Description, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update company %s", c.ID)
	}
	if err := checkRowsAffected(res); err != nil {
		return nil, err
	}
	return s.GetCompany(ctx, c.ID)
}

func (s *SQLiteStore) DeleteCompany(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete company %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, page Page) ([]model.Company, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM companies`).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count companies")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies ORDER BY name ASC, id ASC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	companies := []model.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan company")
		}
		companies = append(companies, *c)
	}
	return companies, total, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

// --- Projects ---

func scanSQLiteProject(row scannable) (*model.Project, error) {
	var p model.Project
	var status string
	var due sql.NullTime
	if err := row.Scan(&p.ID, &p.Name, &status, &p.CompanyID, &p.Description, &due, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatus(status)
	if due.Valid {
		t := due.Time
		p.DueDate = &t
	}
	return &p, nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	p.ID = uuid.New().String()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Status == "" {
		p.Status = model.ProjectStatusPlanned
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Status), p.CompanyID, p.Description, p.DueDate, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert project")
	}
	return &p, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanSQLiteProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		return nil, sqliteNotFound(err, "sqlite: get project "+id)
	}
	return p, nil
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	if p.Status == "" {
		p.Status = model.ProjectStatusPlanned
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, status = ?, company_id = ?, description = ?, due_date = ?, updated_at = ? WHERE id = ?`,
		p.Name, string(p.Status), p.CompanyID, p.Description, p.DueDate, time.Now().UTC(), p.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update project %s", p.ID)
	}
	if err := checkRowsAffected(res); err != nil {
		return nil, err
	}
	return s.GetProject(ctx, p.ID)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete project %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ListProjects(ctx context.Context, page Page) ([]model.Project, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count projects")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY name ASC, id ASC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list projects")
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanSQLiteProject(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan project")
		}
		projects = append(projects, *p)
	}
	return projects, total, eris.Wrap(rows.Err(), "sqlite: iterate projects")
}
