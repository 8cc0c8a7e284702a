package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dashboard-api/internal/model"
)

const contactColumns = `id, name, email, phone, company, role, notes, created_at, updated_at`

func scanContact(row scannable) (*model.Contact, error) {
	var c model.Contact
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Role, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateContact(ctx context.Context, c model.Contact) (*model.Contact, error) {
	c.ID = uuid.New().String()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO contacts (`+contactColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.Email, c.Phone, c.Company, c.Role, c.Notes, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert contact")
	}
	return &c, nil
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	c, err := scanContact(s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
	if err != nil {
		return nil, pgNotFound(err, "postgres: get contact "+id)
	}
	return c, nil
}

func (s *PostgresStore) UpdateContact(ctx context.Context, c model.Contact) (*model.Contact, error) {
	c.UpdatedAt = time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`UPDATE contacts SET name = $1, email = $2, phone = $3, company = $4, role = $5, notes = $6, updated_at = $7
		WHERE id = $8 RETURNING created_at`,
		c.Name, c.Email, c.Phone, c.Company, c.Role, c.Notes, c.UpdatedAt, c.ID,
	).Scan(&c.CreatedAt)
	if err != nil {
		return nil, pgNotFound(err, "postgres: update contact "+c.ID)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteContact(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete contact %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, page Page) ([]model.Contact, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM contacts`).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count contacts")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list contacts")
	}
	contacts, err := collectContacts(rows)
	return contacts, total, err
}

func (s *PostgresStore) SearchContacts(ctx context.Context, query string, limit int) ([]model.Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts
		WHERE name ILIKE $1 OR email ILIKE $1 OR company ILIKE $1 OR role ILIKE $1
		ORDER BY name ASC, id ASC LIMIT $2`,
		likePattern(query), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search contacts")
	}
	return collectContacts(rows)
}

// UpsertContactByEmail updates the contact whose email matches c.Email
// (case-insensitively) or inserts a new one. The bool reports an insert.
func (s *PostgresStore) UpsertContactByEmail(ctx context.Context, c model.Contact) (*model.Contact, bool, error) {
	if strings.TrimSpace(c.Email) == "" {
		return nil, false, eris.New("postgres: upsert contact: email is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: begin upsert contact")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	created := false
	err = tx.QueryRow(ctx,
		`SELECT id, created_at FROM contacts WHERE lower(email) = lower($1) ORDER BY created_at ASC LIMIT 1`,
		c.Email,
	).Scan(&c.ID, &c.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		created = true
		c.ID = uuid.New().String()
		c.CreatedAt = now
		c.UpdatedAt = now
		_, err = tx.Exec(ctx,
			`INSERT INTO contacts (`+contactColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID, c.Name, c.Email, c.Phone, c.Company, c.Role, c.Notes, c.CreatedAt, c.UpdatedAt,
		)
	case err != nil:
		return nil, false, eris.Wrap(err, "postgres: lookup contact by email")
	default:
		c.UpdatedAt = now
		_, err = tx.Exec(ctx,
			`UPDATE contacts SET name = $1, phone = $2, company = $3, role = $4, updated_at = $5 WHERE id = $6`,
			c.Name, c.Phone, c.Company, c.Role, c.UpdatedAt, c.ID,
		)
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: write contact")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, eris.Wrap(err, "postgres: commit upsert contact")
	}
	return &c, created, nil
}

func collectContacts(rows pgx.Rows) ([]model.Contact, error) {
	defer rows.Close()
	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		contacts = append(contacts, *c)
	}
	return contacts, eris.Wrap(rows.Err(), "postgres: iterate contacts")
}

const companyColumns = `id, name, domain, industry, description, created_at, updated_at`

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	if err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.Industry, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	c.ID = uuid.New().String()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (`+companyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Domain, c.Industry, c.Description, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert company")
	}
	return &c, nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1`, id))
	if err != nil {
		return nil, pgNotFound(err, "postgres: get company "+id)
	}
	return c, nil
}

func (s *PostgresStore) UpdateCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	c.UpdatedAt = time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`UPDATE companies SET name = $1, domain = $2, industry = $3, description = $4, updated_at = $5
		WHERE id = $6 RETURNING created_at`,
		c.Name, c.Domain, c.Industry, c.Description, c.UpdatedAt, c.ID,
	).Scan(&c.CreatedAt)
	if err != nil {
		return nil, pgNotFound(err, "postgres: update company "+c.ID)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteCompany(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete company %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context, page Page) ([]model.Company, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM companies`).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count companies")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM companies ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	companies := []model.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan company")
		}
		companies = append(companies, *c)
	}
	return companies, total, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

const projectColumns = `id, name, status, company_id, description, due_date, created_at, updated_at`

func scanProject(row scannable) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Status, &p.CompanyID, &p.Description, &p.DueDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	p.ID = uuid.New().String()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Status == "" {
		p.Status = model.ProjectStatusPlanned
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, string(p.Status), p.CompanyID, p.Description, p.DueDate, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert project")
	}
	return &p, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, pgNotFound(err, "postgres: get project "+id)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	p.UpdatedAt = time.Now().UTC()
	if p.Status == "" {
		p.Status = model.ProjectStatusPlanned
	}
	err := s.pool.QueryRow(ctx,
		`UPDATE projects SET name = $1, status = $2, company_id = $3, description = $4, due_date = $5, updated_at = $6
		WHERE id = $7 RETURNING created_at`,
		p.Name, string(p.Status), p.CompanyID, p.Description, p.DueDate, p.UpdatedAt, p.ID,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, pgNotFound(err, "postgres: update project "+p.ID)
	}
	return &p, nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete project %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, page Page) ([]model.Project, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count projects")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list projects")
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan project")
		}
		projects = append(projects, *p)
	}
	return projects, total, eris.Wrap(rows.Err(), "postgres: iterate projects")
}
