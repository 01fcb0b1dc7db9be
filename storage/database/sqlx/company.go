package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/company"
)

const companyColumns = "id, name, address, contact_email, contact_phone, is_active, created_at, updated_at"

type companyRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Address      string    `db:"address"`
	ContactEmail string    `db:"contact_email"`
	ContactPhone string    `db:"contact_phone"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r companyRow) company() company.Company {
	return company.Company{
		ID:           r.ID,
		Name:         r.Name,
		Address:      r.Address,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type companyRepository struct {
	repository
}

var _ company.Repository = (*companyRepository)(nil)

func NewCompanyRepository(db core.DBExecutor) company.Repository {
	return &companyRepository{repository{db: db}}
}

func (repo *companyRepository) CheckNameUniqueness(ctx context.Context, name, excludedID string, exec ...core.DBExecutor) error {
	var w where
	w.add("lower(name) = lower(?)", name)
	if excludedID != "" {
		w.add("id <> ?", excludedID)
	}
	q, args := w.query("SELECT EXISTS (SELECT 1 FROM companies", ")")

	var exists bool
	if err := repo.exec(exec).GetContext(ctx, &exists, q, args...); err != nil {
		return errors.Wrap(err, "checking company name uniqueness")
	}
	if exists {
		return company.ErrNameExists
	}
	return nil
}

func (repo *companyRepository) CreateCompany(ctx context.Context, c company.Company, exec ...core.DBExecutor) (company.Company, error) {
	c.ID = uuid.New().String()
	c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
	_, err := repo.exec(exec).ExecContext(ctx, `
		INSERT INTO companies (`+companyColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.Address, c.ContactEmail, c.ContactPhone, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return company.Company{}, company.ErrNameExists
		}
		return company.Company{}, errors.Wrap(err, "inserting company")
	}
	return c, nil
}

func (repo *companyRepository) QueryCompanies(ctx context.Context, filter *company.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]company.Company, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			w.search(filter.Search, "name", "contact_email")
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}
	q, args := w.query("SELECT "+companyColumns+" FROM companies", orderBy(ordering, "name ASC"))

	var rows []companyRow
	if err := repo.exec(exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting companies")
	}
	companies := make([]company.Company, 0, len(rows))
	for _, r := range rows {
		companies = append(companies, r.company())
	}
	return companies, nil
}

func (repo *companyRepository) GetCompany(ctx context.Context, id string, exec ...core.DBExecutor) (company.Company, error) {
	if _, err := uuid.Parse(id); err != nil {
		return company.Company{}, company.ErrNotFound
	}
	var r companyRow
	err := repo.exec(exec).GetContext(ctx, &r, "SELECT "+companyColumns+" FROM companies WHERE id = $1", id)
	if err != nil {
		return company.Company{}, trapNoRows(err, company.ErrNotFound, "selecting company")
	}
	return r.company(), nil
}

func (repo *companyRepository) UpdateCompany(ctx context.Context, c company.Company, exec ...core.DBExecutor) (company.Company, error) {
	res, err := repo.exec(exec).ExecContext(ctx, `
		UPDATE companies SET name = $2, address = $3, contact_email = $4, contact_phone = $5, is_active = $6, updated_at = $7
		WHERE id = $1`,
		c.ID, c.Name, c.Address, c.ContactEmail, c.ContactPhone, c.IsActive, c.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return company.Company{}, company.ErrNameExists
		}
		return company.Company{}, errors.Wrap(err, "updating company")
	}
	return c, checkRowsAffected(res, company.ErrNotFound)
}

func (repo *companyRepository) DeleteCompany(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.exec(exec).ExecContext(ctx, "DELETE FROM companies WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting company")
	}
	return checkRowsAffected(res, company.ErrNotFound)
}
