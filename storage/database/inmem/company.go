package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/company"
)

var companyOrderings = map[string]lessFunc[company.Company]{
	"name":       func(a, b company.Company) int { return cmpStrings(a.Name, b.Name) },
	"created_at": func(a, b company.Company) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

type companyRepository struct {
	db *DB
}

var _ company.Repository = (*companyRepository)(nil)

func NewCompanyRepository(db *DB) company.Repository {
	return &companyRepository{db: db}
}

func (repo *companyRepository) CheckNameUniqueness(_ context.Context, name, excludedID string, _ ...core.DBExecutor) (err error) {
	repo.db.read(func(t *tables) {
		for _, c := range t.companies {
			if c.ID != excludedID && strings.EqualFold(c.Name, name) {
				err = company.ErrNameExists
				return
			}
		}
	})
	return err
}

func (repo *companyRepository) CreateCompany(_ context.Context, c company.Company, exec ...core.DBExecutor) (company.Company, error) {
	c.ID = uuid.New().String()
	repo.db.write(exec, func(t *tables) { t.companies[c.ID] = c })
	return c, nil
}

func (repo *companyRepository) QueryCompanies(_ context.Context, filter *company.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) (companies []company.Company, err error) {
	repo.db.read(func(t *tables) { companies = t.companies.rows(filter.Match) })
	order(companies, ordering, companyOrderings, core.DBOrdering{Field: "name", Ascending: true})
	return companies, nil
}

func (repo *companyRepository) GetCompany(_ context.Context, id string, _ ...core.DBExecutor) (c company.Company, err error) {
	err = company.ErrNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.companies[id]; ok {
			c, err = found, nil
		}
	})
	return c, err
}

func (repo *companyRepository) UpdateCompany(_ context.Context, c company.Company, exec ...core.DBExecutor) (company.Company, error) {
	err := company.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.companies[c.ID]; ok {
			t.companies[c.ID] = c
			err = nil
		}
	})
	if err != nil {
		return company.Company{}, err
	}
	return c, nil
}

func (repo *companyRepository) DeleteCompany(_ context.Context, id string, exec ...core.DBExecutor) error {
	err := company.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.companies[id]; ok {
			delete(t.companies, id)
			err = nil
		}
	})
	return err
}
