package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/fault"
)

var faultSeverities = map[string]int{fault.SeverityMinor: 1, fault.SeverityMajor: 2, fault.SeverityCritical: 3}

var faultOrderings = map[string]lessFunc[fault.Fault]{
	"code":       func(a, b fault.Fault) int { return cmpStrings(a.Code, b.Code) },
	"title":      func(a, b fault.Fault) int { return cmpStrings(a.Title, b.Title) },
	"severity":   func(a, b fault.Fault) int { return faultSeverities[a.Severity] - faultSeverities[b.Severity] },
	"created_at": func(a, b fault.Fault) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

type faultRepository struct {
	db *DB
}

var _ fault.Repository = (*faultRepository)(nil)

func NewFaultRepository(db *DB) fault.Repository {
	return &faultRepository{db: db}
}

func (repo *faultRepository) CheckCodeUniqueness(_ context.Context, companyID, code, excludedID string, _ ...core.DBExecutor) (err error) {
	repo.db.read(func(t *tables) {
		for _, f := range t.faults {
			if f.ID != excludedID && f.CompanyID == companyID && strings.EqualFold(f.Code, code) {
				err = fault.ErrCodeExists
				return
			}
		}
	})
	return err
}

func (repo *faultRepository) CreateFault(_ context.Context, f fault.Fault, exec ...core.DBExecutor) (fault.Fault, error) {
	f.ID = uuid.New().String()
	repo.db.write(exec, func(t *tables) { t.faults[f.ID] = f })
	return f, nil
}

func (repo *faultRepository) QueryFaults(_ context.Context, filter *fault.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) (faults []fault.Fault, err error) {
	repo.db.read(func(t *tables) { faults = t.faults.rows(filter.Match) })
	order(faults, ordering, faultOrderings, core.DBOrdering{Field: "code", Ascending: true})
	return faults, nil
}

func (repo *faultRepository) GetFault(_ context.Context, id string, _ ...core.DBExecutor) (f fault.Fault, err error) {
	err = fault.ErrNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.faults[id]; ok {
			f, err = found, nil
		}
	})
	return f, err
}

func (repo *faultRepository) UpdateFault(_ context.Context, f fault.Fault, exec ...core.DBExecutor) (fault.Fault, error) {
	err := fault.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.faults[f.ID]; ok {
			t.faults[f.ID] = f
			err = nil
		}
	})
	if err != nil {
		return fault.Fault{}, err
	}
	return f, nil
}

func (repo *faultRepository) DeleteFault(_ context.Context, id string, exec ...core.DBExecutor) error {
	err := fault.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.faults[id]; ok {
			delete(t.faults, id)
			err = nil
		}
	})
	return err
}
