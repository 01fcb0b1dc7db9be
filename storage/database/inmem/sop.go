package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/sop"
)

var sopOrderings = map[string]lessFunc[sop.SOP]{
	"code":       func(a, b sop.SOP) int { return cmpStrings(a.Code, b.Code) },
	"title":      func(a, b sop.SOP) int { return cmpStrings(a.Title, b.Title) },
	"version":    func(a, b sop.SOP) int { return a.Version - b.Version },
	"created_at": func(a, b sop.SOP) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updated_at": func(a, b sop.SOP) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

type sopRepository struct {
	db *DB
}

var _ sop.Repository = (*sopRepository)(nil)

func NewSOPRepository(db *DB) sop.Repository {
	return &sopRepository{db: db}
}

// copySteps keeps stored rows isolated from callers mutating the returned slices.
func copySteps(s sop.SOP) sop.SOP {
	s.Steps = append([]sop.Step(nil), s.Steps...)
	return s
}

func (repo *sopRepository) CheckCodeUniqueness(_ context.Context, companyID, code, excludedID string, _ ...core.DBExecutor) (err error) {
	repo.db.read(func(t *tables) {
		for _, s := range t.sops {
			if s.ID != excludedID && s.CompanyID == companyID && strings.EqualFold(s.Code, code) {
				err = sop.ErrCodeExists
				return
			}
		}
	})
	return err
}

func (repo *sopRepository) CreateSOP(_ context.Context, s sop.SOP, exec ...core.DBExecutor) (sop.SOP, error) {
	s.ID = uuid.New().String()
	s = copySteps(s)
	repo.db.write(exec, func(t *tables) { t.sops[s.ID] = s })
	return copySteps(s), nil
}

func (repo *sopRepository) QuerySOPs(_ context.Context, filter *sop.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) (sops []sop.SOP, err error) {
	repo.db.read(func(t *tables) { sops = t.sops.rows(filter.Match) })
	for i := range sops {
		sops[i] = copySteps(sops[i])
	}
	order(sops, ordering, sopOrderings, core.DBOrdering{Field: "code", Ascending: true})
	return sops, nil
}

func (repo *sopRepository) GetSOP(_ context.Context, id string, _ ...core.DBExecutor) (s sop.SOP, err error) {
	err = sop.ErrNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.sops[id]; ok {
			s, err = copySteps(found), nil
		}
	})
	return s, err
}

func (repo *sopRepository) UpdateSOP(_ context.Context, s sop.SOP, exec ...core.DBExecutor) (sop.SOP, error) {
	err := sop.ErrNotFound
	s = copySteps(s)
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.sops[s.ID]; ok {
			t.sops[s.ID] = s
			err = nil
		}
	})
	if err != nil {
		return sop.SOP{}, err
	}
	return copySteps(s), nil
}

func (repo *sopRepository) DeleteSOP(_ context.Context, id string, exec ...core.DBExecutor) error {
	err := sop.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.sops[id]; ok {
			delete(t.sops, id)
			err = nil
		}
	})
	return err
}
