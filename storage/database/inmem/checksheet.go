package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/checksheet"
)

var checkSheetOrderings = map[string]lessFunc[checksheet.CheckSheet]{
	"title":      func(a, b checksheet.CheckSheet) int { return cmpStrings(a.Title, b.Title) },
	"frequency":  func(a, b checksheet.CheckSheet) int { return cmpStrings(a.Frequency, b.Frequency) },
	"created_at": func(a, b checksheet.CheckSheet) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

type checkSheetRepository struct {
	db *DB
}

var _ checksheet.Repository = (*checkSheetRepository)(nil)

func NewCheckSheetRepository(db *DB) checksheet.Repository {
	return &checkSheetRepository{db: db}
}

func copyItems(cs checksheet.CheckSheet) checksheet.CheckSheet {
	cs.Items = append([]checksheet.Item(nil), cs.Items...)
	return cs
}

func (repo *checkSheetRepository) CreateCheckSheet(_ context.Context, cs checksheet.CheckSheet, exec ...core.DBExecutor) (checksheet.CheckSheet, error) {
	cs.ID = uuid.New().String()
	cs = copyItems(cs)
	repo.db.write(exec, func(t *tables) { t.checkSheets[cs.ID] = cs })
	return copyItems(cs), nil
}

func (repo *checkSheetRepository) QueryCheckSheets(_ context.Context, filter *checksheet.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) (sheets []checksheet.CheckSheet, err error) {
	repo.db.read(func(t *tables) { sheets = t.checkSheets.rows(filter.Match) })
	for i := range sheets {
		sheets[i] = copyItems(sheets[i])
	}
	order(sheets, ordering, checkSheetOrderings, core.DBOrdering{Field: "title", Ascending: true})
	return sheets, nil
}

func (repo *checkSheetRepository) GetCheckSheet(_ context.Context, id string, _ ...core.DBExecutor) (cs checksheet.CheckSheet, err error) {
	err = checksheet.ErrNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.checkSheets[id]; ok {
			cs, err = copyItems(found), nil
		}
	})
	return cs, err
}

func (repo *checkSheetRepository) UpdateCheckSheet(_ context.Context, cs checksheet.CheckSheet, exec ...core.DBExecutor) (checksheet.CheckSheet, error) {
	err := checksheet.ErrNotFound
	cs = copyItems(cs)
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.checkSheets[cs.ID]; ok {
			t.checkSheets[cs.ID] = cs
			err = nil
		}
	})
	if err != nil {
		return checksheet.CheckSheet{}, err
	}
	return copyItems(cs), nil
}

// DeleteCheckSheet cascades to the completions of the check sheet.
func (repo *checkSheetRepository) DeleteCheckSheet(_ context.Context, id string, exec ...core.DBExecutor) error {
	err := checksheet.ErrNotFound
	repo.db.write(exec, func(t *tables) {
		if _, ok := t.checkSheets[id]; !ok {
			return
		}
		delete(t.checkSheets, id)
		err = nil
		for k, c := range t.completions {
			if c.CheckSheetID == id {
				delete(t.completions, k)
			}
		}
	})
	return err
}

func (repo *checkSheetRepository) CreateCompletion(_ context.Context, c checksheet.Completion, exec ...core.DBExecutor) (checksheet.Completion, error) {
	c.ID = uuid.New().String()
	repo.db.write(exec, func(t *tables) { t.completions[c.ID] = c })
	return c, nil
}

func (repo *checkSheetRepository) QueryCompletions(_ context.Context, filter *checksheet.CompletionFilter, _ ...core.DBExecutor) (completions []checksheet.Completion, err error) {
	repo.db.read(func(t *tables) { completions = t.completions.rows(filter.Match) })
	order(completions, nil, map[string]lessFunc[checksheet.Completion]{
		"completed_at": func(a, b checksheet.Completion) int { return a.CompletedAt.Compare(b.CompletedAt) },
	}, core.DBOrdering{Field: "completed_at"})
	return completions, nil
}

func (repo *checkSheetRepository) GetCompletion(_ context.Context, id string, _ ...core.DBExecutor) (c checksheet.Completion, err error) {
	err = checksheet.ErrCompletionNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.completions[id]; ok {
			c, err = found, nil
		}
	})
	return c, err
}
