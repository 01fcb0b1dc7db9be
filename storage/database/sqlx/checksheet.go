package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/checksheet"
)

const (
	checkSheetColumns = "id, company_id, machine_id, title, frequency, items, is_active, created_at, updated_at"
	completionColumns = "id, check_sheet_id, company_id, job_card_id, completed_by, responses, passed, completed_at"
)

type checkSheetRow struct {
	ID        string      `db:"id"`
	CompanyID string      `db:"company_id"`
	MachineID null.String `db:"machine_id"`
	Title     string      `db:"title"`
	Frequency string      `db:"frequency"`
	Items     types.JSON  `db:"items"`
	IsActive  bool        `db:"is_active"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func toCheckSheetRow(cs checksheet.CheckSheet) (checkSheetRow, error) {
	r := checkSheetRow{
		ID:        cs.ID,
		CompanyID: cs.CompanyID,
		MachineID: nullString(cs.MachineID),
		Title:     cs.Title,
		Frequency: cs.Frequency,
		IsActive:  cs.IsActive,
		CreatedAt: cs.CreatedAt.UTC(),
		UpdatedAt: cs.UpdatedAt.UTC(),
	}
	items := cs.Items
	if items == nil {
		items = []checksheet.Item{}
	}
	return r, errors.Wrap(r.Items.Marshal(items), "encoding items")
}

func (r checkSheetRow) checkSheet() (checksheet.CheckSheet, error) {
	cs := checksheet.CheckSheet{
		ID:        r.ID,
		CompanyID: r.CompanyID,
		MachineID: r.MachineID.String,
		Title:     r.Title,
		Frequency: r.Frequency,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if len(r.Items) > 0 {
		if err := r.Items.Unmarshal(&cs.Items); err != nil {
			return checksheet.CheckSheet{}, errors.Wrap(err, "decoding items")
		}
	}
	return cs, nil
}

type completionRow struct {
	ID           string      `db:"id"`
	CheckSheetID string      `db:"check_sheet_id"`
	CompanyID    string      `db:"company_id"`
	JobCardID    null.String `db:"job_card_id"`
	CompletedBy  string      `db:"completed_by"`
	Responses    types.JSON  `db:"responses"`
	Passed       bool        `db:"passed"`
	CompletedAt  time.Time   `db:"completed_at"`
}

func (r completionRow) completion() (checksheet.Completion, error) {
	c := checksheet.Completion{
		ID:           r.ID,
		CheckSheetID: r.CheckSheetID,
		CompanyID:    r.CompanyID,
		JobCardID:    r.JobCardID.String,
		CompletedBy:  r.CompletedBy,
		Passed:       r.Passed,
		CompletedAt:  r.CompletedAt.UTC(),
	}
	if len(r.Responses) > 0 {
		if err := r.Responses.Unmarshal(&c.Responses); err != nil {
			return checksheet.Completion{}, errors.Wrap(err, "decoding responses")
		}
	}
	return c, nil
}

type checkSheetRepository struct {
	repository
}

var _ checksheet.Repository = (*checkSheetRepository)(nil)

func NewCheckSheetRepository(db core.DBExecutor) checksheet.Repository {
	return &checkSheetRepository{repository{db: db}}
}

func (repo *checkSheetRepository) CreateCheckSheet(ctx context.Context, cs checksheet.CheckSheet, exec ...core.DBExecutor) (checksheet.CheckSheet, error) {
	cs.ID = uuid.New().String()
	row, err := toCheckSheetRow(cs)
	if err != nil {
		return checksheet.CheckSheet{}, err
	}
	_, err = repo.exec(exec).NamedExecContext(ctx, `
		INSERT INTO check_sheets (`+checkSheetColumns+`)
		VALUES (:id, :company_id, :machine_id, :title, :frequency, :items, :is_active, :created_at, :updated_at)`,
		row,
	)
	return cs, errors.Wrap(err, "inserting check sheet")
}

func (repo *checkSheetRepository) QueryCheckSheets(ctx context.Context, filter *checksheet.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]checksheet.CheckSheet, error) {
	var w where
	if filter != nil {
		if filter.CompanyID != "" {
			w.add("company_id = ?", filter.CompanyID)
		}
		if filter.MachineID != "" {
			w.add("machine_id::text = ?", filter.MachineID)
		}
		if filter.Frequency != "" {
			w.add("frequency = ?", filter.Frequency)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if filter.Search != "" {
			w.search(filter.Search, "title")
		}
	}
	q, args := w.query("SELECT "+checkSheetColumns+" FROM check_sheets", orderBy(ordering, "title ASC"))

	var rows []checkSheetRow
	if err := repo.exec(exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting check sheets")
	}
	sheets := make([]checksheet.CheckSheet, 0, len(rows))
	for _, r := range rows {
		cs, err := r.checkSheet()
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, cs)
	}
	return sheets, nil
}

func (repo *checkSheetRepository) GetCheckSheet(ctx context.Context, id string, exec ...core.DBExecutor) (checksheet.CheckSheet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return checksheet.CheckSheet{}, checksheet.ErrNotFound
	}
	var r checkSheetRow
	err := repo.exec(exec).GetContext(ctx, &r, "SELECT "+checkSheetColumns+" FROM check_sheets WHERE id = $1", id)
	if err != nil {
		return checksheet.CheckSheet{}, trapNoRows(err, checksheet.ErrNotFound, "selecting check sheet")
	}
	return r.checkSheet()
}

func (repo *checkSheetRepository) UpdateCheckSheet(ctx context.Context, cs checksheet.CheckSheet, exec ...core.DBExecutor) (checksheet.CheckSheet, error) {
	row, err := toCheckSheetRow(cs)
	if err != nil {
		return checksheet.CheckSheet{}, err
	}
	res, err := repo.exec(exec).NamedExecContext(ctx, `
		UPDATE check_sheets SET
			machine_id = :machine_id, title = :title, frequency = :frequency, items = :items,
			is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return checksheet.CheckSheet{}, errors.Wrap(err, "updating check sheet")
	}
	if err = checkRowsAffected(res, checksheet.ErrNotFound); err != nil {
		return checksheet.CheckSheet{}, err
	}
	return cs, nil
}

func (repo *checkSheetRepository) DeleteCheckSheet(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.exec(exec).ExecContext(ctx, "DELETE FROM check_sheets WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting check sheet")
	}
	return checkRowsAffected(res, checksheet.ErrNotFound)
}

func (repo *checkSheetRepository) CreateCompletion(ctx context.Context, c checksheet.Completion, exec ...core.DBExecutor) (checksheet.Completion, error) {
	c.ID = uuid.New().String()
	var responses types.JSON
	if err := responses.Marshal(c.Responses); err != nil {
		return checksheet.Completion{}, errors.Wrap(err, "encoding responses")
	}
	_, err := repo.exec(exec).ExecContext(ctx,
		"INSERT INTO check_sheet_completions ("+completionColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		c.ID, c.CheckSheetID, c.CompanyID, nullString(c.JobCardID), c.CompletedBy, responses, c.Passed, c.CompletedAt.UTC(),
	)
	return c, errors.Wrap(err, "inserting check sheet completion")
}

func (repo *checkSheetRepository) QueryCompletions(ctx context.Context, filter *checksheet.CompletionFilter, exec ...core.DBExecutor) ([]checksheet.Completion, error) {
	var w where
	if filter != nil {
		if filter.CompanyID != "" {
			w.add("company_id = ?", filter.CompanyID)
		}
		if filter.CheckSheetID != "" {
			w.add("check_sheet_id::text = ?", filter.CheckSheetID)
		}
		if filter.JobCardID != "" {
			w.add("job_card_id::text = ?", filter.JobCardID)
		}
		if filter.CompletedBy != "" {
			w.add("completed_by::text = ?", filter.CompletedBy)
		}
		if filter.Passed != nil {
			w.add("passed = ?", *filter.Passed)
		}
		if !filter.From.IsZero() {
			w.add("completed_at >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add("completed_at < ?", filter.To.UTC())
		}
	}
	q, args := w.query("SELECT "+completionColumns+" FROM check_sheet_completions", " ORDER BY completed_at ASC")

	var rows []completionRow
	if err := repo.exec(exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting check sheet completions")
	}
	completions := make([]checksheet.Completion, 0, len(rows))
	for _, r := range rows {
		c, err := r.completion()
		if err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, nil
}

func (repo *checkSheetRepository) GetCompletion(ctx context.Context, id string, exec ...core.DBExecutor) (checksheet.Completion, error) {
	if _, err := uuid.Parse(id); err != nil {
		return checksheet.Completion{}, checksheet.ErrCompletionNotFound
	}
	var r completionRow
	err := repo.exec(exec).GetContext(ctx, &r, "SELECT "+completionColumns+" FROM check_sheet_completions WHERE id = $1", id)
	if err != nil {
		return checksheet.Completion{}, trapNoRows(err, checksheet.ErrCompletionNotFound, "selecting check sheet completion")
	}
	return r.completion()
}
