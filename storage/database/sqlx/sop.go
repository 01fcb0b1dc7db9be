package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/sop"
)

const sopColumns = "id, company_id, machine_id, code, title, version, steps, status, attachment_key, attachment_name, " +
	"created_by, created_at, updated_at"

type sopRow struct {
	ID             string      `db:"id"`
	CompanyID      string      `db:"company_id"`
	MachineID      null.String `db:"machine_id"`
	Code           string      `db:"code"`
	Title          string      `db:"title"`
	Version        int         `db:"version"`
	Steps          types.JSON  `db:"steps"`
	Status         string      `db:"status"`
	AttachmentKey  string      `db:"attachment_key"`
	AttachmentName string      `db:"attachment_name"`
	CreatedBy      string      `db:"created_by"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func toSOPRow(s sop.SOP) (sopRow, error) {
	r := sopRow{
		ID:             s.ID,
		CompanyID:      s.CompanyID,
		MachineID:      nullString(s.MachineID),
		Code:           s.Code,
		Title:          s.Title,
		Version:        s.Version,
		Status:         s.Status,
		AttachmentKey:  s.AttachmentKey,
		AttachmentName: s.AttachmentName,
		CreatedBy:      s.CreatedBy,
		CreatedAt:      s.CreatedAt.UTC(),
		UpdatedAt:      s.UpdatedAt.UTC(),
	}
	steps := s.Steps
	if steps == nil {
		steps = []sop.Step{}
	}
	return r, errors.Wrap(r.Steps.Marshal(steps), "encoding steps")
}

func (r sopRow) sop() (sop.SOP, error) {
	s := sop.SOP{
		ID:             r.ID,
		CompanyID:      r.CompanyID,
		MachineID:      r.MachineID.String,
		Code:           r.Code,
		Title:          r.Title,
		Version:        r.Version,
		Status:         r.Status,
		AttachmentKey:  r.AttachmentKey,
		AttachmentName: r.AttachmentName,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if len(r.Steps) > 0 {
		if err := r.Steps.Unmarshal(&s.Steps); err != nil {
			return sop.SOP{}, errors.Wrap(err, "decoding steps")
		}
	}
	return s, nil
}

type sopRepository struct {
	repository
}

var _ sop.Repository = (*sopRepository)(nil)

func NewSOPRepository(db core.DBExecutor) sop.Repository {
	return &sopRepository{repository{db: db}}
}

func (repo *sopRepository) CheckCodeUniqueness(ctx context.Context, companyID, code, excludedID string, exec ...core.DBExecutor) error {
	exists, err := codeExists(ctx, repo.exec(exec), "sops", companyID, code, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking SOP code uniqueness")
	}
	if exists {
		return sop.ErrCodeExists
	}
	return nil
}

// codeExists reports whether table holds another row of the company with a case-insensitively equal code.
func codeExists(ctx context.Context, ex core.DBExecutor, table, companyID, code, excludedID string) (bool, error) {
	var w where
	w.add("company_id = ?", companyID)
	w.add("lower(code) = lower(?)", code)
	if excludedID != "" {
		w.add("id <> ?", excludedID)
	}
	q, args := w.query("SELECT EXISTS (SELECT 1 FROM "+table, ")")

	var exists bool
	err := ex.GetContext(ctx, &exists, q, args...)
	return exists, err
}

func (repo *sopRepository) CreateSOP(ctx context.Context, s sop.SOP, exec ...core.DBExecutor) (sop.SOP, error) {
	s.ID = uuid.New().String()
	row, err := toSOPRow(s)
	if err != nil {
		return sop.SOP{}, err
	}
	_, err = repo.exec(exec).NamedExecContext(ctx, `
		INSERT INTO sops (`+sopColumns+`)
		VALUES (:id, :company_id, :machine_id, :code, :title, :version, :steps, :status, :attachment_key,
			:attachment_name, :created_by, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sop.SOP{}, sop.ErrCodeExists
		}
		return sop.SOP{}, errors.Wrap(err, "inserting SOP")
	}
	return s, nil
}

func (repo *sopRepository) QuerySOPs(ctx context.Context, filter *sop.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]sop.SOP, error) {
	var w where
	if filter != nil {
		if filter.CompanyID != "" {
			w.add("company_id = ?", filter.CompanyID)
		}
		if filter.MachineID != "" {
			w.add("machine_id::text = ?", filter.MachineID)
		}
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.Array(filter.Statuses))
		}
		if filter.Search != "" {
			w.search(filter.Search, "code", "title")
		}
	}
	q, args := w.query("SELECT "+sopColumns+" FROM sops", orderBy(ordering, "code ASC"))

	var rows []sopRow
	if err := repo.exec(exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting SOPs")
	}
	sops := make([]sop.SOP, 0, len(rows))
	for _, r := range rows {
		s, err := r.sop()
		if err != nil {
			return nil, err
		}
		sops = append(sops, s)
	}
	return sops, nil
}

func (repo *sopRepository) GetSOP(ctx context.Context, id string, exec ...core.DBExecutor) (sop.SOP, error) {
	if _, err := uuid.Parse(id); err != nil {
		return sop.SOP{}, sop.ErrNotFound
	}
	var r sopRow
	if err := repo.exec(exec).GetContext(ctx, &r, "SELECT "+sopColumns+" FROM sops WHERE id = $1", id); err != nil {
		return sop.SOP{}, trapNoRows(err, sop.ErrNotFound, "selecting SOP")
	}
	return r.sop()
}

func (repo *sopRepository) UpdateSOP(ctx context.Context, s sop.SOP, exec ...core.DBExecutor) (sop.SOP, error) {
	row, err := toSOPRow(s)
	if err != nil {
		return sop.SOP{}, err
	}
	res, err := repo.exec(exec).NamedExecContext(ctx, `
		UPDATE sops SET
			machine_id = :machine_id, code = :code, title = :title, version = :version, steps = :steps,
			status = :status, attachment_key = :attachment_key, attachment_name = :attachment_name,
			updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sop.SOP{}, sop.ErrCodeExists
		}
		return sop.SOP{}, errors.Wrap(err, "updating SOP")
	}
	if err = checkRowsAffected(res, sop.ErrNotFound); err != nil {
		return sop.SOP{}, err
	}
	return s, nil
}

func (repo *sopRepository) DeleteSOP(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.exec(exec).ExecContext(ctx, "DELETE FROM sops WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting SOP")
	}
	return checkRowsAffected(res, sop.ErrNotFound)
}
