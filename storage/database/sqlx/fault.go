package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/fault"
)

const faultColumns = "id, company_id, machine_id, code, title, symptoms, cause, remedy, severity, created_by, created_at, updated_at"

type faultRow struct {
	ID        string      `db:"id"`
	CompanyID string      `db:"company_id"`
	MachineID null.String `db:"machine_id"`
	Code      string      `db:"code"`
	Title     string      `db:"title"`
	Symptoms  string      `db:"symptoms"`
	Cause     string      `db:"cause"`
	Remedy    string      `db:"remedy"`
	Severity  string      `db:"severity"`
	CreatedBy string      `db:"created_by"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func toFaultRow(f fault.Fault) faultRow {
	return faultRow{
		ID:        f.ID,
		CompanyID: f.CompanyID,
		MachineID: nullString(f.MachineID),
		Code:      f.Code,
		Title:     f.Title,
		Symptoms:  f.Symptoms,
		Cause:     f.Cause,
		Remedy:    f.Remedy,
		Severity:  f.Severity,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt.UTC(),
		UpdatedAt: f.UpdatedAt.UTC(),
	}
}

func (r faultRow) fault() fault.Fault {
	return fault.Fault{
		ID:        r.ID,
		CompanyID: r.CompanyID,
		MachineID: r.MachineID.String,
		Code:      r.Code,
		Title:     r.Title,
		Symptoms:  r.Symptoms,
		Cause:     r.Cause,
		Remedy:    r.Remedy,
		Severity:  r.Severity,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type faultRepository struct {
	repository
}

var _ fault.Repository = (*faultRepository)(nil)

func NewFaultRepository(db core.DBExecutor) fault.Repository {
	return &faultRepository{repository{db: db}}
}

func (repo *faultRepository) CheckCodeUniqueness(ctx context.Context, companyID, code, excludedID string, exec ...core.DBExecutor) error {
	exists, err := codeExists(ctx, repo.exec(exec), "faults", companyID, code, excludedID)
	if err != nil {
		return errors.Wrap(err, "checking fault code uniqueness")
	}
	if exists {
		return fault.ErrCodeExists
	}
	return nil
}

func (repo *faultRepository) CreateFault(ctx context.Context, f fault.Fault, exec ...core.DBExecutor) (fault.Fault, error) {
	f.ID = uuid.New().String()
	_, err := repo.exec(exec).NamedExecContext(ctx, `
		INSERT INTO faults (`+faultColumns+`)
		VALUES (:id, :company_id, :machine_id, :code, :title, :symptoms, :cause, :remedy, :severity,
			:created_by, :created_at, :updated_at)`,
		toFaultRow(f),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fault.Fault{}, fault.ErrCodeExists
		}
		return fault.Fault{}, errors.Wrap(err, "inserting fault")
	}
	return f, nil
}

func (repo *faultRepository) QueryFaults(ctx context.Context, filter *fault.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]fault.Fault, error) {
	var w where
	if filter != nil {
		if filter.CompanyID != "" {
			w.add("company_id = ?", filter.CompanyID)
		}
		if filter.MachineID != "" {
			w.add("machine_id::text = ?", filter.MachineID)
		}
		if len(filter.Severities) > 0 {
			w.add("severity = ANY(?)", pq.Array(filter.Severities))
		}
		if filter.Search != "" {
			w.search(filter.Search, "code", "title", "symptoms")
		}
	}
	q, args := w.query("SELECT "+faultColumns+" FROM faults", orderBy(ordering, "code ASC"))

	var rows []faultRow
	if err := repo.exec(exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting faults")
	}
	faults := make([]fault.Fault, 0, len(rows))
	for _, r := range rows {
		faults = append(faults, r.fault())
	}
	return faults, nil
}

func (repo *faultRepository) GetFault(ctx context.Context, id string, exec ...core.DBExecutor) (fault.Fault, error) {
	if _, err := uuid.Parse(id); err != nil {
		return fault.Fault{}, fault.ErrNotFound
	}
	var r faultRow
	if err := repo.exec(exec).GetContext(ctx, &r, "SELECT "+faultColumns+" FROM faults WHERE id = $1", id); err != nil {
		return fault.Fault{}, trapNoRows(err, fault.ErrNotFound, "selecting fault")
	}
	return r.fault(), nil
}

func (repo *faultRepository) UpdateFault(ctx context.Context, f fault.Fault, exec ...core.DBExecutor) (fault.Fault, error) {
	res, err := repo.exec(exec).NamedExecContext(ctx, `
		UPDATE faults SET
			machine_id = :machine_id, code = :code, title = :title, symptoms = :symptoms, cause = :cause,
			remedy = :remedy, severity = :severity, updated_at = :updated_at
		WHERE id = :id`,
		toFaultRow(f),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fault.Fault{}, fault.ErrCodeExists
		}
		return fault.Fault{}, errors.Wrap(err, "updating fault")
	}
	if err = checkRowsAffected(res, fault.ErrNotFound); err != nil {
		return fault.Fault{}, err
	}
	return f, nil
}

func (repo *faultRepository) DeleteFault(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.exec(exec).ExecContext(ctx, "DELETE FROM faults WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting fault")
	}
	return checkRowsAffected(res, fault.ErrNotFound)
}
