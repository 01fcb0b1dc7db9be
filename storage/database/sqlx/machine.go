package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/sop"
)

const machineColumns = "id, company_id, name, model, serial_number, location, qr_token, installed_at, created_at, updated_at"

type machineRow struct {
	ID           string    `db:"id"`
	CompanyID    string    `db:"company_id"`
	Name         string    `db:"name"`
	Model        string    `db:"model"`
	SerialNumber string    `db:"serial_number"`
	Location     string    `db:"location"`
	QRToken      string    `db:"qr_token"`
	InstalledAt  null.Time `db:"installed_at"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func toMachineRow(m machine.Machine) machineRow {
	return machineRow{
		ID:           m.ID,
		CompanyID:    m.CompanyID,
		Name:         m.Name,
		Model:        m.Model,
		SerialNumber: m.SerialNumber,
		Location:     m.Location,
		QRToken:      m.QRToken,
		InstalledAt:  null.TimeFromPtr(m.InstalledAt),
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func (r machineRow) machine() machine.Machine {
	return machine.Machine{
		ID:           r.ID,
		CompanyID:    r.CompanyID,
		Name:         r.Name,
		Model:        r.Model,
		SerialNumber: r.SerialNumber,
		Location:     r.Location,
		QRToken:      r.QRToken,
		InstalledAt:  utcPtr(r.InstalledAt),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

type machineRepository struct {
	repository
}

var (
	_ machine.Repository       = (*machineRepository)(nil)
	_ machine.PortalRepository = (*machineRepository)(nil)
)

func NewMachineRepository(db core.DBExecutor) *machineRepository {
	return &machineRepository{repository{db: db}}
}

func (repo *machineRepository) CheckSerialUniqueness(ctx context.Context, companyID, serial, excludedID string, exec ...core.DBExecutor) error {
	var w where
	w.add("company_id = ?", companyID)
	w.add("lower(serial_number) = lower(?)", serial)
	if excludedID != "" {
		w.add("id <> ?", excludedID)
	}
	q, args := w.query("SELECT EXISTS (SELECT 1 FROM machines", ")")

	var exists bool
	if err := repo.exec(exec).GetContext(ctx, &exists, q, args...); err != nil {
		return errors.Wrap(err, "checking serial number uniqueness")
	}
	if exists {
		return machine.ErrSerialExists
	}
	return nil
}

func (repo *machineRepository) CreateMachine(ctx context.Context, m machine.Machine, exec ...core.DBExecutor) (machine.Machine, error) {
	m.ID = uuid.New().String()
	_, err := repo.exec(exec).NamedExecContext(ctx, `
		INSERT INTO machines (`+machineColumns+`)
		VALUES (:id, :company_id, :name, :model, :serial_number, :location, :qr_token, :installed_at, :created_at, :updated_at)`,
		toMachineRow(m),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return machine.Machine{}, machine.ErrSerialExists
		}
		return machine.Machine{}, errors.Wrap(err, "inserting machine")
	}
	return m, nil
}

func (repo *machineRepository) QueryMachines(ctx context.Context, filter *machine.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]machine.Machine, error) {
	var w where
	if filter != nil {
		if filter.CompanyID != "" {
			w.add("company_id = ?", filter.CompanyID)
		}
		if filter.Search != "" {
			w.search(filter.Search, "name", "model", "serial_number", "location")
		}
	}
	q, args := w.query("SELECT "+machineColumns+" FROM machines", orderBy(ordering, "name ASC"))

	var rows []machineRow
	if err := repo.exec(exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting machines")
	}
	machines := make([]machine.Machine, 0, len(rows))
	for _, r := range rows {
		machines = append(machines, r.machine())
	}
	return machines, nil
}

func (repo *machineRepository) GetMachine(ctx context.Context, filter machine.GetFilter, exec ...core.DBExecutor) (machine.Machine, error) {
	var w where
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return machine.Machine{}, machine.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.QRToken != "":
		w.add("qr_token = ?", filter.QRToken)
	default:
		return machine.Machine{}, machine.ErrNotFound
	}
	q, args := w.query("SELECT "+machineColumns+" FROM machines", "")

	var r machineRow
	if err := repo.exec(exec).GetContext(ctx, &r, q, args...); err != nil {
		return machine.Machine{}, trapNoRows(err, machine.ErrNotFound, "selecting machine")
	}
	return r.machine(), nil
}

func (repo *machineRepository) UpdateMachine(ctx context.Context, m machine.Machine, exec ...core.DBExecutor) (machine.Machine, error) {
	res, err := repo.exec(exec).NamedExecContext(ctx, `
		UPDATE machines SET
			name = :name, model = :model, serial_number = :serial_number, location = :location,
			qr_token = :qr_token, installed_at = :installed_at, updated_at = :updated_at
		WHERE id = :id`,
		toMachineRow(m),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return machine.Machine{}, machine.ErrSerialExists
		}
		return machine.Machine{}, errors.Wrap(err, "updating machine")
	}
	if err = checkRowsAffected(res, machine.ErrNotFound); err != nil {
		return machine.Machine{}, err
	}
	return m, nil
}

func (repo *machineRepository) DeleteMachine(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.exec(exec).ExecContext(ctx, "DELETE FROM machines WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting machine")
	}
	return checkRowsAffected(res, machine.ErrNotFound)
}

func (repo *machineRepository) PortalSOPs(ctx context.Context, machineID string) ([]machine.PortalSOP, error) {
	var rows []struct {
		Code    string `db:"code"`
		Title   string `db:"title"`
		Version int    `db:"version"`
	}
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT code, title, version FROM sops WHERE machine_id = $1 AND status = $2 ORDER BY code",
		machineID, sop.StatusPublished,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting portal sops")
	}
	sops := make([]machine.PortalSOP, 0, len(rows))
	for _, r := range rows {
		sops = append(sops, machine.PortalSOP{Code: r.Code, Title: r.Title, Version: r.Version})
	}
	return sops, nil
}

func (repo *machineRepository) PortalFaults(ctx context.Context, machineID string) ([]machine.PortalFault, error) {
	var rows []struct {
		Code     string `db:"code"`
		Title    string `db:"title"`
		Severity string `db:"severity"`
		Remedy   string `db:"remedy"`
	}
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT code, title, severity, remedy FROM faults WHERE machine_id = $1 ORDER BY code", machineID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting portal faults")
	}
	faults := make([]machine.PortalFault, 0, len(rows))
	for _, r := range rows {
		faults = append(faults, machine.PortalFault{Code: r.Code, Title: r.Title, Severity: r.Severity, Remedy: r.Remedy})
	}
	return faults, nil
}

func (repo *machineRepository) CountOpenJobCards(ctx context.Context, machineID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n,
		"SELECT count(*) FROM job_cards WHERE machine_id = $1 AND status = ANY($2)",
		machineID, pq.Array(jobcard.OpenStatuses),
	)
	return n, errors.Wrap(err, "counting open job cards")
}
