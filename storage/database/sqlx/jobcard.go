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
)

const (
	jobCardColumns = "id, company_id, number, machine_id, customer_id, technician_id, title, description, priority, " +
		"status, due_date, created_by, created_at, updated_at, completed_at"
	timeEntryColumns = "id, job_card_id, technician_id, started_at, ended_at, duration_seconds, note"
	signatureColumns = "id, job_card_id, step, signer_id, signer_name, signed_at, image_key, comment"
)

type jobCardRow struct {
	ID           string      `db:"id"`
	CompanyID    string      `db:"company_id"`
	Number       int         `db:"number"`
	MachineID    null.String `db:"machine_id"`
	CustomerID   null.String `db:"customer_id"`
	TechnicianID null.String `db:"technician_id"`
	Title        string      `db:"title"`
	Description  string      `db:"description"`
	Priority     string      `db:"priority"`
	Status       string      `db:"status"`
	DueDate      null.Time   `db:"due_date"`
	CreatedBy    string      `db:"created_by"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	CompletedAt  null.Time   `db:"completed_at"`
}

func toJobCardRow(jc jobcard.JobCard) jobCardRow {
	return jobCardRow{
		ID:           jc.ID,
		CompanyID:    jc.CompanyID,
		Number:       jc.Number,
		MachineID:    nullString(jc.MachineID),
		CustomerID:   nullString(jc.CustomerID),
		TechnicianID: nullString(jc.TechnicianID),
		Title:        jc.Title,
		Description:  jc.Description,
		Priority:     jc.Priority,
		Status:       jc.Status,
		DueDate:      null.TimeFromPtr(jc.DueDate),
		CreatedBy:    jc.CreatedBy,
		CreatedAt:    jc.CreatedAt.UTC(),
		UpdatedAt:    jc.UpdatedAt.UTC(),
		CompletedAt:  null.TimeFromPtr(jc.CompletedAt),
	}
}

func (r jobCardRow) jobCard() jobcard.JobCard {
	return jobcard.JobCard{
		ID:           r.ID,
		CompanyID:    r.CompanyID,
		Number:       r.Number,
		MachineID:    r.MachineID.String,
		CustomerID:   r.CustomerID.String,
		TechnicianID: r.TechnicianID.String,
		Title:        r.Title,
		Description:  r.Description,
		Priority:     r.Priority,
		Status:       r.Status,
		DueDate:      utcPtr(r.DueDate),
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		CompletedAt:  utcPtr(r.CompletedAt),
	}
}

type timeEntryRow struct {
	ID              string    `db:"id"`
	JobCardID       string    `db:"job_card_id"`
	TechnicianID    string    `db:"technician_id"`
	StartedAt       time.Time `db:"started_at"`
	EndedAt         null.Time `db:"ended_at"`
	DurationSeconds int64     `db:"duration_seconds"`
	Note            string    `db:"note"`
}

func (r timeEntryRow) timeEntry() jobcard.TimeEntry {
	return jobcard.TimeEntry{
		ID:              r.ID,
		JobCardID:       r.JobCardID,
		TechnicianID:    r.TechnicianID,
		StartedAt:       r.StartedAt.UTC(),
		EndedAt:         utcPtr(r.EndedAt),
		DurationSeconds: r.DurationSeconds,
		Note:            r.Note,
	}
}

type signatureRow struct {
	ID         string    `db:"id"`
	JobCardID  string    `db:"job_card_id"`
	Step       string    `db:"step"`
	SignerID   string    `db:"signer_id"`
	SignerName string    `db:"signer_name"`
	SignedAt   time.Time `db:"signed_at"`
	ImageKey   string    `db:"image_key"`
	Comment    string    `db:"comment"`
}

type jobCardRepository struct {
	repository
}

var _ jobcard.Repository = (*jobCardRepository)(nil)

func NewJobCardRepository(db core.DBExecutor) *jobCardRepository {
	return &jobCardRepository{repository{db: db}}
}

// NextNumber serializes numbering per company with a transaction-scoped advisory lock.
func (repo *jobCardRepository) NextNumber(ctx context.Context, companyID string, exec ...core.DBExecutor) (int, error) {
	ex := repo.exec(exec)
	if _, err := ex.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", companyID); err != nil {
		return 0, errors.Wrap(err, "locking job card numbers")
	}
	var n int
	err := ex.GetContext(ctx, &n, "SELECT coalesce(max(number), 0) + 1 FROM job_cards WHERE company_id = $1", companyID)
	return n, errors.Wrap(err, "selecting next job card number")
}

func (repo *jobCardRepository) CreateJobCard(ctx context.Context, jc jobcard.JobCard, exec ...core.DBExecutor) (jobcard.JobCard, error) {
	jc.ID = uuid.New().String()
	_, err := repo.exec(exec).NamedExecContext(ctx, `
		INSERT INTO job_cards (`+jobCardColumns+`)
		VALUES (:id, :company_id, :number, :machine_id, :customer_id, :technician_id, :title, :description, :priority,
			:status, :due_date, :created_by, :created_at, :updated_at, :completed_at)`,
		toJobCardRow(jc),
	)
	return jc, errors.Wrap(err, "inserting job card")
}

func (repo *jobCardRepository) QueryJobCards(ctx context.Context, filter *jobcard.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]jobcard.JobCard, error) {
	var w where
	if filter != nil {
		if filter.CompanyID != "" {
			w.add("company_id = ?", filter.CompanyID)
		}
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.Array(filter.Statuses))
		}
		if len(filter.Priorities) > 0 {
			w.add("priority = ANY(?)", pq.Array(filter.Priorities))
		}
		if filter.TechnicianID != "" {
			w.add("technician_id::text = ?", filter.TechnicianID)
		}
		if filter.CustomerID != "" {
			w.add("customer_id::text = ?", filter.CustomerID)
		}
		if filter.MachineID != "" {
			w.add("machine_id::text = ?", filter.MachineID)
		}
		if filter.Search != "" {
			w.search(filter.Search, "'JC-' || lpad(number::text, 6, '0')", "title", "description")
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}
	q, args := w.query("SELECT "+jobCardColumns+" FROM job_cards", orderBy(ordering, "created_at DESC"))

	var rows []jobCardRow
	if err := repo.exec(exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting job cards")
	}
	cards := make([]jobcard.JobCard, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.jobCard())
	}
	return cards, nil
}

func (repo *jobCardRepository) GetJobCard(ctx context.Context, id string, exec ...core.DBExecutor) (jobcard.JobCard, error) {
	if _, err := uuid.Parse(id); err != nil {
		return jobcard.JobCard{}, jobcard.ErrNotFound
	}
	var r jobCardRow
	err := repo.exec(exec).GetContext(ctx, &r, "SELECT "+jobCardColumns+" FROM job_cards WHERE id = $1", id)
	if err != nil {
		return jobcard.JobCard{}, trapNoRows(err, jobcard.ErrNotFound, "selecting job card")
	}
	return r.jobCard(), nil
}

func (repo *jobCardRepository) UpdateJobCard(ctx context.Context, jc jobcard.JobCard, exec ...core.DBExecutor) (jobcard.JobCard, error) {
	res, err := repo.exec(exec).NamedExecContext(ctx, `
		UPDATE job_cards SET
			machine_id = :machine_id, customer_id = :customer_id, technician_id = :technician_id,
			title = :title, description = :description, priority = :priority, status = :status,
			due_date = :due_date, updated_at = :updated_at, completed_at = :completed_at
		WHERE id = :id`,
		toJobCardRow(jc),
	)
	if err != nil {
		return jobcard.JobCard{}, errors.Wrap(err, "updating job card")
	}
	if err = checkRowsAffected(res, jobcard.ErrNotFound); err != nil {
		return jobcard.JobCard{}, err
	}
	return jc, nil
}

func (repo *jobCardRepository) DeleteJobCard(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.exec(exec).ExecContext(ctx, "DELETE FROM job_cards WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting job card")
	}
	return checkRowsAffected(res, jobcard.ErrNotFound)
}

func (repo *jobCardRepository) CreateTimeEntry(ctx context.Context, te jobcard.TimeEntry, exec ...core.DBExecutor) (jobcard.TimeEntry, error) {
	te.ID = uuid.New().String()
	_, err := repo.exec(exec).ExecContext(ctx,
		"INSERT INTO time_entries ("+timeEntryColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		te.ID, te.JobCardID, te.TechnicianID, te.StartedAt.UTC(), null.TimeFromPtr(te.EndedAt), te.DurationSeconds, te.Note,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return jobcard.TimeEntry{}, jobcard.ErrTimerRunning
		}
		return jobcard.TimeEntry{}, errors.Wrap(err, "inserting time entry")
	}
	return te, nil
}

func (repo *jobCardRepository) UpdateTimeEntry(ctx context.Context, te jobcard.TimeEntry, exec ...core.DBExecutor) (jobcard.TimeEntry, error) {
	res, err := repo.exec(exec).ExecContext(ctx,
		"UPDATE time_entries SET ended_at = $2, duration_seconds = $3, note = $4 WHERE id = $1",
		te.ID, null.TimeFromPtr(te.EndedAt), te.DurationSeconds, te.Note,
	)
	if err != nil {
		return jobcard.TimeEntry{}, errors.Wrap(err, "updating time entry")
	}
	if err = checkRowsAffected(res, jobcard.ErrEntryNotFound); err != nil {
		return jobcard.TimeEntry{}, err
	}
	return te, nil
}

func (repo *jobCardRepository) QueryTimeEntries(ctx context.Context, filter jobcard.TimeEntryFilter, exec ...core.DBExecutor) ([]jobcard.TimeEntry, error) {
	var w where
	if filter.JobCardID != "" {
		w.add("job_card_id::text = ?", filter.JobCardID)
	}
	if filter.TechnicianID != "" {
		w.add("technician_id::text = ?", filter.TechnicianID)
	}
	if filter.RunningOnly {
		w.add("ended_at IS NULL")
	}
	if !filter.From.IsZero() {
		w.add("started_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		w.add("started_at < ?", filter.To.UTC())
	}
	suffix := " ORDER BY started_at ASC"
	if filter.RunningOnly {
		suffix += " FOR UPDATE"
	}
	q, args := w.query("SELECT "+timeEntryColumns+" FROM time_entries", suffix)

	var rows []timeEntryRow
	if err := repo.exec(exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting time entries")
	}
	entries := make([]jobcard.TimeEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.timeEntry())
	}
	return entries, nil
}

func (repo *jobCardRepository) CreateSignature(ctx context.Context, sig jobcard.Signature, exec ...core.DBExecutor) (jobcard.Signature, error) {
	sig.ID = uuid.New().String()
	sig.SignedAt = sig.SignedAt.UTC()
	_, err := repo.exec(exec).NamedExecContext(ctx, `
		INSERT INTO signatures (`+signatureColumns+`)
		VALUES (:id, :job_card_id, :step, :signer_id, :signer_name, :signed_at, :image_key, :comment)`,
		signatureRow(sig),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return jobcard.Signature{}, jobcard.ErrAlreadySigned
		}
		return jobcard.Signature{}, errors.Wrap(err, "inserting signature")
	}
	return sig, nil
}

func (repo *jobCardRepository) QuerySignatures(ctx context.Context, jobCardID string, exec ...core.DBExecutor) ([]jobcard.Signature, error) {
	var rows []signatureRow
	err := repo.exec(exec).SelectContext(ctx, &rows,
		"SELECT "+signatureColumns+" FROM signatures WHERE job_card_id::text = $1 ORDER BY signed_at ASC", jobCardID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting signatures")
	}
	sigs := make([]jobcard.Signature, 0, len(rows))
	for _, r := range rows {
		sig := jobcard.Signature(r)
		sig.SignedAt = sig.SignedAt.UTC()
		sigs = append(sigs, sig)
	}
	return sigs, nil
}
