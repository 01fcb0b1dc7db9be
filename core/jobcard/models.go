package jobcard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/thinkquality/thinkquality/core"
)

// Statuses
const (
	StatusOpen       = "open"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusOnHold     = "on_hold"
	StatusCompleted  = "completed"
	StatusSignedOff  = "signed_off"
	StatusCancelled  = "cancelled"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	AllStatuses   = []string{StatusOpen, StatusAssigned, StatusInProgress, StatusOnHold, StatusCompleted, StatusSignedOff, StatusCancelled}
	AllPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

	// OpenStatuses are the statuses of job cards still needing work.
	OpenStatuses = []string{StatusOpen, StatusAssigned, StatusInProgress, StatusOnHold}

	transitions = map[string][]string{
		StatusOpen:       {StatusAssigned, StatusCancelled},
		StatusAssigned:   {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusOnHold, StatusCompleted, StatusCancelled},
		StatusOnHold:     {StatusInProgress, StatusCompleted, StatusCancelled},
		StatusCompleted:  {StatusSignedOff, StatusInProgress},
	}

	// technicianStatuses are the only statuses a technician moves job cards between.
	technicianStatuses = []string{StatusAssigned, StatusInProgress, StatusOnHold, StatusCompleted}
)

func contains(values []string, v string) bool {
	for _, val := range values {
		if val == v {
			return true
		}
	}
	return false
}

// CanTransition reports whether a job card may move from one status to another.
func CanTransition(from, to string) bool {
	return contains(transitions[from], to)
}

func IsOpenStatus(status string) bool { return contains(OpenStatuses, status) }

type JobCard struct {
	ID           string     `json:"id"`
	CompanyID    string     `json:"company_id"`
	Number       int        `json:"number"`
	MachineID    string     `json:"machine_id"`
	CustomerID   string     `json:"customer_id"`
	TechnicianID string     `json:"technician_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	DueDate      *time.Time `json:"due_date"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// Reference is the human readable job card number, e.g. JC-000042.
func (jc JobCard) Reference() string {
	return FormatNumber(jc.Number)
}

func (jc JobCard) MarshalJSON() ([]byte, error) {
	type alias JobCard
	return json.Marshal(struct {
		alias
		Reference string `json:"reference"`
	}{alias(jc), jc.Reference()})
}

// IsOverdue reports whether jc is still open past its due date.
func (jc JobCard) IsOverdue(now time.Time) bool {
	return jc.DueDate != nil && IsOpenStatus(jc.Status) && jc.DueDate.Before(now)
}

func FormatNumber(n int) string {
	return fmt.Sprintf("JC-%06d", n)
}

// ParseNumber parses a reference such as JC-000042 (or a bare 42).
func ParseNumber(ref string) (int, bool) {
	ref = strings.TrimPrefix(strings.ToUpper(core.CleanString(ref)), "JC-")
	n, err := strconv.Atoi(ref)
	return n, err == nil && n > 0
}

// setStatus moves jc to the given status and keeps CompletedAt in sync.
func (jc *JobCard) setStatus(status string, now time.Time) {
	jc.Status = status
	jc.UpdatedAt = now
	switch status {
	case StatusCompleted:
		jc.CompletedAt = &now
	case StatusInProgress, StatusOnHold, StatusCancelled:
		jc.CompletedAt = nil
	}
}

type NewJobCard struct {
	CompanyID   string     `json:"company_id" validate:"omitempty,uuid"`
	MachineID   string     `json:"machine_id" validate:"omitempty,uuid"`
	CustomerID  string     `json:"customer_id" validate:"omitempty,uuid"`
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"due_date"`
}

func (nj *NewJobCard) Validate(validate *validator.Validate) error {
	nj.CompanyID = core.CleanString(nj.CompanyID, true /* lower */)
	nj.MachineID = core.CleanString(nj.MachineID, true /* lower */)
	nj.CustomerID = core.CleanString(nj.CustomerID, true /* lower */)
	nj.Title = core.CleanString(nj.Title)
	nj.Description = core.CleanString(nj.Description)
	nj.Priority = core.CleanString(nj.Priority, true /* lower */)
	if nj.Priority == "" {
		nj.Priority = PriorityMedium
	}
	return validate.Struct(nj)
}

type UpdateJobCard struct {
	MachineID   *string    `json:"machine_id" validate:"omitempty,uuid"`
	CustomerID  *string    `json:"customer_id" validate:"omitempty,uuid"`
	Title       *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"due_date"`
}

func (uj *UpdateJobCard) Validate(validate *validator.Validate) error {
	for _, s := range []*string{uj.MachineID, uj.CustomerID, uj.Priority} {
		if s != nil {
			*s = core.CleanString(*s, true /* lower */)
		}
	}
	for _, s := range []*string{uj.Title, uj.Description} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(uj)
}

func (uj UpdateJobCard) Apply(jc *JobCard) {
	if uj.MachineID != nil {
		jc.MachineID = *uj.MachineID
	}
	if uj.CustomerID != nil {
		jc.CustomerID = *uj.CustomerID
	}
	if uj.Title != nil {
		jc.Title = *uj.Title
	}
	if uj.Description != nil {
		jc.Description = *uj.Description
	}
	if uj.Priority != nil {
		jc.Priority = *uj.Priority
	}
	if uj.DueDate != nil {
		jc.DueDate = uj.DueDate
	}
}

type AssignJobCard struct {
	TechnicianID string `json:"technician_id" validate:"required,uuid"`
}

type TransitionJobCard struct {
	Status string `json:"status" validate:"required,oneof=open assigned in_progress on_hold completed signed_off cancelled"`
}

type QueryFilter struct {
	CompanyID    string    `query:"company_id"`
	Statuses     []string  `query:"status"`
	Priorities   []string  `query:"priority"`
	TechnicianID string    `query:"technician_id"`
	CustomerID   string    `query:"customer_id"`
	MachineID    string    `query:"machine_id"`
	Search       string    `query:"search"`
	CreatedFrom  time.Time `query:"created_from"`
	CreatedTo    time.Time `query:"created_to"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	for i, s := range qf.Statuses {
		qf.Statuses[i] = core.CleanString(s, true /* lower */)
	}
	for i, p := range qf.Priorities {
		qf.Priorities[i] = core.CleanString(p, true /* lower */)
	}
}

// Match reports whether jc satisfies every set field of the filter.
// Search does a case-insensitive match on the reference, title or description.
func (qf *QueryFilter) Match(jc JobCard) bool {
	if qf == nil {
		return true
	}
	switch {
	case qf.CompanyID != "" && jc.CompanyID != qf.CompanyID,
		len(qf.Statuses) > 0 && !contains(qf.Statuses, jc.Status),
		len(qf.Priorities) > 0 && !contains(qf.Priorities, jc.Priority),
		qf.TechnicianID != "" && jc.TechnicianID != qf.TechnicianID,
		qf.CustomerID != "" && jc.CustomerID != qf.CustomerID,
		qf.MachineID != "" && jc.MachineID != qf.MachineID,
		!qf.CreatedFrom.IsZero() && jc.CreatedAt.Before(qf.CreatedFrom.UTC()),
		!qf.CreatedTo.IsZero() && jc.CreatedAt.After(qf.CreatedTo.UTC()):
		return false
	}
	return qf.Search == "" || core.ContainsFold(qf.Search, jc.Reference(), jc.Title, jc.Description)
}

// TimeEntry is a span of work logged by a technician on a job card.
// EndedAt is nil while the entry is running.
type TimeEntry struct {
	ID              string     `json:"id"`
	JobCardID       string     `json:"job_card_id"`
	TechnicianID    string     `json:"technician_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	DurationSeconds int64      `json:"duration_seconds"`
	Note            string     `json:"note"`
}

func (te TimeEntry) IsRunning() bool { return te.EndedAt == nil }

// close ends te at now. The duration is floored to whole seconds.
func (te *TimeEntry) close(now time.Time) {
	if now.Before(te.StartedAt) {
		now = te.StartedAt
	}
	te.EndedAt = &now
	te.DurationSeconds = int64(now.Sub(te.StartedAt) / time.Second)
}

// Elapsed returns the seconds te covers up to now.
func (te TimeEntry) Elapsed(now time.Time) int64 {
	if !te.IsRunning() {
		return te.DurationSeconds
	}
	if now.Before(te.StartedAt) {
		return 0
	}
	return int64(now.Sub(te.StartedAt) / time.Second)
}

type TimeEntryFilter struct {
	JobCardID    string
	TechnicianID string
	RunningOnly  bool
	From         time.Time // started at or after
	To           time.Time // started before
}

func (tf TimeEntryFilter) Match(te TimeEntry) bool {
	switch {
	case tf.JobCardID != "" && te.JobCardID != tf.JobCardID,
		tf.TechnicianID != "" && te.TechnicianID != tf.TechnicianID,
		tf.RunningOnly && !te.IsRunning(),
		!tf.From.IsZero() && te.StartedAt.Before(tf.From),
		!tf.To.IsZero() && !te.StartedAt.Before(tf.To):
		return false
	}
	return true
}

type TimeSummary struct {
	JobCardID    string      `json:"job_card_id"`
	TotalSeconds int64       `json:"total_seconds"`
	Running      *TimeEntry  `json:"running"`
	Entries      []TimeEntry `json:"entries"`
}

type StartTimer struct {
	Note string `json:"note" validate:"max=1000"`
}

type StopTimer struct {
	Note     string `json:"note" validate:"max=1000"`
	Complete bool   `json:"complete"`
}
