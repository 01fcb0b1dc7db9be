package jobcard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/user"
)

var (
	ErrTimerRunning    = errors.New("a timer is already running on this job card")
	ErrTimerNotRunning = errors.New("no timer is running on this job card")
)

// timerStatuses are the statuses a timer may be started from.
var timerStatuses = []string{StatusAssigned, StatusInProgress, StatusOnHold}

type (
	// TimeTracker logs the work time of the assigned technician on a job card.
	// Every pause or stop persists a closed TimeEntry right away.
	TimeTracker interface {
		// Start opens a time entry and moves the job card to in_progress.
		Start(ctx context.Context, actor user.User, jc JobCard, st StartTimer) (TimeEntry, JobCard, error)
		// Resume is Start after a Pause.
		Resume(ctx context.Context, actor user.User, jc JobCard, st StartTimer) (TimeEntry, JobCard, error)
		// Pause closes the running entry and moves the job card to on_hold.
		Pause(ctx context.Context, actor user.User, jc JobCard) (TimeEntry, JobCard, error)
		// Stop closes the running entry. The job card moves to completed when st.Complete is set.
		// A paused job card may be completed without a running entry.
		Stop(ctx context.Context, actor user.User, jc JobCard, st StopTimer) (TimeEntry, JobCard, error)
		Summary(ctx context.Context, jc JobCard) (TimeSummary, error)
	}

	timeTracker struct {
		db   core.Transactor
		repo Repository
		now  func() time.Time
	}
)

var _ TimeTracker = (*timeTracker)(nil)

// NewTimeTracker returns a TimeTracker reading the time from now, core.Now if nil.
func NewTimeTracker(db core.Transactor, repo Repository, now func() time.Time) TimeTracker {
	if now == nil {
		now = core.Now
	}
	return &timeTracker{db: db, repo: repo, now: func() time.Time { return now().UTC() }}
}

func (tt *timeTracker) checkTechnician(actor user.User, jc JobCard) error {
	if !actor.IsTechnician() || jc.TechnicianID == "" || jc.TechnicianID != actor.ID || !actor.BelongsTo(jc.CompanyID) {
		return core.NewPermissionError("only the assigned technician can track time on this job card")
	}
	return nil
}

func (tt *timeTracker) running(ctx context.Context, jc JobCard, technicianID string, exec core.DBExecutor) (*TimeEntry, error) {
	entries, err := tt.repo.QueryTimeEntries(ctx, TimeEntryFilter{
		JobCardID:    jc.ID,
		TechnicianID: technicianID,
		RunningOnly:  true,
	}, exec)
	if err != nil {
		return nil, errors.Wrap(err, "querying running time entry")
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (tt *timeTracker) Start(ctx context.Context, actor user.User, jc JobCard, st StartTimer) (TimeEntry, JobCard, error) {
	if err := tt.checkTechnician(actor, jc); err != nil {
		return TimeEntry{}, JobCard{}, err
	}
	if !contains(timerStatuses, jc.Status) {
		return TimeEntry{}, JobCard{}, core.NewFieldError("status", "time cannot be tracked on a "+jc.Status+" job card")
	}

	now := tt.now()
	te := TimeEntry{
		JobCardID:    jc.ID,
		TechnicianID: actor.ID,
		StartedAt:    now,
		Note:         core.CleanString(st.Note),
	}
	err := tt.db.WithTx(ctx, func(exec core.DBExecutor) error {
		running, err := tt.running(ctx, jc, actor.ID, exec)
		if err != nil {
			return err
		}
		if running != nil {
			return core.NewValidationError(ErrTimerRunning, core.FieldError{Field: "timer", Error: ErrTimerRunning.Error()})
		}
		if te, err = tt.repo.CreateTimeEntry(ctx, te, exec); err != nil {
			return errors.Wrap(err, "creating time entry")
		}
		if jc.Status != StatusInProgress {
			jc.setStatus(StatusInProgress, now)
			jc, err = tt.repo.UpdateJobCard(ctx, jc, exec)
		}
		return err
	})
	if err != nil {
		return TimeEntry{}, JobCard{}, errors.Wrap(err, "starting timer")
	}
	return te, jc, nil
}

func (tt *timeTracker) Resume(ctx context.Context, actor user.User, jc JobCard, st StartTimer) (TimeEntry, JobCard, error) {
	return tt.Start(ctx, actor, jc, st)
}

func (tt *timeTracker) Pause(ctx context.Context, actor user.User, jc JobCard) (TimeEntry, JobCard, error) {
	return tt.stop(ctx, actor, jc, "", StatusOnHold)
}

func (tt *timeTracker) Stop(ctx context.Context, actor user.User, jc JobCard, st StopTimer) (TimeEntry, JobCard, error) {
	var status string
	if st.Complete {
		status = StatusCompleted
	}
	return tt.stop(ctx, actor, jc, core.CleanString(st.Note), status)
}

// stop closes the running entry and moves jc to status, if any.
func (tt *timeTracker) stop(ctx context.Context, actor user.User, jc JobCard, note, status string) (TimeEntry, JobCard, error) {
	if err := tt.checkTechnician(actor, jc); err != nil {
		return TimeEntry{}, JobCard{}, err
	}

	var te TimeEntry
	now := tt.now()
	err := tt.db.WithTx(ctx, func(exec core.DBExecutor) error {
		running, err := tt.running(ctx, jc, actor.ID, exec)
		if err != nil {
			return err
		}
		switch {
		case running != nil:
			te = *running
			te.close(now)
			if note != "" {
				te.Note = note
			}
			if te, err = tt.repo.UpdateTimeEntry(ctx, te, exec); err != nil {
				return errors.Wrap(err, "closing time entry")
			}
		case jc.Status == StatusOnHold && status == StatusCompleted:
			// paused work, nothing to close
		default:
			return core.NewValidationError(ErrTimerNotRunning, core.FieldError{Field: "timer", Error: ErrTimerNotRunning.Error()})
		}

		if status != "" && jc.Status != status {
			if !CanTransition(jc.Status, status) {
				return core.NewValidationError(ErrInvalidTransition, core.FieldError{
					Field: "status",
					Error: "cannot move from " + jc.Status + " to " + status,
				})
			}
			jc.setStatus(status, now)
			jc, err = tt.repo.UpdateJobCard(ctx, jc, exec)
		}
		return err
	})
	if err != nil {
		return TimeEntry{}, JobCard{}, errors.Wrap(err, "stopping timer")
	}
	return te, jc, nil
}

// Summary totals the closed entries of jc plus the elapsed time of the running ones.
func (tt *timeTracker) Summary(ctx context.Context, jc JobCard) (TimeSummary, error) {
	entries, err := tt.repo.QueryTimeEntries(ctx, TimeEntryFilter{JobCardID: jc.ID})
	if err != nil {
		return TimeSummary{}, errors.Wrap(err, "querying time entries")
	}

	now := tt.now()
	sum := TimeSummary{JobCardID: jc.ID, Entries: entries}
	for i, te := range entries {
		sum.TotalSeconds += te.Elapsed(now)
		if te.IsRunning() && sum.Running == nil {
			sum.Running = &entries[i]
		}
	}
	if sum.Entries == nil {
		sum.Entries = []TimeEntry{}
	}
	return sum, nil
}
