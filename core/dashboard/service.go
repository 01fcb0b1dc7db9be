package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/user"
)

type (
	// Dashboard is the role-scoped home screen summary. Unused sections are omitted.
	Dashboard struct {
		Role string `json:"role"`

		// admin
		StatusCounts      map[string]int    `json:"status_counts,omitempty"`
		Overdue           []jobcard.JobCard `json:"overdue,omitempty"`
		ActiveTechnicians int               `json:"active_technicians,omitempty"`

		// technician
		Assigned     []jobcard.JobCard `json:"assigned,omitempty"`
		InProgress   []jobcard.JobCard `json:"in_progress,omitempty"`
		TodaySeconds int64             `json:"today_seconds,omitempty"`

		// customer
		OpenJobCards []jobcard.JobCard `json:"open_job_cards,omitempty"`
		Machines     []machine.Machine `json:"machines,omitempty"`
	}

	JobCardQuerier interface {
		Query(ctx context.Context, actor user.User, filter *jobcard.QueryFilter, ordering []core.DBOrdering) ([]jobcard.JobCard, error)
	}

	TimeEntryQuerier interface {
		QueryTimeEntries(ctx context.Context, filter jobcard.TimeEntryFilter, exec ...core.DBExecutor) ([]jobcard.TimeEntry, error)
	}

	UserQuerier interface {
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	MachineQuerier interface {
		Query(ctx context.Context, filter *machine.QueryFilter, ordering []core.DBOrdering) ([]machine.Machine, error)
	}

	Service interface {
		Get(ctx context.Context, actor user.User) (Dashboard, error)
	}

	service struct {
		jobCards    JobCardQuerier
		timeEntries TimeEntryQuerier
		users       UserQuerier
		machines    MachineQuerier
	}
)

var _ Service = (*service)(nil)

func NewService(jobCards JobCardQuerier, timeEntries TimeEntryQuerier, users UserQuerier, machines MachineQuerier) Service {
	return &service{jobCards: jobCards, timeEntries: timeEntries, users: users, machines: machines}
}

var byDueDate = []core.DBOrdering{{Field: "due_date", Ascending: true}, {Field: "created_at", Ascending: true}}

func (svc *service) Get(ctx context.Context, actor user.User) (Dashboard, error) {
	d := Dashboard{Role: actor.Role}
	var err error
	switch {
	case actor.IsAdmin():
		err = svc.admin(ctx, actor, &d)
	case actor.IsTechnician():
		err = svc.technician(ctx, actor, &d)
	case actor.IsCustomer():
		err = svc.customer(ctx, actor, &d)
	default:
		err = core.NewPermissionError("")
	}
	return d, err
}

func (svc *service) admin(ctx context.Context, actor user.User, d *Dashboard) error {
	cards, err := svc.jobCards.Query(ctx, actor, nil, byDueDate)
	if err != nil {
		return errors.Wrap(err, "querying job cards")
	}
	now := core.Now()
	d.StatusCounts = make(map[string]int, len(jobcard.AllStatuses))
	for _, s := range jobcard.AllStatuses {
		d.StatusCounts[s] = 0
	}
	d.Overdue = []jobcard.JobCard{}
	for _, jc := range cards {
		d.StatusCounts[jc.Status]++
		if jc.IsOverdue(now) {
			d.Overdue = append(d.Overdue, jc)
		}
	}

	active := true
	techs, err := svc.users.Query(ctx, &user.QueryFilter{
		CompanyID: actor.CompanyID,
		Roles:     []string{user.RoleTechnician},
		IsActive:  &active,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "querying technicians")
	}
	d.ActiveTechnicians = len(techs)
	return nil
}

func (svc *service) technician(ctx context.Context, actor user.User, d *Dashboard) error {
	cards, err := svc.jobCards.Query(ctx, actor, &jobcard.QueryFilter{
		Statuses: []string{jobcard.StatusAssigned, jobcard.StatusInProgress, jobcard.StatusOnHold},
	}, byDueDate)
	if err != nil {
		return errors.Wrap(err, "querying job cards")
	}
	d.Assigned, d.InProgress = []jobcard.JobCard{}, []jobcard.JobCard{}
	for _, jc := range cards {
		if jc.Status == jobcard.StatusInProgress {
			d.InProgress = append(d.InProgress, jc)
		} else {
			d.Assigned = append(d.Assigned, jc)
		}
	}

	now := core.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	entries, err := svc.timeEntries.QueryTimeEntries(ctx, jobcard.TimeEntryFilter{
		TechnicianID: actor.ID,
		From:         midnight,
	})
	if err != nil {
		return errors.Wrap(err, "querying time entries")
	}
	for _, te := range entries {
		d.TodaySeconds += te.Elapsed(now)
	}
	return nil
}

func (svc *service) customer(ctx context.Context, actor user.User, d *Dashboard) error {
	cards, err := svc.jobCards.Query(ctx, actor, &jobcard.QueryFilter{Statuses: append([]string(nil), jobcard.OpenStatuses...)}, byDueDate)
	if err != nil {
		return errors.Wrap(err, "querying job cards")
	}
	d.OpenJobCards = cards

	d.Machines, err = svc.machines.Query(ctx, &machine.QueryFilter{CompanyID: actor.CompanyID}, []core.DBOrdering{{Field: "name", Ascending: true}})
	return errors.Wrap(err, "querying machines")
}
