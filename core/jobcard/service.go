package jobcard

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/user"
)

var (
	ErrNotFound          = errors.New("job card not found")
	ErrEntryNotFound     = errors.New("time entry not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type (
	Repository interface {
		// NextNumber returns the next job card number of the company. Must run in a transaction.
		NextNumber(ctx context.Context, companyID string, exec ...core.DBExecutor) (int, error)
		CreateJobCard(ctx context.Context, jc JobCard, exec ...core.DBExecutor) (JobCard, error)
		QueryJobCards(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]JobCard, error)
		GetJobCard(ctx context.Context, id string, exec ...core.DBExecutor) (JobCard, error)
		UpdateJobCard(ctx context.Context, jc JobCard, exec ...core.DBExecutor) (JobCard, error)
		DeleteJobCard(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateTimeEntry(ctx context.Context, te TimeEntry, exec ...core.DBExecutor) (TimeEntry, error)
		UpdateTimeEntry(ctx context.Context, te TimeEntry, exec ...core.DBExecutor) (TimeEntry, error)
		QueryTimeEntries(ctx context.Context, filter TimeEntryFilter, exec ...core.DBExecutor) ([]TimeEntry, error)

		CreateSignature(ctx context.Context, sig Signature, exec ...core.DBExecutor) (Signature, error)
		QuerySignatures(ctx context.Context, jobCardID string, exec ...core.DBExecutor) ([]Signature, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	MachineGetter interface {
		GetByID(ctx context.Context, id string) (machine.Machine, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.User, nj NewJobCard) (JobCard, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]JobCard, error)
		Get(ctx context.Context, actor user.User, id string) (JobCard, error)
		Update(ctx context.Context, actor user.User, jc JobCard, uj UpdateJobCard) (JobCard, error)
		Assign(ctx context.Context, actor user.User, jc JobCard, technicianID string) (JobCard, error)
		Transition(ctx context.Context, actor user.User, jc JobCard, status string) (JobCard, error)
		Delete(ctx context.Context, actor user.User, jc JobCard) error
	}

	service struct {
		db       core.Transactor
		repo     Repository
		users    UserGetter
		machines MachineGetter
		mailSvc  core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(db core.Transactor, repo Repository, users UserGetter, machines MachineGetter, mailSvc core.EmailService) Service {
	return &service{
		db:       db,
		repo:     repo,
		users:    users,
		machines: machines,
		mailSvc:  mailSvc,
	}
}

// CanView reports whether actor may read jc.
func CanView(actor user.User, jc JobCard) bool {
	switch {
	case actor.IsSuperAdmin():
		return true
	case !actor.BelongsTo(jc.CompanyID):
		return false
	case actor.IsAdmin():
		return true
	case actor.IsTechnician():
		return jc.TechnicianID != "" && jc.TechnicianID == actor.ID
	case actor.IsCustomer():
		return jc.CustomerID != "" && jc.CustomerID == actor.ID
	}
	return false
}

func canAdminister(actor user.User, jc JobCard) bool {
	return actor.IsAdmin() && actor.BelongsTo(jc.CompanyID)
}

// Create opens a job card. Customers open job cards for themselves.
func (svc *service) Create(ctx context.Context, actor user.User, nj NewJobCard) (JobCard, error) {
	switch {
	case actor.IsSuperAdmin():
		if nj.CompanyID == "" {
			return JobCard{}, core.NewFieldError("company_id", "this field is required")
		}
	case actor.IsAdmin():
		nj.CompanyID = actor.CompanyID
	case actor.IsCustomer():
		nj.CompanyID = actor.CompanyID
		nj.CustomerID = actor.ID
	default:
		return JobCard{}, core.NewPermissionError("")
	}

	if err := svc.checkRefs(ctx, nj.CompanyID, nj.MachineID, nj.CustomerID); err != nil {
		return JobCard{}, err
	}

	now := core.Now()
	jc := JobCard{
		CompanyID:   nj.CompanyID,
		MachineID:   nj.MachineID,
		CustomerID:  nj.CustomerID,
		Title:       nj.Title,
		Description: nj.Description,
		Priority:    nj.Priority,
		Status:      StatusOpen,
		DueDate:     nj.DueDate,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if jc.Number, err = svc.repo.NextNumber(ctx, jc.CompanyID, exec); err != nil {
			return errors.Wrap(err, "numbering job card")
		}
		jc, err = svc.repo.CreateJobCard(ctx, jc, exec)
		return err
	})
	return jc, errors.Wrap(err, "creating job card")
}

// checkRefs makes sure the referenced machine and customer belong to the company.
func (svc *service) checkRefs(ctx context.Context, companyID, machineID, customerID string) error {
	if machineID != "" {
		m, err := svc.machines.GetByID(ctx, machineID)
		if err != nil && errors.Cause(err) != machine.ErrNotFound {
			return errors.Wrap(err, "getting machine")
		}
		if err != nil || m.CompanyID != companyID {
			return core.NewFieldError("machine_id", "machine not found")
		}
	}
	if customerID != "" {
		usr, err := svc.users.GetByID(ctx, customerID)
		if err != nil && errors.Cause(err) != user.ErrNotFound {
			return errors.Wrap(err, "getting customer")
		}
		if err != nil || !usr.IsCustomer() || usr.CompanyID != companyID {
			return core.NewFieldError("customer_id", "customer not found")
		}
	}
	return nil
}

// Query lists the job cards visible to actor.
func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]JobCard, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case actor.IsSuperAdmin():
	case actor.IsAdmin():
		filter.CompanyID = actor.CompanyID
	case actor.IsTechnician():
		filter.CompanyID = actor.CompanyID
		filter.TechnicianID = actor.ID
	case actor.IsCustomer():
		filter.CompanyID = actor.CompanyID
		filter.CustomerID = actor.ID
	default:
		return nil, core.NewPermissionError("")
	}
	return svc.repo.QueryJobCards(ctx, filter, ordering)
}

// Get returns ErrNotFound for job cards actor may not see.
func (svc *service) Get(ctx context.Context, actor user.User, id string) (JobCard, error) {
	jc, err := svc.repo.GetJobCard(ctx, core.CleanString(id, true /* lower */))
	if err != nil {
		return JobCard{}, err
	}
	if !CanView(actor, jc) {
		return JobCard{}, ErrNotFound
	}
	return jc, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, jc JobCard, uj UpdateJobCard) (JobCard, error) {
	if !canAdminister(actor, jc) {
		return JobCard{}, core.NewPermissionError("")
	}
	if !IsOpenStatus(jc.Status) {
		return JobCard{}, core.NewFieldError("status", "closed job cards cannot be edited")
	}
	uj.Apply(&jc)
	if err := svc.checkRefs(ctx, jc.CompanyID, jc.MachineID, jc.CustomerID); err != nil {
		return JobCard{}, err
	}
	jc.UpdatedAt = core.Now()
	return svc.repo.UpdateJobCard(ctx, jc)
}

// Assign hands jc to a technician of its company and notifies them.
// Reassigning closes the running timers of the previous technician.
func (svc *service) Assign(ctx context.Context, actor user.User, jc JobCard, technicianID string) (JobCard, error) {
	if !canAdminister(actor, jc) {
		return JobCard{}, core.NewPermissionError("")
	}
	if !IsOpenStatus(jc.Status) {
		return JobCard{}, core.NewFieldError("status", "closed job cards cannot be assigned")
	}

	tech, err := svc.users.GetByID(ctx, core.CleanString(technicianID, true /* lower */))
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return JobCard{}, errors.Wrap(err, "getting technician")
	}
	if err != nil || !tech.IsTechnician() || !tech.IsActive || tech.CompanyID != jc.CompanyID {
		return JobCard{}, core.NewFieldError("technician_id", "technician not found")
	}

	now := core.Now()
	prevTech := jc.TechnicianID
	jc.TechnicianID = tech.ID
	jc.UpdatedAt = now
	if jc.Status == StatusOpen {
		jc.setStatus(StatusAssigned, now)
	}

	err = svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if prevTech != "" && prevTech != tech.ID {
			if err := closeRunningEntries(ctx, svc.repo, TimeEntryFilter{JobCardID: jc.ID, TechnicianID: prevTech}, now, exec); err != nil {
				return err
			}
		}
		var err error
		jc, err = svc.repo.UpdateJobCard(ctx, jc, exec)
		return err
	})
	if err != nil {
		return JobCard{}, errors.Wrap(err, "assigning job card")
	}

	svc.sendAssignedMail(jc, tech)
	return jc, nil
}

// Transition moves jc to status, following the status graph.
// Admins drive any transition but sign-off; technicians only work their own job cards.
// Leaving in_progress closes the running timers.
func (svc *service) Transition(ctx context.Context, actor user.User, jc JobCard, status string) (JobCard, error) {
	switch {
	case canAdminister(actor, jc):
	case actor.IsTechnician() && actor.BelongsTo(jc.CompanyID) && jc.TechnicianID == actor.ID:
		if !contains(technicianStatuses, jc.Status) || !contains(technicianStatuses, status) {
			return JobCard{}, core.NewPermissionError("")
		}
	default:
		return JobCard{}, core.NewPermissionError("")
	}

	switch {
	case status == StatusSignedOff:
		return JobCard{}, core.NewFieldError("status", "job cards are signed off through the sign-off workflow")
	case status == StatusAssigned && jc.TechnicianID == "":
		return JobCard{}, core.NewFieldError("status", "assign a technician first")
	case !CanTransition(jc.Status, status):
		return JobCard{}, core.NewValidationError(ErrInvalidTransition, core.FieldError{
			Field: "status",
			Error: "cannot move from " + jc.Status + " to " + status,
		})
	}

	now := core.Now()
	jc.setStatus(status, now)
	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if status != StatusInProgress {
			if err := closeRunningEntries(ctx, svc.repo, TimeEntryFilter{JobCardID: jc.ID}, now, exec); err != nil {
				return err
			}
		}
		var err error
		jc, err = svc.repo.UpdateJobCard(ctx, jc, exec)
		return err
	})
	return jc, errors.Wrap(err, "transitioning job card")
}

func (svc *service) Delete(ctx context.Context, actor user.User, jc JobCard) error {
	if !canAdminister(actor, jc) {
		return core.NewPermissionError("")
	}
	return svc.repo.DeleteJobCard(ctx, jc.ID)
}

func (svc *service) sendAssignedMail(jc JobCard, tech user.User) {
	var due string
	if jc.DueDate != nil {
		due = jc.DueDate.Format("2006-01-02")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: tech.Name, Address: tech.Email}},
		Subject:      "Job card " + jc.Reference() + " assigned to you",
		TemplateName: "jobcard_assigned",
		TemplateData: map[string]string{
			"TechnicianName": tech.Name,
			"Number":         jc.Reference(),
			"Title":          jc.Title,
			"Priority":       jc.Priority,
			"DueDate":        due,
			"ID":             jc.ID,
		},
	})
}

// closeRunningEntries ends every running time entry matching filter at now.
func closeRunningEntries(ctx context.Context, repo Repository, filter TimeEntryFilter, now time.Time, exec core.DBExecutor) error {
	filter.RunningOnly = true
	entries, err := repo.QueryTimeEntries(ctx, filter, exec)
	if err != nil {
		return errors.Wrap(err, "querying running time entries")
	}
	for _, te := range entries {
		te.close(now)
		if _, err = repo.UpdateTimeEntry(ctx, te, exec); err != nil {
			return errors.Wrap(err, "closing time entry")
		}
	}
	return nil
}
