package checksheet

import (
	"context"

	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/user"
)

var (
	ErrNotFound           = errors.New("check sheet not found")
	ErrCompletionNotFound = errors.New("check sheet completion not found")
)

type (
	Repository interface {
		CreateCheckSheet(ctx context.Context, cs CheckSheet, exec ...core.DBExecutor) (CheckSheet, error)
		QueryCheckSheets(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]CheckSheet, error)
		GetCheckSheet(ctx context.Context, id string, exec ...core.DBExecutor) (CheckSheet, error)
		UpdateCheckSheet(ctx context.Context, cs CheckSheet, exec ...core.DBExecutor) (CheckSheet, error)
		DeleteCheckSheet(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateCompletion(ctx context.Context, c Completion, exec ...core.DBExecutor) (Completion, error)
		QueryCompletions(ctx context.Context, filter *CompletionFilter, exec ...core.DBExecutor) ([]Completion, error)
		GetCompletion(ctx context.Context, id string, exec ...core.DBExecutor) (Completion, error)
	}

	MachineGetter interface {
		GetByID(ctx context.Context, id string) (machine.Machine, error)
	}

	// JobCardGetter returns the job cards an actor may see.
	JobCardGetter interface {
		Get(ctx context.Context, actor user.User, id string) (jobcard.JobCard, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.User, nc NewCheckSheet) (CheckSheet, error)
		// Import creates every check sheet for the company in a single transaction.
		Import(ctx context.Context, companyID string, sheets []NewCheckSheet) ([]CheckSheet, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]CheckSheet, error)
		Get(ctx context.Context, actor user.User, id string) (CheckSheet, error)
		Update(ctx context.Context, actor user.User, cs CheckSheet, uc UpdateCheckSheet) (CheckSheet, error)
		Delete(ctx context.Context, actor user.User, cs CheckSheet) error
		Complete(ctx context.Context, actor user.User, cs CheckSheet, nc NewCompletion) (Completion, error)
		QueryCompletions(ctx context.Context, actor user.User, filter *CompletionFilter) ([]Completion, error)
		GetCompletion(ctx context.Context, actor user.User, id string) (Completion, error)
	}

	service struct {
		db       core.Transactor
		repo     Repository
		machines MachineGetter
		jobCards JobCardGetter
	}
)

var _ Service = (*service)(nil)

func NewService(db core.Transactor, repo Repository, machines MachineGetter, jobCards JobCardGetter) Service {
	return &service{db: db, repo: repo, machines: machines, jobCards: jobCards}
}

func canAdminister(actor user.User, companyID string) bool {
	return actor.IsAdmin() && actor.BelongsTo(companyID)
}

func (svc *service) checkMachine(ctx context.Context, companyID, machineID string) error {
	if machineID == "" {
		return nil
	}
	m, err := svc.machines.GetByID(ctx, machineID)
	if err != nil && errors.Cause(err) != machine.ErrNotFound {
		return errors.Wrap(err, "getting machine")
	}
	if err != nil || m.CompanyID != companyID {
		return core.NewFieldError("machine_id", "machine not found")
	}
	return nil
}

func newCheckSheet(companyID string, nc NewCheckSheet) CheckSheet {
	now := core.Now()
	return CheckSheet{
		CompanyID: companyID,
		MachineID: nc.MachineID,
		Title:     nc.Title,
		Frequency: nc.Frequency,
		Items:     nc.Items,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (svc *service) Create(ctx context.Context, actor user.User, nc NewCheckSheet) (CheckSheet, error) {
	if !actor.IsSuperAdmin() {
		nc.CompanyID = actor.CompanyID
	} else if nc.CompanyID == "" {
		return CheckSheet{}, core.NewFieldError("company_id", "this field is required")
	}
	if !canAdminister(actor, nc.CompanyID) {
		return CheckSheet{}, core.NewPermissionError("")
	}
	if err := svc.checkMachine(ctx, nc.CompanyID, nc.MachineID); err != nil {
		return CheckSheet{}, err
	}
	cs, err := svc.repo.CreateCheckSheet(ctx, newCheckSheet(nc.CompanyID, nc))
	return cs, errors.Wrap(err, "creating check sheet")
}

func (svc *service) Import(ctx context.Context, companyID string, sheets []NewCheckSheet) ([]CheckSheet, error) {
	for _, nc := range sheets {
		if err := svc.checkMachine(ctx, companyID, nc.MachineID); err != nil {
			return nil, errors.Wrap(err, nc.Title)
		}
	}
	created := make([]CheckSheet, 0, len(sheets))
	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		for _, nc := range sheets {
			cs, err := svc.repo.CreateCheckSheet(ctx, newCheckSheet(companyID, nc), exec)
			if err != nil {
				return errors.Wrapf(err, "creating check sheet %q", nc.Title)
			}
			created = append(created, cs)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "importing check sheets")
	}
	return created, nil
}

// Query lists the company check sheets. Non admins only list active ones.
func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]CheckSheet, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !actor.IsSuperAdmin() {
		filter.CompanyID = actor.CompanyID
	}
	if !actor.IsAdmin() {
		active := true
		filter.IsActive = &active
	}
	return svc.repo.QueryCheckSheets(ctx, filter, ordering)
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (CheckSheet, error) {
	cs, err := svc.repo.GetCheckSheet(ctx, core.CleanString(id, true /* lower */))
	if err != nil {
		return CheckSheet{}, err
	}
	if !actor.BelongsTo(cs.CompanyID) || (!actor.IsAdmin() && !cs.IsActive) {
		return CheckSheet{}, ErrNotFound
	}
	return cs, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, cs CheckSheet, uc UpdateCheckSheet) (CheckSheet, error) {
	if !canAdminister(actor, cs.CompanyID) {
		return CheckSheet{}, core.NewPermissionError("")
	}
	if uc.MachineID != nil {
		if err := svc.checkMachine(ctx, cs.CompanyID, *uc.MachineID); err != nil {
			return CheckSheet{}, err
		}
	}
	uc.Apply(&cs)
	cs.UpdatedAt = core.Now()
	return svc.repo.UpdateCheckSheet(ctx, cs)
}

func (svc *service) Delete(ctx context.Context, actor user.User, cs CheckSheet) error {
	if !canAdminister(actor, cs.CompanyID) {
		return core.NewPermissionError("")
	}
	return svc.repo.DeleteCheckSheet(ctx, cs.ID)
}

// Complete records a filled-in cs. Admins and technicians of the company complete check sheets.
func (svc *service) Complete(ctx context.Context, actor user.User, cs CheckSheet, nc NewCompletion) (Completion, error) {
	if !(actor.IsAdmin() || actor.IsTechnician()) || !actor.BelongsTo(cs.CompanyID) {
		return Completion{}, core.NewPermissionError("")
	}
	if !cs.IsActive {
		return Completion{}, core.NewFieldError("check_sheet_id", "check sheet is inactive")
	}
	if nc.JobCardID != "" {
		jc, err := svc.jobCards.Get(ctx, actor, nc.JobCardID)
		if err != nil && errors.Cause(err) != jobcard.ErrNotFound {
			return Completion{}, errors.Wrap(err, "getting job card")
		}
		if err != nil || jc.CompanyID != cs.CompanyID {
			return Completion{}, core.NewFieldError("job_card_id", "job card not found")
		}
	}

	responses, passed, err := Evaluate(cs, nc.Responses)
	if err != nil {
		return Completion{}, err
	}
	c := Completion{
		CheckSheetID: cs.ID,
		CompanyID:    cs.CompanyID,
		JobCardID:    nc.JobCardID,
		CompletedBy:  actor.ID,
		Responses:    responses,
		Passed:       passed,
		CompletedAt:  core.Now(),
	}
	c, err = svc.repo.CreateCompletion(ctx, c)
	return c, errors.Wrap(err, "creating completion")
}

func (svc *service) QueryCompletions(ctx context.Context, actor user.User, filter *CompletionFilter) ([]Completion, error) {
	if filter == nil {
		filter = new(CompletionFilter)
	}
	switch {
	case actor.IsSuperAdmin():
	case actor.IsAdmin():
		filter.CompanyID = actor.CompanyID
	case actor.IsTechnician():
		filter.CompanyID = actor.CompanyID
		filter.CompletedBy = actor.ID
	default:
		return nil, core.NewPermissionError("")
	}
	return svc.repo.QueryCompletions(ctx, filter)
}

func (svc *service) GetCompletion(ctx context.Context, actor user.User, id string) (Completion, error) {
	c, err := svc.repo.GetCompletion(ctx, core.CleanString(id, true /* lower */))
	if err != nil {
		return Completion{}, err
	}
	switch {
	case actor.IsAdmin() && actor.BelongsTo(c.CompanyID):
	case actor.IsTechnician() && c.CompletedBy == actor.ID:
	default:
		return Completion{}, ErrCompletionNotFound
	}
	return c, nil
}
