package fault

import (
	"context"

	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/user"
)

var (
	ErrNotFound   = errors.New("fault not found")
	ErrCodeExists = errors.New("a fault with this code already exists")
)

type (
	Repository interface {
		// CheckCodeUniqueness returns ErrCodeExists if another fault of the company has the code.
		CheckCodeUniqueness(ctx context.Context, companyID, code, excludedID string, exec ...core.DBExecutor) error
		CreateFault(ctx context.Context, f Fault, exec ...core.DBExecutor) (Fault, error)
		QueryFaults(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Fault, error)
		GetFault(ctx context.Context, id string, exec ...core.DBExecutor) (Fault, error)
		UpdateFault(ctx context.Context, f Fault, exec ...core.DBExecutor) (Fault, error)
		DeleteFault(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	MachineGetter interface {
		GetByID(ctx context.Context, id string) (machine.Machine, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.User, nf NewFault) (Fault, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Fault, error)
		Get(ctx context.Context, actor user.User, id string) (Fault, error)
		Update(ctx context.Context, actor user.User, f Fault, uf UpdateFault) (Fault, error)
		Delete(ctx context.Context, actor user.User, f Fault) error
	}

	service struct {
		db       core.Transactor
		repo     Repository
		machines MachineGetter
	}
)

var _ Service = (*service)(nil)

func NewService(db core.Transactor, repo Repository, machines MachineGetter) Service {
	return &service{db: db, repo: repo, machines: machines}
}

// canEdit: admins and technicians of the company maintain the fault database.
func canEdit(actor user.User, companyID string) bool {
	return (actor.IsAdmin() || actor.IsTechnician()) && actor.BelongsTo(companyID)
}

func codeTakenErr(err error) error {
	if errors.Cause(err) == ErrCodeExists {
		return core.NewValidationError(err, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	}
	return err
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

func (svc *service) Create(ctx context.Context, actor user.User, nf NewFault) (Fault, error) {
	if actor.IsSuperAdmin() {
		if nf.CompanyID == "" {
			return Fault{}, core.NewFieldError("company_id", "this field is required")
		}
	} else {
		nf.CompanyID = actor.CompanyID
	}
	if !canEdit(actor, nf.CompanyID) {
		return Fault{}, core.NewPermissionError("")
	}
	if err := svc.checkMachine(ctx, nf.CompanyID, nf.MachineID); err != nil {
		return Fault{}, err
	}

	now := core.Now()
	f := Fault{
		CompanyID: nf.CompanyID,
		MachineID: nf.MachineID,
		Code:      nf.Code,
		Title:     nf.Title,
		Symptoms:  nf.Symptoms,
		Cause:     nf.Cause,
		Remedy:    nf.Remedy,
		Severity:  nf.Severity,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.CheckCodeUniqueness(ctx, f.CompanyID, f.Code, "", exec); err != nil {
			return codeTakenErr(err)
		}
		var err error
		f, err = svc.repo.CreateFault(ctx, f, exec)
		return err
	})
	return f, errors.Wrap(err, "creating fault")
}

func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Fault, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !actor.IsSuperAdmin() {
		filter.CompanyID = actor.CompanyID
	}
	return svc.repo.QueryFaults(ctx, filter, ordering)
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Fault, error) {
	f, err := svc.repo.GetFault(ctx, core.CleanString(id, true /* lower */))
	if err != nil {
		return Fault{}, err
	}
	if !actor.BelongsTo(f.CompanyID) {
		return Fault{}, ErrNotFound
	}
	return f, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, f Fault, uf UpdateFault) (Fault, error) {
	if !canEdit(actor, f.CompanyID) {
		return Fault{}, core.NewPermissionError("")
	}
	if uf.MachineID != nil {
		if err := svc.checkMachine(ctx, f.CompanyID, *uf.MachineID); err != nil {
			return Fault{}, err
		}
	}
	uf.Apply(&f)
	f.UpdatedAt = core.Now()

	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.CheckCodeUniqueness(ctx, f.CompanyID, f.Code, f.ID, exec); err != nil {
			return codeTakenErr(err)
		}
		var err error
		f, err = svc.repo.UpdateFault(ctx, f, exec)
		return err
	})
	return f, errors.Wrap(err, "updating fault")
}

func (svc *service) Delete(ctx context.Context, actor user.User, f Fault) error {
	if !actor.IsAdmin() || !actor.BelongsTo(f.CompanyID) {
		return core.NewPermissionError("")
	}
	return svc.repo.DeleteFault(ctx, f.ID)
}
