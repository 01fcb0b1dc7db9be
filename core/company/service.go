package company

import (
	"context"

	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
)

var (
	ErrNotFound   = errors.New("company not found")
	ErrNameExists = errors.New("a company with this name already exists")
	ErrHasUsers   = errors.New("company still has users")
)

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name, excludedID string, exec ...core.DBExecutor) error
		CreateCompany(ctx context.Context, c Company, exec ...core.DBExecutor) (Company, error)
		QueryCompanies(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Company, error)
		GetCompany(ctx context.Context, id string, exec ...core.DBExecutor) (Company, error)
		UpdateCompany(ctx context.Context, c Company, exec ...core.DBExecutor) (Company, error)
		DeleteCompany(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// UserCounter counts the users of a company.
	UserCounter interface {
		CountUsers(ctx context.Context, companyID string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewCompany) (Company, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Company, error)
		GetByID(ctx context.Context, id string) (Company, error)
		Update(ctx context.Context, c Company, uc UpdateCompany) (Company, error)
		Delete(ctx context.Context, id string) error
		// CompanyExists makes Service usable as a user.CompanyChecker.
		CompanyExists(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
	}

	service struct {
		db    core.Transactor
		repo  Repository
		users UserCounter
	}
)

var _ Service = (*service)(nil)

func NewService(db core.Transactor, repo Repository, users UserCounter) Service {
	return &service{db: db, repo: repo, users: users}
}

func nameTakenErr(err error) error {
	if errors.Cause(err) == ErrNameExists {
		return core.NewValidationError(err, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	}
	return err
}

func (svc *service) Create(ctx context.Context, nc NewCompany) (Company, error) {
	now := core.Now()
	c := Company{
		Name:         nc.Name,
		Address:      nc.Address,
		ContactEmail: nc.ContactEmail,
		ContactPhone: nc.ContactPhone,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.CheckNameUniqueness(ctx, c.Name, "", exec); err != nil {
			return nameTakenErr(err)
		}
		var err error
		c, err = svc.repo.CreateCompany(ctx, c, exec)
		return err
	})
	return c, errors.Wrap(err, "creating company")
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Company, error) {
	return svc.repo.QueryCompanies(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Company, error) {
	return svc.repo.GetCompany(ctx, id)
}

func (svc *service) Update(ctx context.Context, c Company, uc UpdateCompany) (Company, error) {
	uc.Apply(&c)
	c.UpdatedAt = core.Now()
	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.CheckNameUniqueness(ctx, c.Name, c.ID, exec); err != nil {
			return nameTakenErr(err)
		}
		var err error
		c, err = svc.repo.UpdateCompany(ctx, c, exec)
		return err
	})
	return c, errors.Wrap(err, "updating company")
}

// Delete deletes a company that has no users left.
func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		n, err := svc.users.CountUsers(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "counting users")
		}
		if n > 0 {
			return core.NewValidationError(ErrHasUsers)
		}
		return svc.repo.DeleteCompany(ctx, id, exec)
	})
}

func (svc *service) CompanyExists(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	if _, err := svc.repo.GetCompany(ctx, id, exec...); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
