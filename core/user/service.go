package user

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrCompanyMissing = errors.New("company not found")
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists if a user other than excludedIDs has the given email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs []string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
		CountUsers(ctx context.Context, companyID string, exec ...core.DBExecutor) (int, error)
	}

	// CompanyChecker reports whether a company exists. Users of a missing company are never created.
	CompanyChecker interface {
		CompanyExists(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) (int, error)
		CountByCompany(ctx context.Context, companyID string) (int, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		db        core.Transactor
		repo      Repository
		companies CompanyChecker
		mailSvc   core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(db core.Transactor, repo Repository, companies CompanyChecker, mailSvc core.EmailService) Service {
	return &service{
		db:        db,
		repo:      repo,
		companies: companies,
		mailSvc:   mailSvc,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	ids := make([]string, 0, len(exclUsers))
	for _, u := range exclUsers {
		ids = append(ids, u.ID)
	}
	if err := svc.repo.CheckEmailUniqueness(ctx, email, ids); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Create creates the user and its credentials in a single transaction.
// Nothing is persisted if any step fails.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	switch {
	case nu.Role == RoleSuperAdmin && nu.CompanyID != "":
		return User{}, core.NewFieldError("company_id", "super admins cannot belong to a company")
	case nu.Role != RoleSuperAdmin && nu.CompanyID == "":
		return User{}, core.NewFieldError("company_id", "this field is required")
	}

	now := core.Now()
	usr := User{
		CompanyID: nu.CompanyID,
		Name:      nu.Name,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if usr.CompanyID != "" {
			exists, err := svc.companies.CompanyExists(ctx, usr.CompanyID, exec)
			if err != nil {
				return errors.Wrap(err, "checking company")
			}
			if !exists {
				return core.NewValidationError(ErrCompanyMissing, core.FieldError{Field: "company_id", Error: ErrCompanyMissing.Error()})
			}
		}
		if err := svc.repo.CheckEmailUniqueness(ctx, usr.Email, nil, exec); err != nil {
			if errors.Cause(err) == ErrEmailExists {
				return core.NewValidationError(err, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
			}
			return err
		}
		var err error
		usr, err = svc.repo.CreateUser(ctx, usr, exec)
		return err
	})
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}

	if nu.SendWelcome {
		svc.sendWelcomeMail(usr)
	}
	return usr, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: core.CleanString(id, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Update applies uu on usr. Empty fields of uu are left unchanged.
func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if uu.Name != "" {
		usr.Name = uu.Name
	}
	if uu.Email != "" {
		usr.Email = uu.Email
	}
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids)
}

func (svc *service) CountByCompany(ctx context.Context, companyID string) (int, error) {
	return svc.repo.CountUsers(ctx, companyID)
}

// RequestPasswordReset mails a password reset link to the active user with the given email.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	token, err := MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: "invalid or expired token"})

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidErr
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidErr
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = verifyToken(usr, data.Token); err != nil {
		return invalidErr
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

func (svc *service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"Email": usr.Email,
			"Role":  usr.Role,
		},
	})
}
