package machine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/thinkquality/thinkquality/core"
)

var (
	ErrNotFound     = errors.New("machine not found")
	ErrSerialExists = errors.New("a machine with this serial number already exists")
)

const DefaultQRSize = 256

type (
	Repository interface {
		// CheckSerialUniqueness returns ErrSerialExists if another machine of the company has the serial number.
		CheckSerialUniqueness(ctx context.Context, companyID, serial, excludedID string, exec ...core.DBExecutor) error
		CreateMachine(ctx context.Context, m Machine, exec ...core.DBExecutor) (Machine, error)
		QueryMachines(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Machine, error)
		GetMachine(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Machine, error)
		UpdateMachine(ctx context.Context, m Machine, exec ...core.DBExecutor) (Machine, error)
		DeleteMachine(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// PortalRepository reads what a machine portal shows from the other domains.
	PortalRepository interface {
		PortalSOPs(ctx context.Context, machineID string) ([]PortalSOP, error)
		PortalFaults(ctx context.Context, machineID string) ([]PortalFault, error)
		CountOpenJobCards(ctx context.Context, machineID string) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nm NewMachine) (Machine, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Machine, error)
		GetByID(ctx context.Context, id string) (Machine, error)
		Update(ctx context.Context, m Machine, um UpdateMachine) (Machine, error)
		RotateQRToken(ctx context.Context, m Machine) (Machine, error)
		Delete(ctx context.Context, id string) error
		QRCode(m Machine, size int) ([]byte, error)
		Portal(ctx context.Context, token string) (Portal, error)
	}

	service struct {
		db     core.Transactor
		repo   Repository
		portal PortalRepository
	}
)

var _ Service = (*service)(nil)

func NewService(db core.Transactor, repo Repository, portal PortalRepository) Service {
	return &service{db: db, repo: repo, portal: portal}
}

func serialTakenErr(err error) error {
	if errors.Cause(err) == ErrSerialExists {
		return core.NewValidationError(err, core.FieldError{Field: "serial_number", Error: ErrSerialExists.Error()})
	}
	return err
}

// Create registers a machine with a fresh QR token. NewMachine.CompanyID is required.
func (svc *service) Create(ctx context.Context, nm NewMachine) (Machine, error) {
	if nm.CompanyID == "" {
		return Machine{}, core.NewFieldError("company_id", "this field is required")
	}
	token, err := NewQRToken()
	if err != nil {
		return Machine{}, errors.Wrap(err, "generating qr token")
	}
	now := core.Now()
	m := Machine{
		CompanyID:    nm.CompanyID,
		Name:         nm.Name,
		Model:        nm.Model,
		SerialNumber: nm.SerialNumber,
		Location:     nm.Location,
		QRToken:      token,
		InstalledAt:  nm.InstalledAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.CheckSerialUniqueness(ctx, m.CompanyID, m.SerialNumber, "", exec); err != nil {
			return serialTakenErr(err)
		}
		var err error
		m, err = svc.repo.CreateMachine(ctx, m, exec)
		return err
	})
	return m, errors.Wrap(err, "creating machine")
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Machine, error) {
	return svc.repo.QueryMachines(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Machine, error) {
	return svc.repo.GetMachine(ctx, GetFilter{ID: id})
}

func (svc *service) Update(ctx context.Context, m Machine, um UpdateMachine) (Machine, error) {
	um.Apply(&m)
	m.UpdatedAt = core.Now()
	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.CheckSerialUniqueness(ctx, m.CompanyID, m.SerialNumber, m.ID, exec); err != nil {
			return serialTakenErr(err)
		}
		var err error
		m, err = svc.repo.UpdateMachine(ctx, m, exec)
		return err
	})
	return m, errors.Wrap(err, "updating machine")
}

// RotateQRToken invalidates every printed QR code of the machine.
func (svc *service) RotateQRToken(ctx context.Context, m Machine) (Machine, error) {
	token, err := NewQRToken()
	if err != nil {
		return Machine{}, errors.Wrap(err, "generating qr token")
	}
	m.QRToken = token
	m.UpdatedAt = core.Now()
	return svc.repo.UpdateMachine(ctx, m)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteMachine(ctx, id)
}

// QRCode renders the portal URL of m as a PNG.
func (svc *service) QRCode(m Machine, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(m.PortalURL(), qrcode.Medium, size)
	return png, errors.Wrap(err, "encoding qr code")
}

func (svc *service) Portal(ctx context.Context, token string) (Portal, error) {
	token = core.CleanString(token)
	if token == "" {
		return Portal{}, ErrNotFound
	}
	m, err := svc.repo.GetMachine(ctx, GetFilter{QRToken: token})
	if err != nil {
		return Portal{}, err
	}

	p := Portal{
		Name:         m.Name,
		Model:        m.Model,
		SerialNumber: m.SerialNumber,
		Location:     m.Location,
	}
	if p.SOPs, err = svc.portal.PortalSOPs(ctx, m.ID); err != nil {
		return Portal{}, errors.Wrap(err, "loading sops")
	}
	if p.Faults, err = svc.portal.PortalFaults(ctx, m.ID); err != nil {
		return Portal{}, errors.Wrap(err, "loading faults")
	}
	if p.OpenJobCards, err = svc.portal.CountOpenJobCards(ctx, m.ID); err != nil {
		return Portal{}, errors.Wrap(err, "counting job cards")
	}
	return p, nil
}
