package sop

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/user"
)

const MaxAttachmentBytes = 10 << 20

var (
	ErrNotFound     = errors.New("sop not found")
	ErrCodeExists   = errors.New("an sop with this code already exists")
	ErrNoAttachment = errors.New("sop has no attachment")
)

type (
	Repository interface {
		// CheckCodeUniqueness returns ErrCodeExists if another SOP of the company has the code.
		CheckCodeUniqueness(ctx context.Context, companyID, code, excludedID string, exec ...core.DBExecutor) error
		CreateSOP(ctx context.Context, s SOP, exec ...core.DBExecutor) (SOP, error)
		QuerySOPs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]SOP, error)
		GetSOP(ctx context.Context, id string, exec ...core.DBExecutor) (SOP, error)
		UpdateSOP(ctx context.Context, s SOP, exec ...core.DBExecutor) (SOP, error)
		DeleteSOP(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	MachineGetter interface {
		GetByID(ctx context.Context, id string) (machine.Machine, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.User, ns NewSOP) (SOP, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]SOP, error)
		Get(ctx context.Context, actor user.User, id string) (SOP, error)
		Update(ctx context.Context, actor user.User, s SOP, us UpdateSOP) (SOP, error)
		SetStatus(ctx context.Context, actor user.User, s SOP, status string) (SOP, error)
		Delete(ctx context.Context, actor user.User, s SOP) error
		Attach(ctx context.Context, actor user.User, s SOP, filename, contentType string, data []byte) (SOP, error)
		Attachment(ctx context.Context, s SOP) (core.Blob, error)
	}

	service struct {
		db       core.Transactor
		repo     Repository
		machines MachineGetter
		blobs    core.BlobStore
	}
)

var _ Service = (*service)(nil)

func NewService(db core.Transactor, repo Repository, machines MachineGetter, blobs core.BlobStore) Service {
	return &service{db: db, repo: repo, machines: machines, blobs: blobs}
}

func canAdminister(actor user.User, s SOP) bool {
	return actor.IsAdmin() && actor.BelongsTo(s.CompanyID)
}

// CanView reports whether actor may read s. Only admins see unpublished SOPs.
func CanView(actor user.User, s SOP) bool {
	if !actor.BelongsTo(s.CompanyID) {
		return false
	}
	return actor.IsAdmin() || s.Status == StatusPublished
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

// Create drafts a new SOP at version 1.
func (svc *service) Create(ctx context.Context, actor user.User, ns NewSOP) (SOP, error) {
	switch {
	case actor.IsSuperAdmin():
		if ns.CompanyID == "" {
			return SOP{}, core.NewFieldError("company_id", "this field is required")
		}
	case actor.IsAdmin():
		ns.CompanyID = actor.CompanyID
	default:
		return SOP{}, core.NewPermissionError("")
	}
	if err := svc.checkMachine(ctx, ns.CompanyID, ns.MachineID); err != nil {
		return SOP{}, err
	}

	now := core.Now()
	s := SOP{
		CompanyID: ns.CompanyID,
		MachineID: ns.MachineID,
		Code:      ns.Code,
		Title:     ns.Title,
		Version:   1,
		Steps:     ns.Steps,
		Status:    StatusDraft,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.CheckCodeUniqueness(ctx, s.CompanyID, s.Code, "", exec); err != nil {
			return codeTakenErr(err)
		}
		var err error
		s, err = svc.repo.CreateSOP(ctx, s, exec)
		return err
	})
	return s, errors.Wrap(err, "creating sop")
}

// Query lists the SOPs of the actor company. Non admins only list published SOPs.
func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]SOP, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !actor.IsSuperAdmin() {
		filter.CompanyID = actor.CompanyID
	}
	if !actor.IsAdmin() {
		filter.Statuses = []string{StatusPublished}
	}
	return svc.repo.QuerySOPs(ctx, filter, ordering)
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (SOP, error) {
	s, err := svc.repo.GetSOP(ctx, core.CleanString(id, true /* lower */))
	if err != nil {
		return SOP{}, err
	}
	if !CanView(actor, s) {
		return SOP{}, ErrNotFound
	}
	return s, nil
}

// Update edits s. Editing the content of a published SOP bumps its version.
func (svc *service) Update(ctx context.Context, actor user.User, s SOP, us UpdateSOP) (SOP, error) {
	if !canAdminister(actor, s) {
		return SOP{}, core.NewPermissionError("")
	}
	if s.Status == StatusArchived {
		return SOP{}, core.NewFieldError("status", "archived sops cannot be edited")
	}
	if us.MachineID != nil {
		if err := svc.checkMachine(ctx, s.CompanyID, *us.MachineID); err != nil {
			return SOP{}, err
		}
	}
	if us.Apply(&s) && s.Status == StatusPublished {
		s.Version++
	}
	s.UpdatedAt = core.Now()

	err := svc.db.WithTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.CheckCodeUniqueness(ctx, s.CompanyID, s.Code, s.ID, exec); err != nil {
			return codeTakenErr(err)
		}
		var err error
		s, err = svc.repo.UpdateSOP(ctx, s, exec)
		return err
	})
	return s, errors.Wrap(err, "updating sop")
}

// SetStatus publishes, archives or redrafts s. The version is left alone.
func (svc *service) SetStatus(ctx context.Context, actor user.User, s SOP, status string) (SOP, error) {
	if !canAdminister(actor, s) {
		return SOP{}, core.NewPermissionError("")
	}
	if status == StatusPublished && len(s.Steps) == 0 {
		return SOP{}, core.NewFieldError("steps", "an sop needs at least one step to be published")
	}
	s.Status = status
	s.UpdatedAt = core.Now()
	return svc.repo.UpdateSOP(ctx, s)
}

func (svc *service) Delete(ctx context.Context, actor user.User, s SOP) error {
	if !canAdminister(actor, s) {
		return core.NewPermissionError("")
	}
	if err := svc.repo.DeleteSOP(ctx, s.ID); err != nil {
		return err
	}
	if s.HasAttachment() {
		_ = svc.blobs.Delete(ctx, s.AttachmentKey)
	}
	return nil
}

// Attach stores data as the document of s, replacing the previous one.
func (svc *service) Attach(ctx context.Context, actor user.User, s SOP, filename, contentType string, data []byte) (SOP, error) {
	if !canAdminister(actor, s) {
		return SOP{}, core.NewPermissionError("")
	}
	if len(data) == 0 {
		return SOP{}, core.NewFieldError("file", "this field is required")
	}
	if len(data) > MaxAttachmentBytes {
		return SOP{}, core.NewFieldError("file", "file is too large")
	}

	prevKey := s.AttachmentKey
	s.AttachmentName = filepath.Base(core.CleanString(filename))
	s.AttachmentKey = "sops/" + s.ID + "/" + uuid.New().String() + filepath.Ext(s.AttachmentName)
	s.UpdatedAt = core.Now()

	key := s.AttachmentKey
	if err := svc.blobs.Put(ctx, core.Blob{Key: key, ContentType: contentType, Data: data}); err != nil {
		return SOP{}, errors.Wrap(err, "storing attachment")
	}
	s, err := svc.repo.UpdateSOP(ctx, s)
	if err != nil {
		_ = svc.blobs.Delete(ctx, key)
		return SOP{}, errors.Wrap(err, "updating sop")
	}
	if prevKey != "" {
		_ = svc.blobs.Delete(ctx, prevKey)
	}
	return s, nil
}

func (svc *service) Attachment(ctx context.Context, s SOP) (core.Blob, error) {
	if !s.HasAttachment() {
		return core.Blob{}, ErrNoAttachment
	}
	return svc.blobs.Get(ctx, s.AttachmentKey)
}
