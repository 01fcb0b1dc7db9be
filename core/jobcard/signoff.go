package jobcard

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/user"
)

// Sign-off steps
const (
	StepTechnicianComplete = "technician_complete"
	StepCustomerAcceptance = "customer_acceptance"
	StepSupervisorApproval = "supervisor_approval"
)

const maxSignatureBytes = 2 << 20

var (
	ErrAlreadySigned    = errors.New("this step is already signed")
	ErrStepOutOfOrder   = errors.New("previous steps must be signed first")
	ErrNotCompleted     = errors.New("job card must be completed before sign-off")
	ErrInvalidSignature = errors.New("signature must be a base64 encoded PNG image")
)

// SignOffStep is one entry of the fixed sign-off checklist.
type SignOffStep struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Role  string `json:"role"`
}

// SignOffSteps are signed in this order, each by its role.
var SignOffSteps = []SignOffStep{
	{Key: StepTechnicianComplete, Label: "Technician completion", Role: user.RoleTechnician},
	{Key: StepCustomerAcceptance, Label: "Customer acceptance", Role: user.RoleCustomer},
	{Key: StepSupervisorApproval, Label: "Supervisor approval", Role: user.RoleAdmin},
}

func stepIndex(key string) int {
	for i, st := range SignOffSteps {
		if st.Key == key {
			return i
		}
	}
	return -1
}

type Signature struct {
	ID         string    `json:"id"`
	JobCardID  string    `json:"job_card_id"`
	Step       string    `json:"step"`
	SignerID   string    `json:"signer_id"`
	SignerName string    `json:"signer_name"`
	SignedAt   time.Time `json:"signed_at"`
	ImageKey   string    `json:"-"`
	Comment    string    `json:"comment"`
}

type SignStep struct {
	Step      string `json:"step" validate:"required,oneof=technician_complete customer_acceptance supervisor_approval"`
	Signature string `json:"signature" validate:"required"` // PNG, as a data URL or raw base64
	Comment   string `json:"comment" validate:"max=1000"`
}

type SignOffStepStatus struct {
	SignOffStep
	Signed    bool       `json:"signed"`
	Signature *Signature `json:"signature"`
}

type SignOffStatus struct {
	JobCardID string              `json:"job_card_id"`
	Steps     []SignOffStepStatus `json:"steps"`
	NextStep  string              `json:"next_step"` // empty once fully signed
	Complete  bool                `json:"complete"`
}

// decodeSignature decodes a base64 PNG, optionally wrapped in a data URL.
func decodeSignature(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.HasPrefix(s, "data:image/png") {
			return nil, ErrInvalidSignature
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if len(data) > maxSignatureBytes {
		return nil, ErrInvalidSignature
	}
	if _, err = png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, ErrInvalidSignature
	}
	return data, nil
}

type (
	// SignOffWorkflow runs the ordered sign-off checklist of completed job cards.
	SignOffWorkflow interface {
		Status(ctx context.Context, jc JobCard) (SignOffStatus, error)
		// Sign signs the next step of jc. The job card is signed off after the last step.
		Sign(ctx context.Context, actor user.User, jc JobCard, ss SignStep) (Signature, JobCard, error)
		SignatureImage(ctx context.Context, jc JobCard, step string) (core.Blob, error)
	}

	signOffWorkflow struct {
		db    core.Transactor
		repo  Repository
		blobs core.BlobStore
		now   func() time.Time
	}
)

var _ SignOffWorkflow = (*signOffWorkflow)(nil)

func NewSignOffWorkflow(db core.Transactor, repo Repository, blobs core.BlobStore, now func() time.Time) SignOffWorkflow {
	if now == nil {
		now = core.Now
	}
	return &signOffWorkflow{db: db, repo: repo, blobs: blobs, now: func() time.Time { return now().UTC() }}
}

func buildStatus(jc JobCard, sigs []Signature) SignOffStatus {
	byStep := make(map[string]Signature, len(sigs))
	for _, sig := range sigs {
		byStep[sig.Step] = sig
	}
	status := SignOffStatus{JobCardID: jc.ID, Steps: make([]SignOffStepStatus, 0, len(SignOffSteps))}
	for _, st := range SignOffSteps {
		ss := SignOffStepStatus{SignOffStep: st}
		if sig, ok := byStep[st.Key]; ok {
			ss.Signed = true
			ss.Signature = &sig
		} else if status.NextStep == "" {
			status.NextStep = st.Key
		}
		status.Steps = append(status.Steps, ss)
	}
	status.Complete = status.NextStep == ""
	return status
}

func (wf *signOffWorkflow) Status(ctx context.Context, jc JobCard) (SignOffStatus, error) {
	sigs, err := wf.repo.QuerySignatures(ctx, jc.ID)
	if err != nil {
		return SignOffStatus{}, errors.Wrap(err, "querying signatures")
	}
	return buildStatus(jc, sigs), nil
}

// canSign checks the signer role of the step against actor.
func canSign(actor user.User, jc JobCard, step SignOffStep) bool {
	if !actor.BelongsTo(jc.CompanyID) || actor.Role != step.Role {
		return false
	}
	switch step.Role {
	case user.RoleTechnician:
		return jc.TechnicianID == actor.ID
	case user.RoleCustomer:
		return jc.CustomerID == "" || jc.CustomerID == actor.ID
	}
	return true
}

func (wf *signOffWorkflow) Sign(ctx context.Context, actor user.User, jc JobCard, ss SignStep) (Signature, JobCard, error) {
	idx := stepIndex(ss.Step)
	if idx < 0 {
		return Signature{}, JobCard{}, core.NewFieldError("step", "unknown sign-off step")
	}
	step := SignOffSteps[idx]
	if !canSign(actor, jc, step) {
		return Signature{}, JobCard{}, core.NewPermissionError("you cannot sign the " + step.Label + " step")
	}
	if jc.Status != StatusCompleted {
		return Signature{}, JobCard{}, core.NewValidationError(ErrNotCompleted, core.FieldError{Field: "status", Error: ErrNotCompleted.Error()})
	}

	img, err := decodeSignature(ss.Signature)
	if err != nil {
		return Signature{}, JobCard{}, core.NewValidationError(err, core.FieldError{Field: "signature", Error: err.Error()})
	}

	now := wf.now()
	sig := Signature{
		JobCardID:  jc.ID,
		Step:       step.Key,
		SignerID:   actor.ID,
		SignerName: actor.Name,
		SignedAt:   now,
		ImageKey:   "signatures/" + jc.ID + "/" + step.Key + "/" + uuid.New().String() + ".png",
		Comment:    core.CleanString(ss.Comment),
	}

	imageKey := sig.ImageKey
	err = wf.db.WithTx(ctx, func(exec core.DBExecutor) error {
		sigs, err := wf.repo.QuerySignatures(ctx, jc.ID, exec)
		if err != nil {
			return errors.Wrap(err, "querying signatures")
		}
		status := buildStatus(jc, sigs)
		if status.Steps[idx].Signed {
			return core.NewValidationError(ErrAlreadySigned, core.FieldError{Field: "step", Error: ErrAlreadySigned.Error()})
		}
		if status.NextStep != step.Key {
			return core.NewValidationError(ErrStepOutOfOrder, core.FieldError{Field: "step", Error: ErrStepOutOfOrder.Error()})
		}

		if err = wf.blobs.Put(ctx, core.Blob{Key: sig.ImageKey, ContentType: "image/png", Data: img}); err != nil {
			return errors.Wrap(err, "storing signature image")
		}
		if sig, err = wf.repo.CreateSignature(ctx, sig, exec); err != nil {
			return errors.Wrap(err, "creating signature")
		}

		if idx == len(SignOffSteps)-1 {
			jc.setStatus(StatusSignedOff, now)
			jc, err = wf.repo.UpdateJobCard(ctx, jc, exec)
		}
		return err
	})
	if err != nil {
		// the image of a rolled back signature is orphaned
		_ = wf.blobs.Delete(ctx, imageKey)
		return Signature{}, JobCard{}, errors.Wrap(err, "signing off job card")
	}
	return sig, jc, nil
}

func (wf *signOffWorkflow) SignatureImage(ctx context.Context, jc JobCard, step string) (core.Blob, error) {
	sigs, err := wf.repo.QuerySignatures(ctx, jc.ID)
	if err != nil {
		return core.Blob{}, errors.Wrap(err, "querying signatures")
	}
	for _, sig := range sigs {
		if sig.Step == step {
			return wf.blobs.Get(ctx, sig.ImageKey)
		}
	}
	return core.Blob{}, core.ErrBlobNotFound
}
