package sop

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/thinkquality/thinkquality/core"
)

// Statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

var AllStatuses = []string{StatusDraft, StatusPublished, StatusArchived}

// SOP is a standard operating procedure, optionally tied to a machine.
type SOP struct {
	ID             string    `json:"id"`
	CompanyID      string    `json:"company_id"`
	MachineID      string    `json:"machine_id"`
	Code           string    `json:"code"`
	Title          string    `json:"title"`
	Version        int       `json:"version"`
	Steps          []Step    `json:"steps"`
	Status         string    `json:"status"`
	AttachmentKey  string    `json:"-"`
	AttachmentName string    `json:"attachment_name"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s SOP) HasAttachment() bool { return s.AttachmentKey != "" }

type Step struct {
	Order       int    `json:"order" validate:"min=0"`
	Instruction string `json:"instruction" validate:"required"`
	Caution     string `json:"caution"`
}

// normalizeSteps renumbers steps 1..n, keeping their relative order.
func normalizeSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := range out {
		out[i].Order = i + 1
		out[i].Instruction = core.CleanString(out[i].Instruction)
		out[i].Caution = core.CleanString(out[i].Caution)
	}
	return out
}

func stepsEqual(a, b []Step) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type NewSOP struct {
	CompanyID string `json:"company_id" validate:"omitempty,uuid"`
	MachineID string `json:"machine_id" validate:"omitempty,uuid"`
	Code      string `json:"code" validate:"required,max=50,alphanum_"`
	Title     string `json:"title" validate:"required,max=255"`
	Steps     []Step `json:"steps" validate:"dive"`
}

func (ns *NewSOP) Validate(validate *validator.Validate) error {
	ns.CompanyID = core.CleanString(ns.CompanyID, true /* lower */)
	ns.MachineID = core.CleanString(ns.MachineID, true /* lower */)
	ns.Code = core.CleanString(ns.Code)
	ns.Title = core.CleanString(ns.Title)
	ns.Steps = normalizeSteps(ns.Steps)
	return validate.Struct(ns)
}

type UpdateSOP struct {
	MachineID *string `json:"machine_id" validate:"omitempty,uuid"`
	Code      *string `json:"code" validate:"omitempty,max=50,alphanum_"`
	Title     *string `json:"title" validate:"omitempty,min=1,max=255"`
	Steps     *[]Step `json:"steps" validate:"omitempty,dive"`
}

func (us *UpdateSOP) Validate(validate *validator.Validate) error {
	if us.MachineID != nil {
		*us.MachineID = core.CleanString(*us.MachineID, true /* lower */)
	}
	if us.Code != nil {
		*us.Code = core.CleanString(*us.Code)
	}
	if us.Title != nil {
		*us.Title = core.CleanString(*us.Title)
	}
	if us.Steps != nil {
		steps := normalizeSteps(*us.Steps)
		us.Steps = &steps
	}
	return validate.Struct(us)
}

// Apply copies the set fields onto s and reports whether the procedure content changed.
func (us UpdateSOP) Apply(s *SOP) (changed bool) {
	if us.MachineID != nil && *us.MachineID != s.MachineID {
		s.MachineID = *us.MachineID
	}
	if us.Code != nil && *us.Code != s.Code {
		s.Code = *us.Code
		changed = true
	}
	if us.Title != nil && *us.Title != s.Title {
		s.Title = *us.Title
		changed = true
	}
	if us.Steps != nil && !stepsEqual(*us.Steps, s.Steps) {
		s.Steps = *us.Steps
		changed = true
	}
	return changed
}

type SetStatus struct {
	Status string `json:"status" validate:"required,oneof=draft published archived"`
}

type QueryFilter struct {
	CompanyID string   `query:"company_id"`
	MachineID string   `query:"machine_id"`
	Statuses  []string `query:"status"`
	Search    string   `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	for i, s := range qf.Statuses {
		qf.Statuses[i] = core.CleanString(s, true /* lower */)
	}
}

// Match reports whether s satisfies every set field of the filter.
// Search does a case-insensitive match on the code or title.
func (qf *QueryFilter) Match(s SOP) bool {
	if qf == nil {
		return true
	}
	if qf.CompanyID != "" && s.CompanyID != qf.CompanyID {
		return false
	}
	if qf.MachineID != "" && s.MachineID != qf.MachineID {
		return false
	}
	if len(qf.Statuses) > 0 {
		var found bool
		for _, st := range qf.Statuses {
			if s.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return qf.Search == "" || core.ContainsFold(qf.Search, s.Code, s.Title)
}
