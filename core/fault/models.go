package fault

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/thinkquality/thinkquality/core"
)

// Severities
const (
	SeverityMinor    = "minor"
	SeverityMajor    = "major"
	SeverityCritical = "critical"
)

var AllSeverities = []string{SeverityMinor, SeverityMajor, SeverityCritical}

// Fault is a known failure with its cause and remedy.
type Fault struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	MachineID string    `json:"machine_id"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Symptoms  string    `json:"symptoms"`
	Cause     string    `json:"cause"`
	Remedy    string    `json:"remedy"`
	Severity  string    `json:"severity"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewFault struct {
	CompanyID string `json:"company_id" validate:"omitempty,uuid"`
	MachineID string `json:"machine_id" validate:"omitempty,uuid"`
	Code      string `json:"code" validate:"required,max=50,alphanum_"`
	Title     string `json:"title" validate:"required,max=255"`
	Symptoms  string `json:"symptoms"`
	Cause     string `json:"cause"`
	Remedy    string `json:"remedy"`
	Severity  string `json:"severity" validate:"required,oneof=minor major critical"`
}

func (nf *NewFault) Validate(validate *validator.Validate) error {
	nf.CompanyID = core.CleanString(nf.CompanyID, true /* lower */)
	nf.MachineID = core.CleanString(nf.MachineID, true /* lower */)
	nf.Code = core.CleanString(nf.Code)
	nf.Title = core.CleanString(nf.Title)
	nf.Symptoms = core.CleanString(nf.Symptoms)
	nf.Cause = core.CleanString(nf.Cause)
	nf.Remedy = core.CleanString(nf.Remedy)
	nf.Severity = core.CleanString(nf.Severity, true /* lower */)
	return validate.Struct(nf)
}

type UpdateFault struct {
	MachineID *string `json:"machine_id" validate:"omitempty,uuid"`
	Code      *string `json:"code" validate:"omitempty,max=50,alphanum_"`
	Title     *string `json:"title" validate:"omitempty,min=1,max=255"`
	Symptoms  *string `json:"symptoms"`
	Cause     *string `json:"cause"`
	Remedy    *string `json:"remedy"`
	Severity  *string `json:"severity" validate:"omitempty,oneof=minor major critical"`
}

func (uf *UpdateFault) Validate(validate *validator.Validate) error {
	if uf.MachineID != nil {
		*uf.MachineID = core.CleanString(*uf.MachineID, true /* lower */)
	}
	if uf.Severity != nil {
		*uf.Severity = core.CleanString(*uf.Severity, true /* lower */)
	}
	for _, s := range []*string{uf.Code, uf.Title, uf.Symptoms, uf.Cause, uf.Remedy} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(uf)
}

func (uf UpdateFault) Apply(f *Fault) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&f.MachineID, uf.MachineID)
	set(&f.Code, uf.Code)
	set(&f.Title, uf.Title)
	set(&f.Symptoms, uf.Symptoms)
	set(&f.Cause, uf.Cause)
	set(&f.Remedy, uf.Remedy)
	set(&f.Severity, uf.Severity)
}

type QueryFilter struct {
	CompanyID  string   `query:"company_id"`
	MachineID  string   `query:"machine_id"`
	Severities []string `query:"severity"`
	Search     string   `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	for i, s := range qf.Severities {
		qf.Severities[i] = core.CleanString(s, true /* lower */)
	}
}

// Match reports whether f satisfies every set field of the filter.
// Search does a case-insensitive match on the code, title or symptoms.
func (qf *QueryFilter) Match(f Fault) bool {
	if qf == nil {
		return true
	}
	if qf.CompanyID != "" && f.CompanyID != qf.CompanyID {
		return false
	}
	if qf.MachineID != "" && f.MachineID != qf.MachineID {
		return false
	}
	if len(qf.Severities) > 0 {
		var found bool
		for _, s := range qf.Severities {
			if f.Severity == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return qf.Search == "" || core.ContainsFold(qf.Search, f.Code, f.Title, f.Symptoms)
}
