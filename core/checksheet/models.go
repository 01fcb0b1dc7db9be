package checksheet

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/thinkquality/thinkquality/core"
)

// Frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyAdhoc   = "adhoc"
)

// Item kinds
const (
	KindBool   = "bool"
	KindNumber = "number"
	KindText   = "text"
)

// CheckSheet is a reusable inspection template.
type CheckSheet struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	MachineID string    `json:"machine_id"`
	Title     string    `json:"title"`
	Frequency string    `json:"frequency"`
	Items     []Item    `json:"items"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Item struct {
	Key      string   `json:"key" yaml:"key" validate:"required,max=50,alphanum_"`
	Label    string   `json:"label" yaml:"label" validate:"required,max=255"`
	Kind     string   `json:"kind" yaml:"kind" validate:"required,oneof=bool number text"`
	Required bool     `json:"required" yaml:"required"`
	Min      *float64 `json:"min" yaml:"min,omitempty"`
	Max      *float64 `json:"max" yaml:"max,omitempty"`
}

// Completion is a filled-in check sheet.
type Completion struct {
	ID           string              `json:"id"`
	CheckSheetID string              `json:"check_sheet_id"`
	CompanyID    string              `json:"company_id"`
	JobCardID    string              `json:"job_card_id"`
	CompletedBy  string              `json:"completed_by"`
	Responses    map[string]Response `json:"responses"`
	Passed       bool                `json:"passed"`
	CompletedAt  time.Time           `json:"completed_at"`
}

type Response struct {
	Value   interface{} `json:"value"`
	Passed  bool        `json:"passed"`
	Comment string      `json:"comment"`
}

type NewCheckSheet struct {
	CompanyID string `json:"company_id" yaml:"company_id,omitempty" validate:"omitempty,uuid"`
	MachineID string `json:"machine_id" yaml:"machine_id,omitempty" validate:"omitempty,uuid"`
	Title     string `json:"title" yaml:"title" validate:"required,max=255"`
	Frequency string `json:"frequency" yaml:"frequency" validate:"required,oneof=daily weekly monthly adhoc"`
	Items     []Item `json:"items" yaml:"items" validate:"required,min=1,dive"`
}

func cleanItems(items []Item) {
	for i := range items {
		items[i].Key = core.CleanString(items[i].Key, true /* lower */)
		items[i].Label = core.CleanString(items[i].Label)
		items[i].Kind = core.CleanString(items[i].Kind, true /* lower */)
	}
}

func (nc *NewCheckSheet) Validate(validate *validator.Validate) error {
	nc.CompanyID = core.CleanString(nc.CompanyID, true /* lower */)
	nc.MachineID = core.CleanString(nc.MachineID, true /* lower */)
	nc.Title = core.CleanString(nc.Title)
	nc.Frequency = core.CleanString(nc.Frequency, true /* lower */)
	cleanItems(nc.Items)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return validateItems(nc.Items)
}

type UpdateCheckSheet struct {
	MachineID *string `json:"machine_id" validate:"omitempty,uuid"`
	Title     *string `json:"title" validate:"omitempty,min=1,max=255"`
	Frequency *string `json:"frequency" validate:"omitempty,oneof=daily weekly monthly adhoc"`
	Items     *[]Item `json:"items" validate:"omitempty,min=1,dive"`
	IsActive  *bool   `json:"is_active"`
}

func (uc *UpdateCheckSheet) Validate(validate *validator.Validate) error {
	if uc.MachineID != nil {
		*uc.MachineID = core.CleanString(*uc.MachineID, true /* lower */)
	}
	if uc.Title != nil {
		*uc.Title = core.CleanString(*uc.Title)
	}
	if uc.Frequency != nil {
		*uc.Frequency = core.CleanString(*uc.Frequency, true /* lower */)
	}
	if uc.Items != nil {
		cleanItems(*uc.Items)
	}
	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.Items != nil {
		return validateItems(*uc.Items)
	}
	return nil
}

func (uc UpdateCheckSheet) Apply(cs *CheckSheet) {
	if uc.MachineID != nil {
		cs.MachineID = *uc.MachineID
	}
	if uc.Title != nil {
		cs.Title = *uc.Title
	}
	if uc.Frequency != nil {
		cs.Frequency = *uc.Frequency
	}
	if uc.Items != nil {
		cs.Items = *uc.Items
	}
	if uc.IsActive != nil {
		cs.IsActive = *uc.IsActive
	}
}

// validateItems checks what field tags cannot: unique keys and sane bounds.
func validateItems(items []Item) error {
	seen := make(map[string]bool, len(items))
	var fldErrs []core.FieldError
	for _, it := range items {
		fld := "items." + it.Key
		switch {
		case seen[it.Key]:
			fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: "duplicate item key"})
		case it.Kind != KindNumber && (it.Min != nil || it.Max != nil):
			fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: "only number items have bounds"})
		case it.Min != nil && it.Max != nil && *it.Min > *it.Max:
			fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: "min cannot be greater than max"})
		}
		seen[it.Key] = true
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

type ResponseInput struct {
	Value   interface{} `json:"value"`
	Comment string      `json:"comment"`
}

type NewCompletion struct {
	JobCardID string                   `json:"job_card_id" validate:"omitempty,uuid"`
	Responses map[string]ResponseInput `json:"responses" validate:"required"`
}

type QueryFilter struct {
	CompanyID string `query:"company_id"`
	MachineID string `query:"machine_id"`
	Frequency string `query:"frequency"`
	IsActive  *bool  `query:"is_active"`
	Search    string `query:"search"`
}

func (qf *QueryFilter) Match(cs CheckSheet) bool {
	if qf == nil {
		return true
	}
	switch {
	case qf.CompanyID != "" && cs.CompanyID != qf.CompanyID,
		qf.MachineID != "" && cs.MachineID != qf.MachineID,
		qf.Frequency != "" && cs.Frequency != qf.Frequency,
		qf.IsActive != nil && cs.IsActive != *qf.IsActive:
		return false
	}
	return qf.Search == "" || core.ContainsFold(qf.Search, cs.Title)
}

type CompletionFilter struct {
	CompanyID    string    `query:"company_id"`
	CheckSheetID string    `query:"check_sheet_id"`
	JobCardID    string    `query:"job_card_id"`
	CompletedBy  string    `query:"completed_by"`
	Passed       *bool     `query:"passed"`
	From         time.Time `query:"from"`
	To           time.Time `query:"to"`
}

func (cf *CompletionFilter) Match(c Completion) bool {
	if cf == nil {
		return true
	}
	switch {
	case cf.CompanyID != "" && c.CompanyID != cf.CompanyID,
		cf.CheckSheetID != "" && c.CheckSheetID != cf.CheckSheetID,
		cf.JobCardID != "" && c.JobCardID != cf.JobCardID,
		cf.CompletedBy != "" && c.CompletedBy != cf.CompletedBy,
		cf.Passed != nil && c.Passed != *cf.Passed,
		!cf.From.IsZero() && c.CompletedAt.Before(cf.From),
		!cf.To.IsZero() && !c.CompletedAt.Before(cf.To):
		return false
	}
	return true
}
