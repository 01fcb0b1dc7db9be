package company

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/thinkquality/thinkquality/core"
)

// Company is a tenant. Every record but super admins belongs to exactly one Company.
type Company struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type NewCompany struct {
	Name         string `json:"name" validate:"required,max=255"`
	Address      string `json:"address"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email,max=255"`
	ContactPhone string `json:"contact_phone" validate:"max=50"`
}

func (nc *NewCompany) Clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Address = core.CleanString(nc.Address)
	nc.ContactEmail = core.CleanString(nc.ContactEmail, true /* lower */)
	nc.ContactPhone = core.CleanString(nc.ContactPhone)
}

func (nc *NewCompany) Validate(validate *validator.Validate) error {
	nc.Clean()
	return validate.Struct(nc)
}

type UpdateCompany struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	Address      *string `json:"address"`
	ContactEmail *string `json:"contact_email" validate:"omitempty,email,max=255"`
	ContactPhone *string `json:"contact_phone" validate:"omitempty,max=50"`
	IsActive     *bool   `json:"is_active"`
}

func (uc *UpdateCompany) Validate(validate *validator.Validate) error {
	clean := func(s *string, lower ...bool) {
		if s != nil {
			*s = core.CleanString(*s, lower...)
		}
	}
	clean(uc.Name)
	clean(uc.Address)
	clean(uc.ContactEmail, true /* lower */)
	clean(uc.ContactPhone)
	return validate.Struct(uc)
}

// Apply copies every set field onto c.
func (uc UpdateCompany) Apply(c *Company) {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Address != nil {
		c.Address = *uc.Address
	}
	if uc.ContactEmail != nil {
		c.ContactEmail = *uc.ContactEmail
	}
	if uc.ContactPhone != nil {
		c.ContactPhone = *uc.ContactPhone
	}
	if uc.IsActive != nil {
		c.IsActive = *uc.IsActive
	}
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

func (qf *QueryFilter) Match(c Company) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" && !core.ContainsFold(qf.Search, c.Name, c.ContactEmail) {
		return false
	}
	return qf.IsActive == nil || c.IsActive == *qf.IsActive
}
