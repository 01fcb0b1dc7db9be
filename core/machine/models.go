package machine

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/thinkquality/thinkquality/core"
)

const qrTokenBytes = 18 // 24 url-safe characters

type Machine struct {
	ID           string     `json:"id"`
	CompanyID    string     `json:"company_id"`
	Name         string     `json:"name"`
	Model        string     `json:"model"`
	SerialNumber string     `json:"serial_number"`
	Location     string     `json:"location"`
	QRToken      string     `json:"qr_token"`
	InstalledAt  *time.Time `json:"installed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PortalURL is the public page encoded in the machine QR code.
func (m Machine) PortalURL() string {
	return core.Conf.FrontendBaseURL + "/portal/" + m.QRToken
}

func NewQRToken() (string, error) {
	b := make([]byte, qrTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type NewMachine struct {
	CompanyID    string     `json:"company_id" validate:"omitempty,uuid"`
	Name         string     `json:"name" validate:"required,max=255"`
	Model        string     `json:"model" validate:"max=255"`
	SerialNumber string     `json:"serial_number" validate:"required,max=255"`
	Location     string     `json:"location" validate:"max=255"`
	InstalledAt  *time.Time `json:"installed_at"`
}

func (nm *NewMachine) Validate(validate *validator.Validate) error {
	nm.CompanyID = core.CleanString(nm.CompanyID, true /* lower */)
	nm.Name = core.CleanString(nm.Name)
	nm.Model = core.CleanString(nm.Model)
	nm.SerialNumber = core.CleanString(nm.SerialNumber)
	nm.Location = core.CleanString(nm.Location)
	return validate.Struct(nm)
}

type UpdateMachine struct {
	Name         *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Model        *string    `json:"model" validate:"omitempty,max=255"`
	SerialNumber *string    `json:"serial_number" validate:"omitempty,min=1,max=255"`
	Location     *string    `json:"location" validate:"omitempty,max=255"`
	InstalledAt  *time.Time `json:"installed_at"`
}

func (um *UpdateMachine) Validate(validate *validator.Validate) error {
	for _, s := range []*string{um.Name, um.Model, um.SerialNumber, um.Location} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(um)
}

func (um UpdateMachine) Apply(m *Machine) {
	if um.Name != nil {
		m.Name = *um.Name
	}
	if um.Model != nil {
		m.Model = *um.Model
	}
	if um.SerialNumber != nil {
		m.SerialNumber = *um.SerialNumber
	}
	if um.Location != nil {
		m.Location = *um.Location
	}
	if um.InstalledAt != nil {
		m.InstalledAt = um.InstalledAt
	}
}

type QueryFilter struct {
	CompanyID string `query:"company_id"`
	Search    string `query:"search"`
}

func (qf *QueryFilter) Match(m Machine) bool {
	if qf == nil {
		return true
	}
	if qf.CompanyID != "" && m.CompanyID != qf.CompanyID {
		return false
	}
	return qf.Search == "" || core.ContainsFold(qf.Search, m.Name, m.Model, m.SerialNumber, m.Location)
}

// GetFilter selects a single Machine. The first non-empty field wins.
type GetFilter struct {
	ID      string
	QRToken string
}

// Portal is the public machine summary served behind its QR code.
type Portal struct {
	Name         string        `json:"name"`
	Model        string        `json:"model"`
	SerialNumber string        `json:"serial_number"`
	Location     string        `json:"location"`
	SOPs         []PortalSOP   `json:"sops"`
	Faults       []PortalFault `json:"faults"`
	OpenJobCards int           `json:"open_job_cards"`
}

type PortalSOP struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Version int    `json:"version"`
}

type PortalFault struct {
	Code     string `json:"code"`
	Title    string `json:"title"`
	Severity string `json:"severity"`
	Remedy   string `json:"remedy"`
}
