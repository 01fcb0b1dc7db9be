package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core"
)

func Test_checkPassword(t *testing.T) {
	tests := []struct {
		name    string
		pwd     string
		usrName string
		email   string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 12345!", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "no upper", pwd: "abcd12345!", wantTag: pwdComplexityTag},
		{name: "no special", pwd: "Abcd12345", wantTag: pwdComplexityTag},
		{name: "similar to name", pwd: "Technician1!", usrName: "Technician", wantTag: pwdAttrSimTag},
		{name: "similar to email", pwd: "Jdoe2020!", email: "jdoe2020@test.cd", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd", wantTag: pwdNoCommonTag},
		{name: "valid", pwd: "Str0ng!Pa55w0rd", usrName: "Alice Admin", email: "alice@test.cd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTag, checkPassword(tt.pwd, tt.usrName, tt.email))
		})
	}
}

func TestNewUserValidation(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	nu := NewUser{
		Name:            "Alice",
		Email:           "not-an-email",
		Role:            "janitor",
		Password:        "weak",
		PasswordConfirm: "weaker",
	}
	err := validate.Struct(nu)
	require.Error(t, err)

	fldErrs := core.TranslateValidationErrors(err.(validator.ValidationErrors), translator)
	assert.Equal(t, "email must be a valid email address", fldErrs["email"])
	assert.Equal(t, roleText, fldErrs["role"])
	assert.Equal(t, pwdMinLenText, fldErrs["password"])
	assert.Contains(t, fldErrs, "password_confirm")

	nu = NewUser{
		Name:            "Alice",
		Email:           "alice@test.cd",
		Role:            RoleAdmin,
		Password:        "Str0ng!Pa55w0rd",
		PasswordConfirm: "Str0ng!Pa55w0rd",
	}
	assert.NoError(t, validate.Struct(nu))
}

func TestUser_CanManage(t *testing.T) {
	super := User{ID: "1", Role: RoleSuperAdmin}
	admin := User{ID: "2", CompanyID: "c1", Role: RoleAdmin}
	otherAdmin := User{ID: "3", CompanyID: "c2", Role: RoleAdmin}
	tech := User{ID: "4", CompanyID: "c1", Role: RoleTechnician}
	customer := User{ID: "5", CompanyID: "c1", Role: RoleCustomer}

	assert.True(t, super.CanManage(admin))
	assert.True(t, admin.CanManage(tech))
	assert.True(t, admin.CanManage(customer))
	assert.False(t, admin.CanManage(otherAdmin), "other company")
	assert.False(t, admin.CanManage(super), "higher role")
	assert.False(t, tech.CanManage(customer), "not an admin")

	assert.True(t, super.BelongsTo("anything"))
	assert.True(t, tech.BelongsTo("c1"))
	assert.False(t, tech.BelongsTo("c2"))
	assert.False(t, tech.BelongsTo(""))
}
