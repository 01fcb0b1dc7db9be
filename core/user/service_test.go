package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core/user"
	"github.com/thinkquality/thinkquality/tests"
)

func Test_service_Update(t *testing.T) {
	app := testutil.NewApp(t)
	acme := app.CreateTenant(t, "Acme", "acme")
	ctx := context.Background()
	tech := acme.Technician

	inactive := false
	usr, err := app.Users.Update(ctx, tech, user.UpdateUser{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, usr.IsActive)
	assert.Equal(t, tech.Name, usr.Name, "unset fields are kept")
	assert.Equal(t, tech.Email, usr.Email)
	assert.Equal(t, tech.Role, usr.Role)

	got, err := app.Users.GetByID(ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, tech.Email, got.Email)
	assert.False(t, got.IsActive)

	phone := "+254 700 000000"
	uu := user.UpdateUser{Name: " Tom Tech ", Phone: &phone}
	require.NoError(t, uu.Validate(ctx, got, app.Validate, app.Users))
	usr, err = app.Users.Update(ctx, got, uu)
	require.NoError(t, err)
	assert.Equal(t, "Tom Tech", usr.Name)
	assert.Equal(t, phone, usr.Phone)
	assert.Equal(t, tech.Email, usr.Email)
	assert.Equal(t, user.RoleTechnician, usr.Role)

	usr, err = app.Users.Update(ctx, usr, user.UpdateUser{Password: "n3w-Passw0rd!"})
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("n3w-Passw0rd!"))
	assert.Equal(t, "Tom Tech", usr.Name)
}
