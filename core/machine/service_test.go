package machine_test

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/tests"
)

func Test_service(t *testing.T) {
	app := testutil.NewApp(t)
	acme := app.CreateTenant(t, "Acme", "acme")
	globex := app.CreateTenant(t, "Globex", "globex")
	ctx := context.Background()

	_, err := app.Machines.Create(ctx, machine.NewMachine{Name: "Lathe", SerialNumber: "L-1"})
	assert.Error(t, err, "company required")

	_, err = app.Machines.Create(ctx, machine.NewMachine{CompanyID: acme.Company.ID, Name: "Press 2", SerialNumber: "ACME-sn-001"})
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, err)
	assert.Equal(t, []core.FieldError{{Field: "serial_number", Error: machine.ErrSerialExists.Error()}}, verr.Fields)

	m, err := app.Machines.Create(ctx, machine.NewMachine{CompanyID: globex.Company.ID, Name: "Press 2", SerialNumber: "acme-SN-001"})
	require.NoError(t, err, "serial numbers are unique per company")
	assert.NotEmpty(t, m.QRToken)
	assert.NotEqual(t, globex.Machine.QRToken, m.QRToken)

	list, err := app.Machines.Query(ctx, &machine.QueryFilter{CompanyID: globex.Company.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	t.Run("qr code", func(t *testing.T) {
		img, err := app.Machines.QRCode(acme.Machine, 0)
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(bytes.NewReader(img))
		require.NoError(t, err)
		assert.Equal(t, machine.DefaultQRSize, cfg.Width)

		img, err = app.Machines.QRCode(acme.Machine, 512)
		require.NoError(t, err)
		cfg, err = png.DecodeConfig(bytes.NewReader(img))
		require.NoError(t, err)
		assert.Equal(t, 512, cfg.Width)
	})

	t.Run("portal", func(t *testing.T) {
		app.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{MachineID: acme.Machine.ID, Title: "Leak"})

		p, err := app.Machines.Portal(ctx, " "+acme.Machine.QRToken+" ")
		require.NoError(t, err)
		assert.Equal(t, acme.Machine.Name, p.Name)
		assert.Equal(t, acme.Machine.SerialNumber, p.SerialNumber)
		assert.Equal(t, 1, p.OpenJobCards)
		assert.Empty(t, p.SOPs)

		for _, token := range []string{"", "lol"} {
			_, err = app.Machines.Portal(ctx, token)
			assert.Equal(t, machine.ErrNotFound, errors.Cause(err), token)
		}

		rotated, err := app.Machines.RotateQRToken(ctx, acme.Machine)
		require.NoError(t, err)
		assert.NotEqual(t, acme.Machine.QRToken, rotated.QRToken)
		_, err = app.Machines.Portal(ctx, acme.Machine.QRToken)
		assert.Equal(t, machine.ErrNotFound, errors.Cause(err))
		_, err = app.Machines.Portal(ctx, rotated.QRToken)
		assert.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, app.Machines.Delete(ctx, m.ID))
		_, err := app.Machines.GetByID(ctx, m.ID)
		assert.Equal(t, machine.ErrNotFound, errors.Cause(err))
	})
}
