package sop_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/sop"
	"github.com/thinkquality/thinkquality/tests"
)

func strPtr(s string) *string { return &s }

func Test_service(t *testing.T) {
	app := testutil.NewApp(t)
	acme := app.CreateTenant(t, "Acme", "acme")
	globex := app.CreateTenant(t, "Globex", "globex")
	ctx := context.Background()

	ns := sop.NewSOP{
		MachineID: acme.Machine.ID,
		Code:      " SOP-1 ",
		Title:     "Start up",
		Steps: []sop.Step{
			{Order: 20, Instruction: "Close the guards"},
			{Order: 10, Instruction: " Check the oil ", Caution: "hot surface"},
		},
	}
	require.NoError(t, ns.Validate(app.Validate))
	assert.Equal(t, []sop.Step{
		{Order: 1, Instruction: "Check the oil", Caution: "hot surface"},
		{Order: 2, Instruction: "Close the guards"},
	}, ns.Steps)

	_, err := app.SOPs.Create(ctx, acme.Technician, ns)
	assert.True(t, core.IsPermissionError(err))

	s, err := app.SOPs.Create(ctx, acme.Admin, ns)
	require.NoError(t, err)
	assert.Equal(t, acme.Company.ID, s.CompanyID)
	assert.Equal(t, "SOP-1", s.Code)
	assert.Equal(t, 1, s.Version)
	assert.Equal(t, sop.StatusDraft, s.Status)

	_, err = app.SOPs.Create(ctx, acme.Admin, ns)
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, err)
	assert.Equal(t, []core.FieldError{{Field: "code", Error: sop.ErrCodeExists.Error()}}, verr.Fields)

	_, err = app.SOPs.Create(ctx, globex.Admin, ns)
	assert.Error(t, err, "machine of another company")
	ns.MachineID = ""
	_, err = app.SOPs.Create(ctx, globex.Admin, ns)
	assert.NoError(t, err, "codes are unique per company")

	t.Run("drafts are hidden from non admins", func(t *testing.T) {
		_, err := app.SOPs.Get(ctx, acme.Technician, s.ID)
		assert.Equal(t, sop.ErrNotFound, errors.Cause(err))
		_, err = app.SOPs.Get(ctx, globex.Admin, s.ID)
		assert.Equal(t, sop.ErrNotFound, errors.Cause(err))

		list, err := app.SOPs.Query(ctx, acme.Technician, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, list)
		list, err = app.SOPs.Query(ctx, acme.Admin, nil, nil)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("publishing", func(t *testing.T) {
		empty, err := app.SOPs.Create(ctx, acme.Admin, sop.NewSOP{Code: "EMPTY", Title: "Nothing yet"})
		require.NoError(t, err)
		_, err = app.SOPs.SetStatus(ctx, acme.Admin, empty, sop.StatusPublished)
		assert.Error(t, err, "no steps")
		_, err = app.SOPs.SetStatus(ctx, acme.Technician, s, sop.StatusPublished)
		assert.True(t, core.IsPermissionError(err))

		s, err = app.SOPs.SetStatus(ctx, acme.Admin, s, sop.StatusPublished)
		require.NoError(t, err)
		assert.Equal(t, 1, s.Version)

		got, err := app.SOPs.Get(ctx, acme.Customer, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.Title, got.Title)
	})

	t.Run("content changes bump the version", func(t *testing.T) {
		us := sop.UpdateSOP{Title: strPtr("Start up")}
		require.NoError(t, us.Validate(app.Validate))
		s, err = app.SOPs.Update(ctx, acme.Admin, s, us)
		require.NoError(t, err)
		assert.Equal(t, 1, s.Version, "same title")

		steps := append([]sop.Step{{Instruction: "Lock out the press"}}, s.Steps...)
		us = sop.UpdateSOP{Steps: &steps}
		require.NoError(t, us.Validate(app.Validate))
		s, err = app.SOPs.Update(ctx, acme.Admin, s, us)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Version)
		assert.Len(t, s.Steps, 3)
		assert.Equal(t, "Lock out the press", s.Steps[0].Instruction)

		s, err = app.SOPs.SetStatus(ctx, acme.Admin, s, sop.StatusArchived)
		require.NoError(t, err)
		_, err = app.SOPs.Update(ctx, acme.Admin, s, us)
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, err)
		assert.Equal(t, "status", verr.Fields[0].Field)
	})

	t.Run("attachments", func(t *testing.T) {
		_, err := app.SOPs.Attachment(ctx, s)
		assert.Equal(t, sop.ErrNoAttachment, err)

		_, err = app.SOPs.Attach(ctx, acme.Admin, s, "empty.pdf", "application/pdf", nil)
		assert.Error(t, err)
		_, err = app.SOPs.Attach(ctx, acme.Customer, s, "manual.pdf", "application/pdf", []byte("%PDF-1.4"))
		assert.True(t, core.IsPermissionError(err))

		s, err = app.SOPs.Attach(ctx, acme.Admin, s, "../manual.pdf", "application/pdf", []byte("%PDF-1.4"))
		require.NoError(t, err)
		assert.Equal(t, "manual.pdf", s.AttachmentName)
		first := s.AttachmentKey

		s, err = app.SOPs.Attach(ctx, acme.Admin, s, "manual-v2.pdf", "application/pdf", []byte("%PDF-1.7"))
		require.NoError(t, err)
		blob, err := app.SOPs.Attachment(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", blob.ContentType)
		assert.Equal(t, []byte("%PDF-1.7"), blob.Data)

		_, err = app.Blobs.Get(ctx, first)
		assert.Equal(t, core.ErrBlobNotFound, err, "replaced attachments are removed")

		require.NoError(t, app.SOPs.Delete(ctx, acme.Admin, s))
		_, err = app.Blobs.Get(ctx, s.AttachmentKey)
		assert.Equal(t, core.ErrBlobNotFound, err)
	})
}
