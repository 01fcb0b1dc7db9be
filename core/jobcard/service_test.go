package jobcard_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/user"
	"github.com/thinkquality/thinkquality/tests"
)

// fieldErrors returns the field errors of a *core.ValidationError, failing otherwise.
func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want a validation error, got %v", err)
	fields := make(map[string]string, len(verr.Fields))
	for _, fe := range verr.Fields {
		fields[fe.Field] = fe.Error
	}
	return fields
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{jobcard.StatusOpen, jobcard.StatusAssigned, true},
		{jobcard.StatusOpen, jobcard.StatusInProgress, false},
		{jobcard.StatusAssigned, jobcard.StatusInProgress, true},
		{jobcard.StatusInProgress, jobcard.StatusOnHold, true},
		{jobcard.StatusOnHold, jobcard.StatusCompleted, true},
		{jobcard.StatusOnHold, jobcard.StatusSignedOff, false},
		{jobcard.StatusInProgress, jobcard.StatusCompleted, true},
		{jobcard.StatusCompleted, jobcard.StatusInProgress, true},
		{jobcard.StatusCompleted, jobcard.StatusSignedOff, true},
		{jobcard.StatusSignedOff, jobcard.StatusInProgress, false},
		{jobcard.StatusCancelled, jobcard.StatusOpen, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, jobcard.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestParseNumber(t *testing.T) {
	n, ok := jobcard.ParseNumber(" jc-000042 ")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	assert.Equal(t, "JC-000042", jobcard.FormatNumber(n))

	n, ok = jobcard.ParseNumber("7")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	for _, ref := range []string{"", "JC-", "JC-0", "press"} {
		_, ok = jobcard.ParseNumber(ref)
		assert.False(t, ok, ref)
	}
}

func Test_service_Create(t *testing.T) {
	app := testutil.NewApp(t)
	acme := app.CreateTenant(t, "Acme", "acme")
	globex := app.CreateTenant(t, "Globex", "globex")
	root := app.CreateUser(t, "", "Root", "root@example.com", user.RoleSuperAdmin)
	ctx := context.Background()

	t.Run("technicians cannot", func(t *testing.T) {
		_, err := app.JobCards.Create(ctx, acme.Technician, jobcard.NewJobCard{Title: "Leak"})
		assert.True(t, core.IsPermissionError(err))
	})

	t.Run("super admins choose the company", func(t *testing.T) {
		_, err := app.JobCards.Create(ctx, root, jobcard.NewJobCard{Title: "Leak"})
		assert.Equal(t, map[string]string{"company_id": "this field is required"}, fieldErrors(t, err))

		jc, err := app.JobCards.Create(ctx, root, jobcard.NewJobCard{CompanyID: globex.Company.ID, Title: "Leak"})
		require.NoError(t, err)
		assert.Equal(t, globex.Company.ID, jc.CompanyID)
		assert.Equal(t, 1, jc.Number)
	})

	t.Run("numbers are per company", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			jc := app.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Leak"})
			assert.Equal(t, i, jc.Number)
			assert.Equal(t, jobcard.StatusOpen, jc.Status)
			assert.Equal(t, acme.Admin.ID, jc.CreatedBy)
		}
		jc := app.CreateJobCard(t, globex.Admin, jobcard.NewJobCard{Title: "Leak"})
		assert.Equal(t, 2, jc.Number)
	})

	t.Run("customers open their own", func(t *testing.T) {
		jc, err := app.JobCards.Create(ctx, acme.Customer, jobcard.NewJobCard{
			CompanyID:  globex.Company.ID,
			CustomerID: globex.Customer.ID,
			MachineID:  acme.Machine.ID,
			Title:      "Press makes noise",
		})
		require.NoError(t, err)
		assert.Equal(t, acme.Company.ID, jc.CompanyID)
		assert.Equal(t, acme.Customer.ID, jc.CustomerID)
	})

	t.Run("references stay in the company", func(t *testing.T) {
		_, err := app.JobCards.Create(ctx, acme.Admin, jobcard.NewJobCard{MachineID: globex.Machine.ID, Title: "Leak"})
		assert.Equal(t, map[string]string{"machine_id": "machine not found"}, fieldErrors(t, err))

		_, err = app.JobCards.Create(ctx, acme.Admin, jobcard.NewJobCard{CustomerID: acme.Technician.ID, Title: "Leak"})
		assert.Equal(t, map[string]string{"customer_id": "customer not found"}, fieldErrors(t, err))
	})
}

func Test_service_visibility(t *testing.T) {
	app := testutil.NewApp(t)
	acme := app.CreateTenant(t, "Acme", "acme")
	globex := app.CreateTenant(t, "Globex", "globex")
	other := app.CreateUser(t, acme.Company.ID, "Other Tech", "other.tech@example.com", user.RoleTechnician)
	ctx := context.Background()

	jc := app.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Leak", CustomerID: acme.Customer.ID})
	jc, err := app.JobCards.Assign(ctx, acme.Admin, jc, acme.Technician.ID)
	require.NoError(t, err)
	app.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Unassigned"})

	for _, tt := range []struct {
		name  string
		actor user.User
		sees  int
	}{
		{"admin", acme.Admin, 2},
		{"assigned technician", acme.Technician, 1},
		{"other technician", other, 0},
		{"customer", acme.Customer, 1},
		{"other company", globex.Admin, 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cards, err := app.JobCards.Query(ctx, tt.actor, nil, nil)
			require.NoError(t, err)
			assert.Len(t, cards, tt.sees)

			_, err = app.JobCards.Get(ctx, tt.actor, jc.ID)
			if tt.sees > 0 {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, jobcard.ErrNotFound, errors.Cause(err))
			}
		})
	}
}

func Test_service_Assign(t *testing.T) {
	app := testutil.NewApp(t)
	acme := app.CreateTenant(t, "Acme", "acme")
	globex := app.CreateTenant(t, "Globex", "globex")
	other := app.CreateUser(t, acme.Company.ID, "Other Tech", "other.tech@example.com", user.RoleTechnician)
	ctx := context.Background()
	jc := app.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Leak"})

	_, err := app.JobCards.Assign(ctx, acme.Technician, jc, acme.Technician.ID)
	assert.True(t, core.IsPermissionError(err))

	for _, id := range []string{globex.Technician.ID, acme.Customer.ID, "lol"} {
		_, err = app.JobCards.Assign(ctx, acme.Admin, jc, id)
		assert.Equal(t, map[string]string{"technician_id": "technician not found"}, fieldErrors(t, err))
	}

	jc, err = app.JobCards.Assign(ctx, acme.Admin, jc, acme.Technician.ID)
	require.NoError(t, err)
	assert.Equal(t, jobcard.StatusAssigned, jc.Status)
	assert.Equal(t, acme.Technician.ID, jc.TechnicianID)

	msgs := app.Mail.Find("jobcard_assigned")
	require.Len(t, msgs, 1)
	assert.Equal(t, acme.Technician.Email, msgs[0].To[0].Address)
	assert.Equal(t, "JC-000001", msgs[0].TemplateData.(map[string]string)["Number"])

	t.Run("reassigning stops the previous timer", func(t *testing.T) {
		_, jc, err = app.TimeTracker.Start(ctx, acme.Technician, jc, jobcard.StartTimer{})
		require.NoError(t, err)
		require.Equal(t, jobcard.StatusInProgress, jc.Status)

		jc, err = app.JobCards.Assign(ctx, acme.Admin, jc, other.ID)
		require.NoError(t, err)
		assert.Equal(t, jobcard.StatusInProgress, jc.Status, "work goes on")

		running, err := app.JobCardRepo.QueryTimeEntries(ctx, jobcard.TimeEntryFilter{JobCardID: jc.ID, RunningOnly: true})
		require.NoError(t, err)
		assert.Empty(t, running)
	})
}

func Test_service_Transition(t *testing.T) {
	app := testutil.NewApp(t)
	acme := app.CreateTenant(t, "Acme", "acme")
	ctx := context.Background()

	jc := app.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Leak"})
	_, err := app.JobCards.Transition(ctx, acme.Admin, jc, jobcard.StatusAssigned)
	assert.Equal(t, map[string]string{"status": "assign a technician first"}, fieldErrors(t, err))

	_, err = app.JobCards.Transition(ctx, acme.Admin, jc, jobcard.StatusCompleted)
	assert.Equal(t, map[string]string{"status": "cannot move from open to completed"}, fieldErrors(t, err))
	assert.Equal(t, jobcard.ErrInvalidTransition, fieldCause(err))

	jc, err = app.JobCards.Assign(ctx, acme.Admin, jc, acme.Technician.ID)
	require.NoError(t, err)

	_, err = app.JobCards.Transition(ctx, acme.Customer, jc, jobcard.StatusCancelled)
	assert.True(t, core.IsPermissionError(err))
	_, err = app.JobCards.Transition(ctx, acme.Technician, jc, jobcard.StatusCancelled)
	assert.True(t, core.IsPermissionError(err), "technicians cannot cancel")

	jc, err = app.JobCards.Transition(ctx, acme.Technician, jc, jobcard.StatusInProgress)
	require.NoError(t, err)
	jc, err = app.JobCards.Transition(ctx, acme.Technician, jc, jobcard.StatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, jc.CompletedAt)

	_, err = app.JobCards.Transition(ctx, acme.Admin, jc, jobcard.StatusSignedOff)
	assert.Contains(t, fieldErrors(t, err), "status")

	_, err = app.JobCards.Update(ctx, acme.Admin, jc, jobcard.UpdateJobCard{})
	assert.Equal(t, map[string]string{"status": "closed job cards cannot be edited"}, fieldErrors(t, err))

	jc, err = app.JobCards.Transition(ctx, acme.Admin, jc, jobcard.StatusInProgress)
	require.NoError(t, err)
	assert.Nil(t, jc.CompletedAt, "reopened")

	t.Run("leaving in_progress stops the timer", func(t *testing.T) {
		_, jc, err = app.TimeTracker.Start(ctx, acme.Technician, jc, jobcard.StartTimer{})
		require.NoError(t, err)

		jc, err = app.JobCards.Transition(ctx, acme.Admin, jc, jobcard.StatusCancelled)
		require.NoError(t, err)
		running, err := app.JobCardRepo.QueryTimeEntries(ctx, jobcard.TimeEntryFilter{JobCardID: jc.ID, RunningOnly: true})
		require.NoError(t, err)
		assert.Empty(t, running)
	})
}

func fieldCause(err error) error {
	if verr, ok := errors.Cause(err).(*core.ValidationError); ok {
		return verr.Err
	}
	return nil
}

func Test_timeTracker(t *testing.T) {
	app := testutil.NewApp(t)
	acme := app.CreateTenant(t, "Acme", "acme")
	other := app.CreateUser(t, acme.Company.ID, "Other Tech", "other.tech@example.com", user.RoleTechnician)
	ctx := context.Background()

	jc := app.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Leak"})
	_, _, err := app.TimeTracker.Start(ctx, acme.Technician, jc, jobcard.StartTimer{})
	assert.True(t, core.IsPermissionError(err), "not assigned yet")

	jc, err = app.JobCards.Assign(ctx, acme.Admin, jc, acme.Technician.ID)
	require.NoError(t, err)
	for _, actor := range []user.User{acme.Admin, other, acme.Customer} {
		_, _, err = app.TimeTracker.Start(ctx, actor, jc, jobcard.StartTimer{})
		assert.True(t, core.IsPermissionError(err), actor.Email)
	}

	_, _, err = app.TimeTracker.Pause(ctx, acme.Technician, jc)
	assert.Equal(t, jobcard.ErrTimerNotRunning, fieldCause(err))

	start := app.Clock.Now()
	te, jc, err := app.TimeTracker.Start(ctx, acme.Technician, jc, jobcard.StartTimer{Note: " diagnosis "})
	require.NoError(t, err)
	assert.True(t, te.IsRunning())
	assert.Equal(t, start, te.StartedAt)
	assert.Equal(t, "diagnosis", te.Note)
	assert.Equal(t, jobcard.StatusInProgress, jc.Status)

	_, _, err = app.TimeTracker.Start(ctx, acme.Technician, jc, jobcard.StartTimer{})
	assert.Equal(t, jobcard.ErrTimerRunning, fieldCause(err))

	app.Clock.Advance(45*time.Minute + 500*time.Millisecond)
	te, jc, err = app.TimeTracker.Pause(ctx, acme.Technician, jc)
	require.NoError(t, err)
	assert.False(t, te.IsRunning())
	assert.Equal(t, int64(45*60), te.DurationSeconds, "floored to the second")
	assert.Equal(t, jobcard.StatusOnHold, jc.Status)

	app.Clock.Advance(time.Hour) // lunch
	_, jc, err = app.TimeTracker.Resume(ctx, acme.Technician, jc, jobcard.StartTimer{})
	require.NoError(t, err)
	assert.Equal(t, jobcard.StatusInProgress, jc.Status)

	app.Clock.Advance(15 * time.Minute)
	sum, err := app.TimeTracker.Summary(ctx, jc)
	require.NoError(t, err)
	assert.Equal(t, int64(60*60), sum.TotalSeconds, "running entries count their elapsed time")
	require.NotNil(t, sum.Running)
	assert.Len(t, sum.Entries, 2)

	te, jc, err = app.TimeTracker.Stop(ctx, acme.Technician, jc, jobcard.StopTimer{Note: "replaced seal", Complete: true})
	require.NoError(t, err)
	assert.Equal(t, "replaced seal", te.Note)
	assert.Equal(t, int64(15*60), te.DurationSeconds)
	assert.Equal(t, jobcard.StatusCompleted, jc.Status)

	_, _, err = app.TimeTracker.Start(ctx, acme.Technician, jc, jobcard.StartTimer{})
	assert.Contains(t, fieldErrors(t, err), "status", "completed job cards are not tracked")

	sum, err = app.TimeTracker.Summary(ctx, jc)
	require.NoError(t, err)
	assert.Nil(t, sum.Running)
	assert.Equal(t, int64(60*60), sum.TotalSeconds)
}

func Test_timeTracker_completePaused(t *testing.T) {
	app := testutil.NewApp(t)
	acme := app.CreateTenant(t, "Acme", "acme")
	ctx := context.Background()

	jc := app.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Worn belt"})
	jc, err := app.JobCards.Assign(ctx, acme.Admin, jc, acme.Technician.ID)
	require.NoError(t, err)
	_, jc, err = app.TimeTracker.Start(ctx, acme.Technician, jc, jobcard.StartTimer{})
	require.NoError(t, err)
	app.Clock.Advance(20 * time.Minute)
	_, jc, err = app.TimeTracker.Pause(ctx, acme.Technician, jc)
	require.NoError(t, err)
	require.Equal(t, jobcard.StatusOnHold, jc.Status)

	_, _, err = app.TimeTracker.Stop(ctx, acme.Technician, jc, jobcard.StopTimer{})
	assert.Equal(t, jobcard.ErrTimerNotRunning, fieldCause(err), "nothing to stop")

	te, jc, err := app.TimeTracker.Stop(ctx, acme.Technician, jc, jobcard.StopTimer{Complete: true})
	require.NoError(t, err)
	assert.Empty(t, te.ID)
	assert.Equal(t, jobcard.StatusCompleted, jc.Status)

	sum, err := app.TimeTracker.Summary(ctx, jc)
	require.NoError(t, err)
	assert.Len(t, sum.Entries, 1)
	assert.Equal(t, int64(20*60), sum.TotalSeconds)

	got, err := app.JobCards.Get(ctx, acme.Admin, jc.ID)
	require.NoError(t, err)
	assert.Equal(t, jobcard.StatusCompleted, got.Status)
}

func Test_signOffWorkflow(t *testing.T) {
	app := testutil.NewApp(t)
	acme := app.CreateTenant(t, "Acme", "acme")
	otherCustomer := app.CreateUser(t, acme.Company.ID, "Other Customer", "other.customer@example.com", user.RoleCustomer)
	ctx := context.Background()

	jc := app.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Leak", CustomerID: acme.Customer.ID})
	jc, err := app.JobCards.Assign(ctx, acme.Admin, jc, acme.Technician.ID)
	require.NoError(t, err)

	sign := func(actor user.User, step string) (jobcard.Signature, jobcard.JobCard, error) {
		return app.SignOff.Sign(ctx, actor, jc, jobcard.SignStep{Step: step, Signature: testutil.SignaturePNG})
	}

	_, _, err = sign(acme.Technician, jobcard.StepTechnicianComplete)
	assert.Equal(t, jobcard.ErrNotCompleted, fieldCause(err))

	_, jc, err = app.TimeTracker.Start(ctx, acme.Technician, jc, jobcard.StartTimer{})
	require.NoError(t, err)
	app.Clock.Advance(time.Hour)
	_, jc, err = app.TimeTracker.Stop(ctx, acme.Technician, jc, jobcard.StopTimer{Complete: true})
	require.NoError(t, err)

	status, err := app.SignOff.Status(ctx, jc)
	require.NoError(t, err)
	assert.Equal(t, jobcard.StepTechnicianComplete, status.NextStep)
	assert.False(t, status.Complete)
	require.Len(t, status.Steps, 3)

	tests := []struct {
		name    string
		actor   user.User
		step    string
		sig     string
		wantErr error // nil, core.PermissionError or the validation cause
	}{
		{name: "unknown step", actor: acme.Admin, step: "lol", wantErr: errors.New("unknown sign-off step")},
		{name: "wrong role", actor: acme.Admin, step: jobcard.StepTechnicianComplete, wantErr: &core.PermissionError{}},
		{name: "out of order", actor: acme.Customer, step: jobcard.StepCustomerAcceptance, wantErr: jobcard.ErrStepOutOfOrder},
		{name: "not a png", actor: acme.Technician, step: jobcard.StepTechnicianComplete, sig: "bG9s", wantErr: jobcard.ErrInvalidSignature},
		{name: "technician", actor: acme.Technician, step: jobcard.StepTechnicianComplete},
		{name: "signed twice", actor: acme.Technician, step: jobcard.StepTechnicianComplete, wantErr: jobcard.ErrAlreadySigned},
		{name: "not the customer", actor: otherCustomer, step: jobcard.StepCustomerAcceptance, wantErr: &core.PermissionError{}},
		{name: "customer", actor: acme.Customer, step: jobcard.StepCustomerAcceptance, sig: "data:image/png;base64," + testutil.SignaturePNG},
		{name: "supervisor", actor: acme.Admin, step: jobcard.StepSupervisorApproval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := tt.sig
			if sig == "" {
				sig = testutil.SignaturePNG
			}
			signature, signed, err := app.SignOff.Sign(ctx, tt.actor, jc, jobcard.SignStep{Step: tt.step, Signature: sig, Comment: " ok "})
			switch want := tt.wantErr.(type) {
			case nil:
				require.NoError(t, err)
				assert.Equal(t, tt.actor.ID, signature.SignerID)
				assert.Equal(t, tt.actor.Name, signature.SignerName)
				assert.Equal(t, "ok", signature.Comment)
				if signed.ID != "" {
					jc = signed
				}
			case *core.PermissionError:
				assert.True(t, core.IsPermissionError(err), "got %v", err)
			default:
				require.Error(t, err)
				assert.Equal(t, want.Error(), fieldCause(err).Error())
			}
		})
	}

	assert.Equal(t, jobcard.StatusSignedOff, jc.Status)
	status, err = app.SignOff.Status(ctx, jc)
	require.NoError(t, err)
	assert.True(t, status.Complete)
	assert.Empty(t, status.NextStep)
	for _, st := range status.Steps {
		assert.True(t, st.Signed, st.Key)
	}

	img, err := app.SignOff.SignatureImage(ctx, jc, jobcard.StepCustomerAcceptance)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)

	_, err = app.SignOff.SignatureImage(ctx, app.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "New"}), jobcard.StepCustomerAcceptance)
	assert.Equal(t, core.ErrBlobNotFound, errors.Cause(err))
}
