package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/thinkquality/thinkquality/apps/api/echo"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/tests"
)

func Test_jobCardApi_lifecycle(t *testing.T) {
	ts := setup(t)
	acme := ts.CreateTenant(t, "Acme", "acme")
	adminToken := getToken(t, acme.Admin)
	techToken := getToken(t, acme.Technician)
	customerToken := getToken(t, acme.Customer)

	rec := ts.do(t, http.MethodPost, "/v1/jobcards", techToken, jobcard.NewJobCard{Title: "Noise"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "technicians do not open job cards")

	// the customer reports a breakdown
	rec = ts.do(t, http.MethodPost, "/v1/jobcards", customerToken, jobcard.NewJobCard{
		MachineID:  acme.Machine.ID,
		CustomerID: acme.Technician.ID,
		Title:      "Hydraulic leak",
		Priority:   jobcard.PriorityHigh,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var jc jobcard.JobCard
	decode(t, rec, &jc)
	assert.Equal(t, 1, jc.Number)
	assert.Equal(t, acme.Customer.ID, jc.CustomerID, "customers open job cards for themselves")
	assert.Equal(t, jobcard.StatusOpen, jc.Status)
	assert.Contains(t, rec.Body.String(), `"reference":"JC-000001"`)
	path := "/v1/jobcards/" + jc.ID

	ts.run(t, []httpTest{
		{name: "technician cannot see unassigned", path: path, token: techToken, wantCode: http.StatusNotFound},
		{name: "customer sees own", path: path, token: customerToken},
		{
			name: "cannot start before assignment", method: http.MethodPost, path: path + "/timer/start", token: techToken,
			wantCode: http.StatusNotFound,
		},
		{
			name: "assign a customer", method: http.MethodPost, path: path + "/assign", token: adminToken,
			body:     jobcard.AssignJobCard{TechnicianID: acme.Customer.ID},
			wantCode: http.StatusBadRequest, wantData: map[string]string{"technician_id": "technician not found"},
		},
	})

	rec = ts.do(t, http.MethodPost, path+"/assign", adminToken, jobcard.AssignJobCard{TechnicianID: acme.Technician.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &jc)
	assert.Equal(t, jobcard.StatusAssigned, jc.Status)
	assert.Len(t, ts.Mail.Find("jobcard_assigned"), 1, "technician notified")

	// work: 90 minutes, a pause, then 30 more minutes
	var timer TimerResponse
	rec = ts.do(t, http.MethodPost, path+"/timer/start", techToken, jobcard.StartTimer{Note: "draining"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &timer)
	assert.Equal(t, jobcard.StatusInProgress, timer.JobCard.Status)
	assert.True(t, timer.Entry.IsRunning())

	rec = ts.do(t, http.MethodPost, path+"/timer/start", techToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "one running timer per technician")

	ts.Clock.Advance(90 * time.Minute)
	rec = ts.do(t, http.MethodPost, path+"/timer/pause", techToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &timer)
	assert.Equal(t, jobcard.StatusOnHold, timer.JobCard.Status)
	assert.EqualValues(t, 90*60, timer.Entry.DurationSeconds)

	ts.Clock.Advance(time.Hour)
	rec = ts.do(t, http.MethodPost, path+"/timer/resume", techToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ts.Clock.Advance(30 * time.Minute)
	rec = ts.do(t, http.MethodGet, path+"/time", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum jobcard.TimeSummary
	decode(t, rec, &sum)
	assert.EqualValues(t, 2*60*60, sum.TotalSeconds, "running entry counted")
	require.NotNil(t, sum.Running)
	assert.Len(t, sum.Entries, 2)

	ts.run(t, []httpTest{
		{
			name: "sign before completion", method: http.MethodPost, path: path + "/signoff", token: techToken,
			body:     jobcard.SignStep{Step: jobcard.StepTechnicianComplete, Signature: testutil.SignaturePNG},
			wantCode: http.StatusBadRequest, wantData: map[string]string{"status": jobcard.ErrNotCompleted.Error()},
		},
		{
			name: "sign-off through transition", method: http.MethodPost, path: path + "/transition", token: adminToken,
			body: jobcard.TransitionJobCard{Status: jobcard.StatusSignedOff}, wantCode: http.StatusBadRequest,
		},
	})

	rec = ts.do(t, http.MethodPost, path+"/timer/stop", techToken, jobcard.StopTimer{Complete: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &timer)
	assert.Equal(t, jobcard.StatusCompleted, timer.JobCard.Status)
	assert.NotNil(t, timer.JobCard.CompletedAt)

	sign := func(token, step string) *SignResponse {
		rec := ts.do(t, http.MethodPost, path+"/signoff", token, jobcard.SignStep{Step: step, Signature: testutil.SignaturePNG})
		if rec.Code != http.StatusCreated {
			return nil
		}
		var resp SignResponse
		decode(t, rec, &resp)
		return &resp
	}

	assert.Nil(t, sign(customerToken, jobcard.StepCustomerAcceptance), "out of order")
	assert.Nil(t, sign(adminToken, jobcard.StepTechnicianComplete), "wrong role")

	resp := sign(techToken, jobcard.StepTechnicianComplete)
	require.NotNil(t, resp)
	assert.Equal(t, acme.Technician.ID, resp.Signature.SignerID)
	assert.Nil(t, sign(techToken, jobcard.StepTechnicianComplete), "already signed")

	require.NotNil(t, sign(customerToken, jobcard.StepCustomerAcceptance))
	resp = sign(adminToken, jobcard.StepSupervisorApproval)
	require.NotNil(t, resp)
	assert.Equal(t, jobcard.StatusSignedOff, resp.JobCard.Status)

	rec = ts.do(t, http.MethodGet, path+"/signoff", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status jobcard.SignOffStatus
	decode(t, rec, &status)
	assert.True(t, status.Complete)
	assert.Empty(t, status.NextStep)
	assert.Len(t, status.Steps, 3)

	rec = ts.do(t, http.MethodGet, path+"/signoff/"+jobcard.StepCustomerAcceptance+"/signature", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = ts.do(t, http.MethodPut, path, adminToken, map[string]string{"title": "Too late"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "signed off job cards are closed")
}

func Test_jobCardApi_query(t *testing.T) {
	ts := setup(t)
	acme := ts.CreateTenant(t, "Acme", "acme")
	globex := ts.CreateTenant(t, "Globex", "globex")

	leak := ts.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Hydraulic leak", Priority: jobcard.PriorityUrgent})
	belt := ts.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Worn belt", Priority: jobcard.PriorityLow})
	ts.CreateJobCard(t, globex.Admin, jobcard.NewJobCard{Title: "Globex belt"})

	list := func(t *testing.T, token, query string) []jobcard.JobCard {
		rec := ts.do(t, http.MethodGet, "/v1/jobcards"+query, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var jcs []jobcard.JobCard
		decode(t, rec, &jcs)
		return jcs
	}
	ids := func(jcs []jobcard.JobCard) []string {
		out := make([]string, 0, len(jcs))
		for _, jc := range jcs {
			out = append(out, jc.ID)
		}
		return out
	}

	adminToken := getToken(t, acme.Admin)
	assert.ElementsMatch(t, []string{leak.ID, belt.ID}, ids(list(t, adminToken, "")))
	assert.Equal(t, []string{leak.ID}, ids(list(t, adminToken, "?search=leak")))
	assert.Equal(t, []string{belt.ID}, ids(list(t, adminToken, "?search=JC-000002")))
	assert.Equal(t, []string{belt.ID}, ids(list(t, adminToken, "?priority=low")))
	assert.Equal(t, []string{belt.ID, leak.ID}, ids(list(t, adminToken, "?ordering=-number")))
	assert.Empty(t, list(t, getToken(t, acme.Technician), ""), "nothing assigned")

	rec := ts.do(t, http.MethodGet, "/v1/jobcards/"+leak.ID, getToken(t, globex.Admin), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
