package tests

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core/checksheet"
	"github.com/thinkquality/thinkquality/core/company"
	"github.com/thinkquality/thinkquality/core/dashboard"
	"github.com/thinkquality/thinkquality/core/fault"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/report"
	"github.com/thinkquality/thinkquality/core/sop"
	"github.com/thinkquality/thinkquality/core/user"
)

func Test_companyApi(t *testing.T) {
	ts := setup(t)
	acme := ts.CreateTenant(t, "Acme", "acme")
	globex := ts.CreateTenant(t, "Globex", "globex")
	root := ts.CreateUser(t, "", "Root", "root@example.com", user.RoleSuperAdmin)
	rootToken := getToken(t, root)
	adminToken := getToken(t, acme.Admin)
	inactive := false
	renamed := "Acme Corp"

	ts.run(t, []httpTest{
		{name: "admins cannot list", path: "/v1/companies", token: adminToken, wantCode: http.StatusForbidden},
		{name: "own company", path: "/v1/companies/" + acme.Company.ID, token: adminToken, wantData: acme.Company},
		{name: "other company", path: "/v1/companies/" + globex.Company.ID, token: adminToken, wantCode: http.StatusNotFound},
		{name: "technicians cannot read", path: "/v1/companies/" + acme.Company.ID, token: getToken(t, acme.Technician), wantCode: http.StatusForbidden},
		{
			name: "admins cannot deactivate", method: http.MethodPut, path: "/v1/companies/" + acme.Company.ID, token: adminToken,
			body: company.UpdateCompany{IsActive: &inactive}, wantCode: http.StatusForbidden,
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/v1/companies", token: rootToken,
			body: company.NewCompany{Name: "acme"}, wantCode: http.StatusBadRequest,
		},
		{
			name: "company with users", method: http.MethodDelete, path: "/v1/companies/" + globex.Company.ID, token: rootToken,
			wantCode: http.StatusBadRequest, wantData: httpErr{Error: company.ErrHasUsers.Error()},
		},
	})

	t.Run("admin renames", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/v1/companies/"+acme.Company.ID, adminToken, company.UpdateCompany{Name: &renamed})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var c company.Company
		decode(t, rec, &c)
		assert.Equal(t, renamed, c.Name)
	})

	t.Run("super admin creates and deletes", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/v1/companies", rootToken, company.NewCompany{Name: " Initech ", ContactEmail: "HQ@initech.test"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var c company.Company
		decode(t, rec, &c)
		assert.Equal(t, "Initech", c.Name)
		assert.Equal(t, "hq@initech.test", c.ContactEmail)
		assert.True(t, c.IsActive)

		var all []company.Company
		rec = ts.do(t, http.MethodGet, "/v1/companies?ordering=name", rootToken, nil)
		decode(t, rec, &all)
		require.Len(t, all, 3)
		assert.Equal(t, []string{renamed, "Globex", "Initech"}, []string{all[0].Name, all[1].Name, all[2].Name})

		rec = ts.do(t, http.MethodDelete, "/v1/companies/"+c.ID, rootToken, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func Test_machineApi(t *testing.T) {
	ts := setup(t)
	acme := ts.CreateTenant(t, "Acme", "acme")
	globex := ts.CreateTenant(t, "Globex", "globex")
	adminToken := getToken(t, acme.Admin)
	techToken := getToken(t, acme.Technician)
	path := "/v1/machines/" + acme.Machine.ID

	ts.run(t, []httpTest{
		{name: "technician lists own company", path: "/v1/machines", token: techToken, wantData: []machine.Machine{acme.Machine}},
		{name: "other company", path: "/v1/machines/" + globex.Machine.ID, token: techToken, wantCode: http.StatusNotFound},
		{
			name: "technicians cannot create", method: http.MethodPost, path: "/v1/machines", token: techToken,
			body: machine.NewMachine{Name: "Lathe", SerialNumber: "L-1"}, wantCode: http.StatusForbidden,
		},
		{
			name: "duplicate serial", method: http.MethodPost, path: "/v1/machines", token: adminToken,
			body:     machine.NewMachine{Name: "Press 2", SerialNumber: acme.Machine.SerialNumber},
			wantCode: http.StatusBadRequest, wantData: map[string]string{"serial_number": machine.ErrSerialExists.Error()},
		},
		{name: "bad qr size", path: path + "/qrcode?size=5000", token: techToken, wantCode: http.StatusBadRequest},
	})

	t.Run("create in own company", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/v1/machines", adminToken, machine.NewMachine{
			CompanyID: globex.Company.ID, Name: "Lathe", SerialNumber: "L-1",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var m machine.Machine
		decode(t, rec, &m)
		assert.Equal(t, acme.Company.ID, m.CompanyID)
		assert.NotEmpty(t, m.QRToken)
	})

	t.Run("qr code", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, path+"/qrcode?size=128", techToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("rotate qr token", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/portal/"+acme.Machine.QRToken, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = ts.do(t, http.MethodPost, path+"/qr-token", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var m machine.Machine
		decode(t, rec, &m)
		assert.NotEqual(t, acme.Machine.QRToken, m.QRToken)

		rec = ts.do(t, http.MethodGet, "/portal/"+acme.Machine.QRToken, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "printed codes are revoked")
		rec = ts.do(t, http.MethodGet, "/portal/"+m.QRToken, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_portal(t *testing.T) {
	ts := setup(t)
	acme := ts.CreateTenant(t, "Acme", "acme")
	ctx := context.Background()

	draft, err := ts.SOPs.Create(ctx, acme.Admin, sop.NewSOP{
		MachineID: acme.Machine.ID, Code: "SOP-2", Title: "Die change",
		Steps: []sop.Step{{Order: 1, Instruction: "Lock out"}},
	})
	require.NoError(t, err)
	published, err := ts.SOPs.Create(ctx, acme.Admin, sop.NewSOP{
		MachineID: acme.Machine.ID, Code: "SOP-1", Title: "Start up",
		Steps: []sop.Step{{Order: 1, Instruction: "Check guards"}},
	})
	require.NoError(t, err)
	_, err = ts.SOPs.SetStatus(ctx, acme.Admin, published, sop.StatusPublished)
	require.NoError(t, err)
	_, err = ts.Faults.Create(ctx, acme.Technician, fault.NewFault{
		MachineID: acme.Machine.ID, Code: "E42", Title: "Low pressure", Severity: fault.SeverityMajor, Remedy: "Top up oil",
	})
	require.NoError(t, err)
	ts.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{MachineID: acme.Machine.ID, Title: "Leak"})

	ts.run(t, []httpTest{
		{name: "unknown token", path: "/portal/nope", wantCode: http.StatusNotFound},
		{
			name: "public summary", path: "/portal/" + acme.Machine.QRToken,
			wantData: machine.Portal{
				Name:         acme.Machine.Name,
				SerialNumber: acme.Machine.SerialNumber,
				Location:     acme.Machine.Location,
				SOPs:         []machine.PortalSOP{{Code: "SOP-1", Title: "Start up", Version: 1}},
				Faults:       []machine.PortalFault{{Code: "E42", Title: "Low pressure", Severity: fault.SeverityMajor, Remedy: "Top up oil"}},
				OpenJobCards: 1,
			},
		},
	})
	assert.Equal(t, sop.StatusDraft, draft.Status)
}

func Test_sopApi(t *testing.T) {
	ts := setup(t)
	acme := ts.CreateTenant(t, "Acme", "acme")
	adminToken := getToken(t, acme.Admin)
	techToken := getToken(t, acme.Technician)

	rec := ts.do(t, http.MethodPost, "/v1/sops", adminToken, sop.NewSOP{
		Code: "SOP-1", Title: "Start up",
		Steps: []sop.Step{{Order: 20, Instruction: "Start pump"}, {Order: 10, Instruction: "Check guards"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var s sop.SOP
	decode(t, rec, &s)
	assert.Equal(t, []sop.Step{{Order: 1, Instruction: "Check guards"}, {Order: 2, Instruction: "Start pump"}}, s.Steps)
	path := "/v1/sops/" + s.ID

	ts.run(t, []httpTest{
		{name: "drafts are hidden", path: path, token: techToken, wantCode: http.StatusNotFound},
		{name: "technicians cannot publish", method: http.MethodPost, path: path + "/status", token: techToken, body: sop.SetStatus{Status: sop.StatusPublished}, wantCode: http.StatusNotFound},
		{name: "bad status", method: http.MethodPost, path: path + "/status", token: adminToken, body: sop.SetStatus{Status: "gone"}, wantCode: http.StatusBadRequest},
		{name: "no attachment", path: path + "/attachment", token: adminToken, wantCode: http.StatusNotFound},
	})

	rec = ts.do(t, http.MethodPost, path+"/status", adminToken, sop.SetStatus{Status: sop.StatusPublished})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("attachment", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", "start-up.pdf")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("%PDF-1.4 start up procedure"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, path+"/attachment", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+adminToken)
		rec := httptest.NewRecorder()
		ts.srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &s)
		assert.Equal(t, "start-up.pdf", s.AttachmentName)

		rec = ts.do(t, http.MethodGet, path+"/attachment", techToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "start-up.pdf")
		assert.Equal(t, "%PDF-1.4 start up procedure", rec.Body.String())
	})

	t.Run("listing", func(t *testing.T) {
		var sops []sop.SOP
		rec := ts.do(t, http.MethodGet, "/v1/sops?search=start", techToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &sops)
		require.Len(t, sops, 1)
		assert.Equal(t, s.ID, sops[0].ID)
	})
}

const importFile = `
check_sheets:
  - title: Daily press inspection
    frequency: daily
    items:
      - {key: oil_pressure, label: Oil pressure (bar), kind: number, required: true, min: 2, max: 5}
      - {key: guards_ok, label: Guards in place, kind: bool, required: true}
  - title: Weekly lubrication
    frequency: weekly
    items:
      - {key: greased, label: Greased, kind: bool}
`

func Test_checkSheetApi(t *testing.T) {
	ts := setup(t)
	acme := ts.CreateTenant(t, "Acme", "acme")
	adminToken := getToken(t, acme.Admin)
	techToken := getToken(t, acme.Technician)

	ts.run(t, []httpTest{
		{name: "technicians cannot import", method: http.MethodPost, path: "/v1/checksheets/import", token: techToken, body: []byte(importFile), wantCode: http.StatusForbidden},
		{name: "invalid yaml", method: http.MethodPost, path: "/v1/checksheets/import", token: adminToken, body: []byte("check_sheets: [{title: x, colour: red}]"), wantCode: http.StatusBadRequest},
	})

	rec := ts.do(t, http.MethodPost, "/v1/checksheets/import", adminToken, []byte(importFile))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sheets []checksheet.CheckSheet
	decode(t, rec, &sheets)
	require.Len(t, sheets, 2)
	daily := sheets[0]
	assert.Equal(t, acme.Company.ID, daily.CompanyID)
	path := "/v1/checksheets/" + daily.ID

	ts.run(t, []httpTest{
		{
			name: "missing required item", method: http.MethodPost, path: path + "/completions", token: techToken,
			body: checksheet.NewCompletion{Responses: map[string]checksheet.ResponseInput{"oil_pressure": {Value: 3}}},
			wantCode: http.StatusBadRequest, wantData: map[string]string{"responses.guards_ok": "this item is required"},
		},
		{
			name: "customers cannot complete", method: http.MethodPost, path: path + "/completions", token: getToken(t, acme.Customer),
			body: checksheet.NewCompletion{Responses: map[string]checksheet.ResponseInput{"oil_pressure": {Value: 3}, "guards_ok": {Value: true}}},
			wantCode: http.StatusForbidden,
		},
	})

	complete := func(pressure float64) checksheet.Completion {
		rec := ts.do(t, http.MethodPost, path+"/completions", techToken, checksheet.NewCompletion{
			Responses: map[string]checksheet.ResponseInput{"oil_pressure": {Value: pressure}, "guards_ok": {Value: true}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var c checksheet.Completion
		decode(t, rec, &c)
		return c
	}
	assert.True(t, complete(3.5).Passed)
	failed := complete(7)
	assert.False(t, failed.Passed)
	assert.False(t, failed.Responses["oil_pressure"].Passed)

	var completions []checksheet.Completion
	rec = ts.do(t, http.MethodGet, "/v1/checksheets/completions?passed=false", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &completions)
	require.Len(t, completions, 1)
	assert.Equal(t, failed.ID, completions[0].ID)

	rec = ts.do(t, http.MethodGet, "/v1/checksheets/completions/"+failed.ID, techToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("pass rate report", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/v1/reports/"+report.CheckSheetPassRate+"?format=csv", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "check_sheet_id,title,completions,passed,rate", lines[0])
		assert.Equal(t, daily.ID+",Daily press inspection,2,1,50.00", lines[1])
		assert.Equal(t, sheets[1].ID+",Weekly lubrication,0,0,0.00", lines[2])
	})
}

func Test_faultApi(t *testing.T) {
	ts := setup(t)
	acme := ts.CreateTenant(t, "Acme", "acme")
	techToken := getToken(t, acme.Technician)

	rec := ts.do(t, http.MethodPost, "/v1/faults", techToken, fault.NewFault{
		MachineID: acme.Machine.ID, Code: "E42", Title: "Low pressure", Severity: fault.SeverityMajor,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var f fault.Fault
	decode(t, rec, &f)

	ts.run(t, []httpTest{
		{
			name: "duplicate code", method: http.MethodPost, path: "/v1/faults", token: techToken,
			body:     fault.NewFault{Code: "e42", Title: "Other", Severity: fault.SeverityMinor},
			wantCode: http.StatusBadRequest, wantData: map[string]string{"code": fault.ErrCodeExists.Error()},
		},
		{name: "customers cannot edit", method: http.MethodPut, path: "/v1/faults/" + f.ID, token: getToken(t, acme.Customer), body: map[string]string{"remedy": "x"}, wantCode: http.StatusForbidden},
		{name: "technicians cannot delete", method: http.MethodDelete, path: "/v1/faults/" + f.ID, token: techToken, wantCode: http.StatusForbidden},
		{name: "search", path: "/v1/faults?search=pressure", token: techToken, wantData: []fault.Fault{f}},
		{name: "admin deletes", method: http.MethodDelete, path: "/v1/faults/" + f.ID, token: getToken(t, acme.Admin), wantCode: http.StatusNoContent},
	})
}

func Test_reportApi(t *testing.T) {
	ts := setup(t)
	acme := ts.CreateTenant(t, "Acme", "acme")
	ts.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "One"})
	ts.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "Two"})
	adminToken := getToken(t, acme.Admin)

	ts.run(t, []httpTest{
		{name: "names", path: "/v1/reports", token: adminToken, wantData: report.Names},
		{name: "technicians cannot", path: "/v1/reports/" + report.JobCardsByStatus, token: getToken(t, acme.Technician), wantCode: http.StatusForbidden},
		{name: "unknown report", path: "/v1/reports/nope", token: adminToken, wantCode: http.StatusNotFound},
		{name: "bad period", path: "/v1/reports/" + report.JobCardsByStatus + "?from=2024-02-01T00:00:00Z&to=2024-01-01T00:00:00Z", token: adminToken, wantCode: http.StatusBadRequest},
		{
			name: "json", path: "/v1/reports/" + report.JobCardsByStatus, token: adminToken,
			wantData: map[string]interface{}{
				"name": report.JobCardsByStatus, "from": nil, "to": nil,
				"data": []report.StatusCount{{Status: jobcard.StatusOpen, Count: 2}},
			},
		},
	})
}

func Test_dashboard(t *testing.T) {
	ts := setup(t)
	acme := ts.CreateTenant(t, "Acme", "acme")
	ts.CreateJobCard(t, acme.Admin, jobcard.NewJobCard{Title: "One", CustomerID: acme.Customer.ID})

	rec := ts.do(t, http.MethodGet, "/v1/dashboard", getToken(t, acme.Admin), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var d dashboard.Dashboard
	decode(t, rec, &d)
	assert.Equal(t, user.RoleAdmin, d.Role)
	assert.Equal(t, 1, d.StatusCounts[jobcard.StatusOpen])
	assert.Equal(t, 1, d.ActiveTechnicians)

	rec = ts.do(t, http.MethodGet, "/v1/dashboard", getToken(t, acme.Customer), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d = dashboard.Dashboard{}
	decode(t, rec, &d)
	assert.Equal(t, user.RoleCustomer, d.Role)
	assert.Len(t, d.OpenJobCards, 1)
}
