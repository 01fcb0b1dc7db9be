package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/thinkquality/thinkquality/apps/api/echo"
	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/user"
	"github.com/thinkquality/thinkquality/services/logger"
	"github.com/thinkquality/thinkquality/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData interface{}
}

type testServer struct {
	*testutil.App
	srv *Server
}

func setup(t *testing.T) *testServer {
	app := testutil.NewApp(t)

	conf := *core.Conf
	conf.Debug = false
	conf.TestMode = true
	conf.Server.DisableReqLogs = true
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), &conf)

	srv := NewServer(&conf, logger, app.Validate, app.Translator, &Deps{
		UserSvc:       app.Users,
		CompanySvc:    app.Companies,
		MachineSvc:    app.Machines,
		JobCardSvc:    app.JobCards,
		TimeTracker:   app.TimeTracker,
		SignOff:       app.SignOff,
		SOPSvc:        app.SOPs,
		CheckSheetSvc: app.CheckSheets,
		FaultSvc:      app.Faults,
		ReportSvc:     app.Reports,
		DashboardSvc:  app.Dashboard,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{App: app, srv: srv}
}

// do sends a JSON request. body may be nil, raw []byte or any value to marshal.
func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	if method == "" {
		method = http.MethodGet
	}

	req := httptest.NewRequest(method, path, &buf)
	if buf.Len() > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr))
	require.NoError(t, err, "GenerateToken()")
	return token
}

func marshal(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err, "json.Marshal()")
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	require.Equal(t, wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData != nil {
		require.JSONEq(t, string(marshal(t, tt.wantData)), rec.Body.String())
	}
}
