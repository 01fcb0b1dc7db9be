package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core/checksheet"
	"github.com/thinkquality/thinkquality/core/user"
	"github.com/thinkquality/thinkquality/tests"
)

type testCLI struct {
	*testutil.App
	cli *commandLine
	out *bytes.Buffer
}

func setup(t *testing.T) *testCLI {
	app := testutil.NewApp(t)
	out := new(bytes.Buffer)
	return &testCLI{
		App: app,
		out: out,
		cli: &commandLine{
			validate:   app.Validate,
			translator: app.Translator,
			users:      app.Users,
			sheets:     app.CheckSheets,
			out:        out,
		},
	}
}

// typePasswords makes the password prompts read pwds, in order.
func typePasswords(t *testing.T, pwds ...string) {
	i := 0
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })
	readPasswordFunc = func(int) ([]byte, error) {
		if i >= len(pwds) {
			return nil, errors.New("no more input")
		}
		i++
		return []byte(pwds[i-1]), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	passwords  []string
	wantErr    error
	wantErrStr string
}

func (tc *testCLI) run(t *testing.T, tests []cliTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typePasswords(t, tt.passwords...)
			err := tc.cli.run(tt.args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	tc := setup(t)

	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })
	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tc.run(t, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s), only received 0"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	})
}

func Test_commandLine_addUser(t *testing.T) {
	tc := setup(t)
	acme := tc.CreateCompany(t, "Acme")
	pwd := testutil.DefaultPassword

	tc.run(t, []cliTest{
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol" for "admin"`},
		{name: "missing flags", args: []string{"adduser"}, wantErrStr: `required flag(s) "email", "name" not set`},
		{name: "no password", args: []string{"adduser", "--email", "root@example.com", "--name", "Root"}, passwords: []string{""}, wantErr: errNoPassword},
		{
			name: "passwords differ", args: []string{"adduser", "--email", "root@example.com", "--name", "Root"},
			passwords: []string{pwd, pwd + "?"}, wantErrStr: "passwords do not match",
		},
	})

	t.Run("weak password", func(t *testing.T) {
		typePasswords(t, "password", "password")
		tc.out.Reset()
		require.Error(t, tc.cli.run([]string{"adduser", "--email", "root@example.com", "--name", "Root"}))
		assert.Contains(t, tc.out.String(), "error: password: ")
	})

	t.Run("company required", func(t *testing.T) {
		typePasswords(t, pwd, pwd)
		tc.out.Reset()
		require.Error(t, tc.cli.run([]string{"adduser", "--email", "jane@acme.test", "--name", "Jane", "--role", "admin"}))
		assert.Contains(t, tc.out.String(), "error: company_id: this field is required")
	})

	t.Run("super admin", func(t *testing.T) {
		typePasswords(t, pwd, pwd)
		require.NoError(t, tc.cli.run([]string{"adduser", "--email", "Root@Example.com", "--name", "Root"}))

		usr, err := tc.Users.GetByEmail(context.Background(), "root@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.RoleSuperAdmin, usr.Role)
		assert.Empty(t, usr.CompanyID)
		assert.NoError(t, usr.CheckPassword(pwd))
	})

	t.Run("company admin", func(t *testing.T) {
		typePasswords(t, pwd, pwd)
		require.NoError(t, tc.cli.run([]string{"adduser", "--email", "jane@acme.test", "--name", "Jane", "--role", "admin", "--company", acme.ID}))

		usr, err := tc.Users.GetByEmail(context.Background(), "jane@acme.test")
		require.NoError(t, err)
		assert.Equal(t, user.RoleAdmin, usr.Role)
		assert.Equal(t, acme.ID, usr.CompanyID)
	})

	t.Run("email taken", func(t *testing.T) {
		typePasswords(t, pwd, pwd)
		tc.out.Reset()
		require.Error(t, tc.cli.run([]string{"adduser", "--email", "jane@acme.test", "--name", "Jane", "--role", "admin", "--company", acme.ID}))
		assert.Contains(t, tc.out.String(), user.ErrEmailExists.Error())
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	tc := setup(t)
	acme := tc.CreateCompany(t, "Acme")
	usr := tc.CreateUser(t, acme.ID, "Jane", "jane@acme.test", user.RoleTechnician)
	newPwd := "N3w-P4ssw0rd!"

	tc.run(t, []cliTest{
		{name: "no email", args: []string{"resetpassword"}, wantErrStr: `required flag(s) "email" not set`},
		{name: "user not found", args: []string{"resetpassword", "--email", "lol@acme.test"}, wantErr: user.ErrNotFound},
		{name: "no password", args: []string{"resetpassword", "--email", usr.Email}, passwords: []string{""}, wantErr: errNoPassword},
		{name: "reset", args: []string{"resetpassword", "--email", "JANE@acme.test"}, passwords: []string{newPwd, newPwd}},
	})

	refreshed, err := tc.Users.GetByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Error(t, refreshed.CheckPassword(testutil.DefaultPassword))
	assert.NoError(t, refreshed.CheckPassword(newPwd))
}

func Test_commandLine_importCheckSheets(t *testing.T) {
	tc := setup(t)
	acme := tc.CreateCompany(t, "Acme")

	dir := t.TempDir()
	good := filepath.Join(dir, "sheets.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
check_sheets:
  - title: Daily press inspection
    frequency: daily
    items:
      - {key: oil_level, label: Oil level (bar), kind: number, required: true, min: 2, max: 5}
      - {key: guards_ok, label: Guards in place, kind: bool, required: true}
`), 0o600))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("check_sheets: []\n"), 0o600))

	tc.run(t, []cliTest{
		{name: "no company", args: []string{"import-checksheets", good}, wantErrStr: `required flag(s) "company" not set`},
		{name: "no file", args: []string{"import-checksheets", "--company", acme.ID}, wantErrStr: "accepts 1 arg(s), received 0"},
		{name: "empty file", args: []string{"import-checksheets", "--company", acme.ID, bad}, wantErrStr: "no check sheets found"},
		{name: "import", args: []string{"import-checksheets", "--company", acme.ID, good}},
	})

	sheets, err := tc.CheckSheets.Query(context.Background(), tc.CreateUser(t, acme.ID, "Admin", "admin@acme.test", user.RoleAdmin), nil, nil)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "Daily press inspection", sheets[0].Title)
	assert.Equal(t, checksheet.FrequencyDaily, sheets[0].Frequency)
	assert.Len(t, sheets[0].Items, 2)
}
