package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/checksheet"
	"github.com/thinkquality/thinkquality/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNoPassword = errors.New("a password is required")
)

type commandLine struct {
	db         *sql.DB
	validate   *validator.Validate
	translator ut.Translator
	users      user.Service
	sheets     checksheet.Service
	out        io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         core.Conf.AppName + " administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(cli.migrateCmd())
	root.AddCommand(cli.addUserCmd())
	root.AddCommand(cli.resetPasswordCmd())
	root.AddCommand(cli.importCheckSheetsCmd())
	return root
}

// run executes the command line args (without the program name). Errors are printed before being returned.
func (cli *commandLine) run(args []string) error {
	if cli.out == nil {
		cli.out = os.Stdout
	}
	root := cli.rootCmd()
	root.SetArgs(args)
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	if err := root.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(cli.out, "error:", cli.describe(err))
		return err
	}
	return nil
}

// describe renders validation errors field by field.
func (cli *commandLine) describe(err error) string {
	var fields map[string]string
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fields = make(map[string]string, len(e))
		for _, fe := range e {
			fields[fe.Field()] = fe.Translate(cli.translator)
		}
	case *core.ValidationError:
		fields = make(map[string]string, len(e.Fields))
		for _, fe := range e.Fields {
			fields[fe.Field] = fe.Error
		}
		if len(fields) == 0 && e.Err != nil {
			return e.Err.Error()
		}
	}
	if len(fields) == 0 {
		return err.Error()
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+fields[k])
	}
	return strings.Join(lines, "; ")
}

// promptPassword reads a password from the terminal, twice.
func (cli *commandLine) promptPassword() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password: ")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errNoPassword
	}

	_, _ = fmt.Fprint(cli.out, "Confirm password: ")
	confirm, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if string(confirm) != string(pwd) {
		return "", errors.New("passwords do not match")
	}
	return string(pwd), nil
}
