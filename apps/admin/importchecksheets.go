package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/thinkquality/thinkquality/core/checksheet"
)

func (cli *commandLine) importCheckSheetsCmd() *cobra.Command {
	var companyID string
	cmd := &cobra.Command{
		Use:   "import-checksheets FILE",
		Short: "Create the check sheets of a YAML file",
		Long: `Create every check sheet of a YAML file in one transaction:

check_sheets:
  - title: Daily press inspection
    frequency: daily
    items:
      - {key: oil_level, label: Oil level (bar), kind: number, required: true, min: 2, max: 5}
      - {key: guards_ok, label: Guards in place, kind: bool, required: true}`,
		Example: "  admin import-checksheets --company 1b4e28ba-2fa1-11d2-883f-0016d3cca427 sheets.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "opening import file")
			}
			//goland:noinspection GoUnhandledErrorResult
			defer f.Close()

			sheets, err := checksheet.ParseYAML(f, cli.validate)
			if err != nil {
				return err
			}
			created, err := cli.sheets.Import(cmd.Context(), companyID, sheets)
			if err != nil {
				return err
			}
			for _, cs := range created {
				_, _ = fmt.Fprintf(cli.out, "created %q (%s)\n", cs.Title, cs.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&companyID, "company", "", "the company ID (required)")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
