package main

import (
	"github.com/spf13/cobra"

	"github.com/thinkquality/thinkquality/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run the database migrations",
		Long: `Run a goose command with the embedded migrations.

Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version, fix.

Examples:
  admin migrate up
  admin migrate down-to 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateFunc(cli.db, args[0], args[1:]...)
		},
	}
}
