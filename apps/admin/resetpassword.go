package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thinkquality/thinkquality/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:     "resetpassword",
		Short:   "Reset a user's password, the new password is prompted",
		Example: "  admin resetpassword --email jane@acme.test",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			usr, err := cli.users.GetByEmail(ctx, email)
			if err != nil {
				return err
			}

			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
			if err = uu.Validate(ctx, usr, cli.validate, cli.users); err != nil {
				return err
			}
			if _, err = cli.users.Update(ctx, usr, uu); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "password of %s updated\n", usr.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
