package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thinkquality/thinkquality/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var nu user.NewUser
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, the password is prompted",
		Example: `  admin adduser --email root@example.com --name Root
  admin adduser --email jane@acme.test --name Jane --role admin --company 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			nu.Password, nu.PasswordConfirm = pwd, pwd

			usr, err := cli.addUser(cmd, nu)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "created %s %s (%s)\n", usr.Role, usr.Email, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&nu.Email, "email", "", "the user's email (required)")
	cmd.Flags().StringVar(&nu.Name, "name", "", "the user's full name (required)")
	cmd.Flags().StringVar(&nu.Role, "role", user.RoleSuperAdmin, "one of superadmin, admin, technician, customer")
	cmd.Flags().StringVar(&nu.CompanyID, "company", "", "the company ID, required by every role but superadmin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (cli *commandLine) addUser(cmd *cobra.Command, nu user.NewUser) (user.User, error) {
	ctx := cmd.Context()
	if err := nu.Validate(ctx, cli.validate, cli.users); err != nil {
		return user.User{}, err
	}
	return cli.users.Create(ctx, nu)
}
