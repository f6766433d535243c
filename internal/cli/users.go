package cli

import (
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/spf13/cobra"
)

func newUsersCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts (SuperAdmin)",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			users, err := c.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return opts.printer(cmd).Users(users)
		},
	}

	setAccess := &cobra.Command{
		Use:       "set-access <email> <user|admin|SuperAdmin>",
		Short:     "Change an account's access level",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(schema.AccessUser), string(schema.AccessAdmin), string(schema.AccessSuperAdmin)},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.ModifyAccess(cmd.Context(), args[0], schema.Access(args[1])); err != nil {
				return err
			}
			return opts.printer(cmd).Message(args[0] + " is now " + args[1])
		},
	}

	remove := &cobra.Command{
		Use:   "delete <email>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			return opts.printer(cmd).Message("deleted " + args[0])
		},
	}

	cmd.AddCommand(list, setAccess, remove)
	return cmd
}
