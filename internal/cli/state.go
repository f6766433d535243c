package cli

import (
	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/celerix-dev/robot-ops/pkg/sdk"
	"github.com/spf13/cobra"
)

func newStateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "state",
		Aliases: []string{"states"},
		Short:   "Manage robot operation states",
	}
	cmd.AddCommand(
		newStateCreateCommand(opts),
		newStateGetCommand(opts),
		newStateUpdateCommand(opts),
		newStateDeleteCommand(opts),
		newStateListCommand(opts),
	)
	return cmd
}

func newStateCreateCommand(opts *RootOptions) *cobra.Command {
	var description, status string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a state (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			rec, err := c.CreateState(cmd.Context(), sdk.CreateStateRequest{
				Name:        args[0],
				Description: description,
				Status:      schema.Status(status),
			})
			if err != nil {
				return err
			}
			return opts.printer(cmd).State(rec)
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "what the operation does")
	cmd.Flags().StringVarP(&status, "status", "s", "", "initial status (default idle)")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newStateGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			rec, err := c.GetState(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.printer(cmd).State(rec)
		},
	}
}

func newStateUpdateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "update <name> <status>",
		Short:     "Change the status of a state (admin)",
		Args:      cobra.ExactArgs(2),
		ValidArgs: statusNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			rec, err := c.UpdateState(cmd.Context(), args[0], schema.Status(args[1]))
			if err != nil {
				return err
			}
			return opts.printer(cmd).State(rec)
		},
	}
}

func newStateDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a state (admin)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.DeleteState(cmd.Context(), args[0]); err != nil {
				return err
			}
			return opts.printer(cmd).Message("deleted " + args[0])
		},
	}
}

func newStateListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			recs, err := c.ListStates(cmd.Context())
			if err != nil {
				return err
			}
			if recs == nil {
				recs = []schema.StateRecord{}
			}
			return opts.printer(cmd).States(recs)
		},
	}
}

func statusNames() []string {
	names := make([]string, len(schema.Statuses))
	for i, s := range schema.Statuses {
		names[i] = string(s)
	}
	return names
}
