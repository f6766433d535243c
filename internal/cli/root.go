// Package cli implements the robotops command line client.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/celerix-dev/robot-ops/pkg/sdk"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Addr     string
	Token    string
	Format   string // "table" | "json" | "yaml"
	Insecure bool

	// connect is swapped in tests.
	connect func(addr string, opts ...sdk.Option) (*sdk.Client, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"table", "json", "yaml"}

// NewRootCommand creates the root command for the robotops CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{connect: sdk.Connect})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "robotops",
		Short:         "robotops - robot operation state client",
		Long:          "Create, inspect and report on robot operation states held by a robotops daemon.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", envOr(sdk.EnvAddr, sdk.DefaultAddr), "daemon address")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv(sdk.EnvToken), "session token (or "+sdk.EnvToken+")")
	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "o", "table", "output format (table|json|yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Insecure, "insecure", "k", os.Getenv(sdk.EnvInsecure) == "true", "accept self-signed certificates")

	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newRegisterCommand(opts))
	cmd.AddCommand(newLogoutCommand(opts))
	cmd.AddCommand(newStateCommand(opts))
	cmd.AddCommand(newSummaryCommand(opts))
	cmd.AddCommand(newUsersCommand(opts))

	return cmd
}

func (o *RootOptions) client() (*sdk.Client, error) {
	var opts []sdk.Option
	if o.Token != "" {
		opts = append(opts, sdk.WithToken(o.Token))
	}
	if o.Insecure {
		opts = append(opts, sdk.WithInsecureTLS())
	}
	return o.connect(o.Addr, opts...)
}

func (o *RootOptions) printer(cmd *cobra.Command) *Printer {
	return &Printer{Format: o.Format, Writer: cmd.OutOrStdout()}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
