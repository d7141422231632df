package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or reset the stored session id",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the session id, creating it if needed",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				rt, err := bootstrap(bootstrapOptions{})
				if err != nil {
					return err
				}
				defer rt.close()

				fmt.Fprintln(cmd.OutOrStdout(), rt.session.GetOrCreate())
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Forget the session id; a new one is created on next use",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				rt, err := bootstrap(bootstrapOptions{})
				if err != nil {
					return err
				}
				defer rt.close()

				if err := rt.session.Reset(); err != nil {
					return fmt.Errorf("resetting session: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Session id cleared")
				return nil
			},
		},
	)
	return cmd
}
