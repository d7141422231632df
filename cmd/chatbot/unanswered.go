package main

import (
	"github.com/spf13/cobra"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/channels"
)

func newUnansweredCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unanswered",
		Short: "List the questions the bot could not answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(bootstrapOptions{})
			if err != nil {
				return err
			}
			defer rt.close()

			return channels.WriteUnanswered(cmd.Context(), cmd.OutOrStdout(), rt.client)
		},
	}
}
