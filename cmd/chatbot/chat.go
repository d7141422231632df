package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/channels"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
)

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the chat widget in the terminal",
		Long:  "Open the full-screen chat widget. Falls back to the line-mode console when stdin or stdout is not a terminal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return runConsole(cmd)
			}

			rt, err := bootstrap(bootstrapOptions{logToFile: true})
			if err != nil {
				return err
			}
			defer rt.close()

			ch := channels.NewTerminalChannel(rt.session.GetOrCreate(), rt.client)
			return runChannel(cmd.Context(), ch, ch.Done())
		},
	}
}

func newConsoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Chat in plain line mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd)
		},
	}
}

func runConsole(cmd *cobra.Command) error {
	rt, err := bootstrap(bootstrapOptions{})
	if err != nil {
		return err
	}
	defer rt.close()

	history := filepath.Join(dataDir(), "history")
	ch := channels.NewConsoleChannel(rt.session.GetOrCreate(), rt.client, history)
	logger.DebugCF("cli", "Starting console", map[string]interface{}{"history": history})
	return runChannel(cmd.Context(), ch, ch.Done())
}
