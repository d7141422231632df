package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/dispatcher"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/transcript"
)

func newSendCommand() *cobra.Command {
	var (
		file     string
		category string
	)

	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send one message and print the reply",
		Example: `  chatbot send "where is my order?"
  chatbot send --file receipt.pdf "what is the total?"
  chatbot send --file clip.bin --category video`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(bootstrapOptions{})
			if err != nil {
				return err
			}
			defer rt.close()

			d := dispatcher.New(dispatcher.Options{
				Backend:   rt.client,
				SessionID: rt.session.GetOrCreate(),
				Timeout:   rt.cfg.BackendTimeout(),
			})
			defer d.Close()

			if file != "" {
				cat, err := attachment.ParseCategory(category)
				if err != nil {
					return err
				}
				a, err := attachment.Load(file)
				if err != nil {
					return err
				}
				d.Selector().Request(cat)
				if err := d.Selector().Select(a, cat); err != nil {
					return err
				}
			}

			d.SetText(strings.Join(args, " "))
			if !d.Send() {
				return errors.New("nothing to send: give a message or --file")
			}
			d.Wait()

			reply, ok := d.Transcript().Last(transcript.Bot)
			if !ok {
				return errors.New("no reply received")
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "attach a file")
	cmd.Flags().StringVar(&category, "category", "", "treat the file as image, video, audio or document")
	return cmd
}
