package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/internal/output"
	"github.com/Aman-CERP/msgindex/internal/service"
)

// messageFlags are the content flags shared by add and update.
type messageFlags struct {
	sender     string
	recipients []string
	subject    string
	body       string
	json       bool
}

func (f *messageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sender, "sender", "", "Sender address")
	cmd.Flags().StringSliceVar(&f.recipients, "to", nil, "Recipient address (repeatable or comma-separated)")
	cmd.Flags().StringVar(&f.subject, "subject", "", "Subject line")
	cmd.Flags().StringVar(&f.body, "body", "", `Message body, or "-" to read it from stdin`)
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the stored message as JSON")
}

// message builds the NewMessage, reading the body from in when it is "-".
func (f *messageFlags) message(in io.Reader) (service.NewMessage, error) {
	body := f.body
	if body == "-" {
		b, err := io.ReadAll(in)
		if err != nil {
			return service.NewMessage{}, fmt.Errorf("read body from stdin: %w", err)
		}
		body = strings.TrimRight(string(b), "\n")
	}
	return service.NewMessage{
		Sender:     f.sender,
		Recipients: f.recipients,
		Subject:    f.subject,
		Body:       body,
	}, nil
}

func newAddCmd(g *globals) *cobra.Command {
	var f messageFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a message to the index",
		Long: `Add a message to the index. The message gets a fresh id and the
current time as its timestamp.

Examples:
  msgindex add --sender alice@example.com --to bob@example.com \
      --subject "Lunch" --body "Noon at the usual place?"
  echo "long body" | msgindex add --sender a@x --to b@x --subject s --body -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := f.message(cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := s.backend.AddMessage(cmd.Context(), in)
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			if f.json {
				return out.JSON(m)
			}
			out.Successf("Added %s", m.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newUpdateCmd(g *globals) *cobra.Command {
	var f messageFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the message stored under an id",
		Long: `Replace the message stored under id. If no message has that id it
is created. The timestamp is set to the current time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.message(cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := s.backend.UpdateMessage(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			if f.json {
				return out.JSON(m)
			}
			out.Successf("Updated %s", m.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a message from the index",
		Long:    `Remove the message with the given id. Deleting an unknown id succeeds.`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.backend.DeleteMessage(cmd.Context(), args[0]); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Deleted %s", args[0])
			return nil
		},
	}
}
