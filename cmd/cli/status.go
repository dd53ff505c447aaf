package cli

import (
	"github.com/spf13/cobra"

	"github.com/mledur/quill/pkg/events"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend configuration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := newGen(&events.NoOpPublisher{})
			if err != nil {
				return err
			}

			status := gen.GetStatus()
			cmd.Printf("Backend:   %s\n", status.Backend)
			cmd.Printf("Model:     %s\n", status.Model)
			if status.Connected {
				cmd.Println("Connected: yes")
			} else {
				cmd.Println("Connected: no")
			}
			cmd.Printf("Message:   %s\n", status.Message)
			return nil
		},
	}
}
