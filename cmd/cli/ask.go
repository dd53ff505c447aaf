package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/mledur/quill/pkg/budget"
	"github.com/mledur/quill/pkg/config"
	"github.com/mledur/quill/pkg/events"
	"github.com/mledur/quill/pkg/session"
)

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message through the configured backend",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	cmd.Flags().String("model", "", "model name (default from QUILL_MODEL, then gpt-4o-mini)")
	cmd.Flags().Int("reserve", 1024, "tokens reserved for the model response")
	cmd.Flags().String("system", "", "system prompt for a fresh conversation")
	cmd.Flags().String("snapshot", "", "conversation snapshot path (default ~/.quill/session.json)")
	cmd.Flags().Bool("resume", false, "restore the conversation from the snapshot before asking")
	cmd.Flags().Bool("save", false, "write the conversation snapshot after the response")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")

	model, _ := cmd.Flags().GetString("model")
	reserve, _ := cmd.Flags().GetInt("reserve")
	system, _ := cmd.Flags().GetString("system")
	snapshotFlag, _ := cmd.Flags().GetString("snapshot")
	resume, _ := cmd.Flags().GetBool("resume")
	save, _ := cmd.Flags().GetBool("save")

	if model == "" {
		model = config.NewManager().GetStringWithDefault("QUILL_MODEL", "gpt-4o-mini")
	}

	snapshotPath, err := resolveSnapshotPath(snapshotFlag)
	if err != nil {
		return err
	}

	bus := events.NewEventBus()
	gen, err := newGen(bus)
	if err != nil {
		return err
	}

	var chat *session.Session
	if resume {
		data, err := os.ReadFile(snapshotPath)
		if err != nil {
			return fmt.Errorf("reading snapshot %s: %w", snapshotPath, err)
		}
		chat, err = session.RestoreSession(data, gen, session.WithPublisher(bus))
		if err != nil {
			return err
		}
	} else {
		manager, err := budget.ForModel(model, reserve, budget.WithPublisher(bus))
		if err != nil {
			return err
		}
		chat, err = session.NewSession(gen, manager, session.WithPublisher(bus))
		if err != nil {
			return err
		}
		if system != "" {
			if err := chat.SetSystemPrompt(system); err != nil {
				return err
			}
		}
	}

	response, err := chat.Ask(cmd.Context(), message)
	if err != nil {
		return err
	}
	cmd.Println(response)

	if save {
		data, err := chat.Snapshot()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(snapshotPath), 0700); err != nil {
			return err
		}
		if err := os.WriteFile(snapshotPath, data, 0600); err != nil {
			return fmt.Errorf("writing snapshot %s: %w", snapshotPath, err)
		}
	}

	return nil
}

// resolveSnapshotPath expands the default path under the user's home directory.
func resolveSnapshotPath(flagValue string) (string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return homedir.Expand(flagValue)
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".quill", "session.json"), nil
}
