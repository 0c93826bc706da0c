package cli

import (
	"fmt"

	"github.com/koscakluka/ema-agent/internal/config"
	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:   "prompt [name]",
	Short: "Print the instructions the agent would use",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := config.DefaultPromptName
	if len(args) == 1 {
		name = args[0]
	}

	prompt, err := cfg.LoadPrompt(name)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), prompt)
	return nil
}
