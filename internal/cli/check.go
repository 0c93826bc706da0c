package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show the effective configuration and report missing secrets",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, setting := range cfg.Settings() {
		value := setting.Display()
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%s\t%s\n", setting.Key, value)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if err := cfg.RequireSecrets(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "configuration complete")
	return nil
}
