package cli

import (
	"github.com/koscakluka/ema-agent/internal/config"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "voice-agent",
	Short: "Voice agent - speech in, speech out",
	Long: `voice-agent listens on the local microphone, transcribes with Deepgram,
answers through an OpenRouter model and speaks the answer with Cartesia.
Each turn's latencies are logged and exported as metrics.`,
	Version:      version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file read before the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warning, error); overrides LOG_LEVEL")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}
