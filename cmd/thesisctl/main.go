// Command thesisctl is the operator CLI for the thesis backend: it removes
// theses, inspects the configured LLM providers and expires archived exports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tesis/backend/internal/infrastructure/config"
	"github.com/tesis/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

var version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "thesisctl",
	Short: "Operator tool for the thesis backend",
	Long: `thesisctl works against the same configuration as the server
(config.toml plus TESIS_* environment variables).

Examples:
  thesisctl delete-thesis 3f0c... --yes
  thesisctl models list --provider groq
  thesisctl models probe --provider gemini --prompt "Hola"
  thesisctl exports cleanup --older-than 720h`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.toml and TESIS_* env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(deleteThesisCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(exportsCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// newLogger writes to stderr so command output stays parseable
func newLogger() (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "15:04:05",
	})
}
