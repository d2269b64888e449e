package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brizzbuzz/buildsecrets/internal/config"
	"github.com/brizzbuzz/buildsecrets/internal/onepass"
	"github.com/brizzbuzz/buildsecrets/internal/secrets"
	"github.com/brizzbuzz/buildsecrets/internal/validation"
)

var (
	verbosity  int
	configFile string
	rootDir    string
)

var rootCmd = &cobra.Command{
	Use:           "buildsecrets",
	Short:         "buildsecrets injects build-time secrets into Android manifest placeholders",
	SilenceErrors: true,
	SilenceUsage:  true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbosity == 1 {
			level = zerolog.DebugLevel
		} else if verbosity >= 2 {
			level = zerolog.TraceLevel
		}
		log.Logger = log.Logger.Level(level)
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultFile, "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "project root (overrides the configuration file)")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file. A relative root is taken
// relative to the directory holding the configuration file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if rootDir != "" {
		cfg.Root = rootDir
	} else if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(configFile), cfg.Root)
	}
	return cfg, nil
}

// loadValidConfig is loadConfig followed by validation.
func loadValidConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := validation.NewValidator().ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newProcessor builds a processor for cfg. A 1Password client is attached
// when the configuration enables it or a service account token is present
// in the environment.
func newProcessor(ctx context.Context, cfg *config.Config) (*secrets.Processor, error) {
	opts := []secrets.Option{secrets.WithLogger(log.Logger)}

	if !cfg.OnePassword.Enable && os.Getenv(onepass.TokenEnv) == "" {
		return secrets.NewProcessor(nil, opts...), nil
	}

	client, err := onepass.NewClient(ctx, cfg.OnePassword.TokenFile)
	if err != nil {
		return nil, err
	}
	log.Debug().Msg("1Password reference resolution enabled")
	return secrets.NewProcessor(client, opts...), nil
}
