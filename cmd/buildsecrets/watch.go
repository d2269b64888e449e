package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brizzbuzz/buildsecrets/internal/secrets"
	"github.com/brizzbuzz/buildsecrets/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-render outputs whenever a source, the template or the configuration changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		processor, err := newProcessor(ctx, cfg)
		if err != nil {
			return err
		}

		files := append(cfg.InputFiles(), configFile)
		w := watch.New(files, log.Logger)

		log.Info().Strs("files", files).Msg("watching for changes")
		return w.Run(ctx, buildPass(processor))
	},
}

// buildPass returns one watch iteration. The configuration is reloaded on
// every pass so edits to it take effect; the set of watched files is fixed
// when the watch starts.
func buildPass(processor *secrets.Processor) func(context.Context) error {
	return func(ctx context.Context) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		res, err := processor.Process(ctx, cfg)
		if err != nil {
			return err
		}
		for _, path := range res.Written {
			log.Info().Str("path", path).Msg("updated")
		}
		return nil
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
