package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Write the placeholder file and render the manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		processor, err := newProcessor(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		res, err := processor.Process(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		log.Info().
			Int("placeholders", len(res.Placeholders)).
			Int("written", len(res.Written)).
			Int("unchanged", len(res.Unchanged)).
			Msg("build pass complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
