package main

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brizzbuzz/buildsecrets/internal/errors"
	"github.com/brizzbuzz/buildsecrets/internal/manifest"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve all placeholders and print them",
	Long: `Resolve every configured placeholder and print the set to stdout.

With --output the set is written atomically to a file instead, with the
mode configured for the placeholder output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = cfg.Output.Format
		}
		output, _ := cmd.Flags().GetString("output")

		processor, err := newProcessor(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		set, err := processor.Resolve(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		data, err := manifest.Encode(set, format)
		if err != nil {
			return errors.ConfigError("Encoding placeholders", err.Error(), err)
		}

		if output == "" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}

		mode := cfg.Output.Mode
		if mode == "" {
			mode = "0600"
		}
		fileMode, err := strconv.ParseUint(mode, 8, 32)
		if err != nil {
			return errors.ValidationError("Parsing output mode", "output.mode", mode, "3-4 digit octal number (e.g., 0600, 0644)")
		}

		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return errors.FileOperationError("Creating output directory", filepath.Dir(output), "Failed to create output directory", err)
		}
		if err := manifest.WriteFile(output, data, os.FileMode(fileMode)); err != nil {
			return errors.FileOperationError("Writing placeholders", output, "Failed to write output file", err)
		}
		log.Info().Str("path", output).Int("placeholders", len(set)).Msg("wrote placeholders")
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringP("format", "f", "", "output format: properties, json, yaml or env (default from config)")
	resolveCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(resolveCmd)
}
