package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brizzbuzz/buildsecrets/internal/onepass"
	"github.com/brizzbuzz/buildsecrets/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration without reading any secrets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		v := validation.NewValidator()
		if err := v.ValidateConfig(cfg); err != nil {
			return err
		}
		if cfg.OnePassword.Enable {
			if _, err := onepass.GetToken(cfg.OnePassword.TokenFile); err != nil {
				if verr := v.ValidateTokenFile(cfg.OnePassword.TokenFile); verr != nil {
					return verr
				}
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", configFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
