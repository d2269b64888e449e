package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brizzbuzz/buildsecrets/internal/loader"
)

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the value of a single key",
	Long: `Print the value of KEY.

With --source only that properties file is consulted, and a missing file
or key prints an empty line. Otherwise the configured sources are walked
in order and the first one defining KEY wins.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		source, _ := cmd.Flags().GetString("source")

		if source != "" {
			value, err := loader.Resolve(source, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		value, _, _, err := loader.New(cfg).Lookup(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

func init() {
	getCmd.Flags().StringP("source", "s", "", "read only this properties file")
	rootCmd.AddCommand(getCmd)
}
