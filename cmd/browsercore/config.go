// Package main provides the browsercore CLI application.
package main

import (
	"fmt"

	"github.com/browsercore/browsercore/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(appConfig)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the config files and environment variables consulted",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if cfgFile != "" {
			fmt.Fprintln(out, cfgFile)
		} else {
			for _, p := range config.NewLoader().Paths() {
				fmt.Fprintln(out, p)
			}
		}
		for _, k := range config.EnvKeys() {
			fmt.Fprintf(out, "$%s\n", k)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathsCmd)
	rootCmd.AddCommand(configCmd)
}
