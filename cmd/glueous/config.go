package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/config"
	"github.com/glueous/reader/internal/home"
)

var (
	configInitPath  string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the default configuration to ~/.glueous/config.yaml (or --path).

Secrets such as the vision API key are written as ${ENV_VAR} references
and resolved from the environment (or a .env file) at load time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		if path == "" {
			h, err := home.New(homeDir)
			if err != nil {
				return err
			}
			if err := h.EnsureExists(); err != nil {
				return err
			}
			path = h.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cm, _, err := loadConfig()
		if err != nil {
			return err
		}
		c := *cm.Get()
		if c.Recognition.Vision.APIKey != "" {
			c.Recognition.Vision.APIKey = "********"
		}
		return outputConfig(&c, cm.ConfigFile())
	},
}

func outputConfig(c *config.Config, file string) error {
	if file != "" {
		fmt.Fprintf(os.Stderr, "# loaded from %s\n", file)
	}
	return api.Output(c)
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "destination file (default: <home>/config.yaml)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
