package main

import (
	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List available recognition engines",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newLocalEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		return api.Output(map[string]any{
			"active":    env.config.Get().Recognition.Engine,
			"available": env.app.Engines.Names(),
		})
	},
}

func init() {
	rootCmd.AddCommand(enginesCmd)
}
