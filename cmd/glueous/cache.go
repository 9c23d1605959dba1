package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/server/endpoints"
)

var cacheShowAll bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear cached recognition results",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show [file.pdf]",
	Short: "Summarize cached results",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newLocalEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 0 {
			docs := []endpoints.CacheDocument{}
			for _, doc := range env.app.Cache.Documents() {
				docs = append(docs, endpoints.SummarizeCache(env.app.Cache, doc))
			}
			return api.Output(docs)
		}
		id, err := env.identity(args[0])
		if err != nil {
			return err
		}
		if !cacheShowAll {
			return api.Output(endpoints.SummarizeCache(env.app.Cache, id))
		}
		return api.Output(env.app.Cache.Entries(id))
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <file.pdf>",
	Short: "Discard cached results of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newLocalEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		id, err := env.identity(args[0])
		if err != nil {
			return err
		}
		n := len(env.app.Cache.Entries(id))
		if err := env.app.Cache.DeleteAll(id); err != nil {
			return err
		}
		fmt.Printf("Cleared %d cached pages of %s\n", n, id)
		return nil
	},
}

func init() {
	cacheShowCmd.Flags().BoolVar(&cacheShowAll, "entries", false, "print every cached entry")
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(cacheCmd)
}
