package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var textPage int

var textCmd = &cobra.Command{
	Use:   "text <file.pdf>",
	Short: "Print the text of a page including recognized text",
	Long: `Print the native text of a page followed by any recognized text cached
for it. Pages not yet enriched are recognized first unless --cached-only
is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := newLocalEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		a := env.app

		sess, err := a.Hook.Open(ctx, args[0])
		if err != nil {
			return err
		}
		page, err := sess.Doc.Page(textPage)
		if err != nil {
			return err
		}
		key := sess.Key(textPage)
		cachedOnly, _ := cmd.Flags().GetBool("cached-only")
		if _, ok := a.Cache.Get(key); !ok && !cachedOnly {
			out, err := a.Hook.EnrichPage(ctx, sess, key)
			if err != nil {
				return err
			}
			if out.Err != nil {
				env.logger.Warn("recognition failed", "page", textPage, "error", out.Err)
			}
		}
		fmt.Print(page.Text(nil))
		return nil
	},
}

func init() {
	textCmd.Flags().IntVar(&textPage, "page", 0, "page to print (0-based)")
	textCmd.Flags().Bool("cached-only", false, "do not recognize pages missing from the cache")

	rootCmd.AddCommand(textCmd)
}
