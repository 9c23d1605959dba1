package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/glueous/reader/internal/api"
	"github.com/glueous/reader/internal/enrich"
	"github.com/glueous/reader/internal/view"
)

var (
	enrichPage   int
	enrichRadius int
)

// PageSummary is the enrichment result of one page.
type PageSummary struct {
	Page   int    `json:"page" yaml:"page"`
	State  string `json:"state" yaml:"state"`
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
	Spans  int    `json:"spans" yaml:"spans"`
}

// EnrichSummary is printed by the enrich command.
type EnrichSummary struct {
	Document string             `json:"document" yaml:"document"`
	Pages    []PageSummary      `json:"pages" yaml:"pages"`
	Driver   enrich.DriverStats `json:"driver" yaml:"driver"`
}

var enrichCmd = &cobra.Command{
	Use:   "enrich <file.pdf>",
	Short: "Recognize text in a document without a server",
	Long: `Open a document, replay cached results and tick the enrichment driver
until no page in range needs work, then print a per-page summary.

By default every page is processed. Use --page and --radius to enrich
only the pages around a position, as the reader would.

Examples:
  glueous enrich scan.pdf
  glueous enrich scan.pdf --page 10 --radius 2`,
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
		a.View.SetCurrent(enrichPage)
		a.View.SetRadii(enrichRadius, enrichRadius)
		a.Driver.SetEnabled(true)

		start := time.Now()
		if err := a.Driver.RunUntilIdle(ctx, 20*time.Millisecond); err != nil {
			return err
		}
		stats := a.Driver.Stats()
		env.logger.Info("enrichment finished",
			"doc", sess.Identity(),
			"enriched", stats.Enriched,
			"failed", stats.Failed,
			"duration", time.Since(start).Round(time.Millisecond))

		summary := EnrichSummary{Document: string(sess.Identity()), Driver: stats}
		for i := 0; i < sess.Doc.PageCount(); i++ {
			key := sess.Key(i)
			ps := PageSummary{Page: i, State: sess.States.Get(key).String()}
			if entry, ok := a.Cache.Get(key); ok {
				ps.Status = string(entry.Status)
				ps.Spans = len(entry.Spans)
			}
			summary.Pages = append(summary.Pages, ps)
		}
		if err := api.Output(summary); err != nil {
			return err
		}
		if stats.LastError != "" && !stats.Enabled {
			return fmt.Errorf("enrichment disabled: %s", stats.LastError)
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichPage, "page", 0, "current page (0-based)")
	enrichCmd.Flags().IntVar(&enrichRadius, "radius", view.Whole, "pages around --page to enrich (-1: whole document)")

	rootCmd.AddCommand(enrichCmd)
}
