package enrich

import (
	"context"
	"log/slog"
)

// Controller exposes the host commands of the pipeline. Each command takes
// no arguments beyond the context.
type Controller struct {
	hook   *Hook
	driver *Driver
	view   ViewSource
	logger *slog.Logger
}

// NewController composes the commands over a hook, driver and view.
func NewController(hook *Hook, driver *Driver, view ViewSource, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{hook: hook, driver: driver, view: view, logger: logger.With("component", "controller")}
}

// Enable turns automatic enrichment on.
func (c *Controller) Enable() { c.driver.SetEnabled(true) }

// Disable turns automatic enrichment off.
func (c *Controller) Disable() { c.driver.SetEnabled(false) }

// Toggle flips automatic enrichment and returns the new setting.
func (c *Controller) Toggle() bool {
	on := !c.driver.Enabled()
	c.driver.SetEnabled(on)
	return on
}

// RerunCurrentPage re-recognizes the page the user is on.
func (c *Controller) RerunCurrentPage(ctx context.Context) (PageOutcome, error) {
	current := c.view.View().Current
	c.logger.Info("rerunning page", "page", current)
	return c.hook.RerunPage(ctx, current)
}

// RerunDocument drops every result of the open document.
func (c *Controller) RerunDocument(ctx context.Context) error {
	return c.hook.RerunDocument(ctx)
}

// SetDebug switches injected text visibility and reapplies it to the open
// document.
func (c *Controller) SetDebug(ctx context.Context, on bool) error {
	c.hook.Processor().SetDebug(on)
	if c.hook.Session() == nil {
		return nil
	}
	_, err := c.hook.Replay(ctx)
	return err
}
