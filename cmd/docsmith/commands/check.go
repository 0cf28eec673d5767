package commands

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/docsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/docsmith/internal/linkcheck"
	"git.home.luguber.info/inful/docsmith/internal/logfields"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	Drafts bool `help:"Include draft sections"`
}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	snap, err := Snapshot(context.Background(), cfg, c.Drafts)
	if err != nil {
		return err
	}

	documents := snap.Documents()
	broken := linkcheck.Check(documents, linkcheck.FromSnapshot(snap))
	slog.Debug("Link check finished", logfields.Count(len(documents)), slog.Int("broken", len(broken)))
	if err := linkcheck.WriteText(g.out(), broken, cfg.Root); err != nil {
		return err
	}
	if len(broken) > 0 {
		return errors.NewError(errors.CategoryLinkCheck, fmt.Sprintf("%d broken link(s) found", len(broken))).
			WithContext("count", len(broken)).Build()
	}
	return nil
}
