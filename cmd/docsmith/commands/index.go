package commands

import (
	"context"
	"encoding/json"
)

// IndexCmd implements the 'index' command.
type IndexCmd struct {
	Search bool `help:"Print search entries instead of routes"`
	Drafts bool `help:"Include draft sections"`
}

func (c *IndexCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	snap, err := Snapshot(context.Background(), cfg, c.Drafts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(g.out())
	enc.SetIndent("", "  ")
	if c.Search {
		return enc.Encode(snap.Search)
	}
	return enc.Encode(snap.Routes)
}
