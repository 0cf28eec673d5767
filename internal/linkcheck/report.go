package linkcheck

import (
	"fmt"
	"io"
)

// WriteText prints a grouped report. Nothing but a one-line notice is
// written when there are no broken links.
func WriteText(w io.Writer, links []BrokenLink, root string) error {
	if len(links) == 0 {
		_, err := fmt.Fprintln(w, "No broken links found.")
		return err
	}
	plural := "s"
	if len(links) == 1 {
		plural = ""
	}
	if _, err := fmt.Fprintf(w, "Found %d broken link%s:\n\n", len(links), plural); err != nil {
		return err
	}
	for _, fr := range Group(links, root) {
		if _, err := fmt.Fprintf(w, "  %s\n", fr.File); err != nil {
			return err
		}
		for _, l := range fr.Links {
			hint := ""
			if l.Suggestion != "" {
				hint = fmt.Sprintf(" (did you mean %s?)", l.Suggestion)
			}
			if _, err := fmt.Fprintf(w, "    line %d: %s%s\n", l.Line, l.Link, hint); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
