package navigation

import (
	"git.home.luguber.info/inful/docsmith/internal/config"
)

// SectionTree is the navigation of one section.
type SectionTree struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	BasePath string `json:"basePath"`
	Items    []Node `json:"items"`
}

// Site is the navigation of a whole site. Exactly one of Legacy or Sections
// is meaningful, as indicated by Kind.
type Site struct {
	Kind     config.NavigationKind `json:"kind"`
	Legacy   []Node                `json:"legacy,omitempty"`
	Sections []SectionTree         `json:"sections,omitempty"`
}

// NewLegacy builds a site navigation from a manually configured tree.
func NewLegacy(items []config.NavItem) Site {
	return Site{Kind: config.NavigationLegacy, Legacy: FromManual(items)}
}

// NewSectioned builds a site navigation from per-section trees.
func NewSectioned(sections []SectionTree) Site {
	return Site{Kind: config.NavigationSectioned, Sections: sections}
}

// FromManual converts configured navigation items into nodes. Items with
// children become groups; all others become links.
func FromManual(items []config.NavItem) []Node {
	out := make([]Node, 0, len(items))
	for _, it := range items {
		if len(it.Children) > 0 {
			out = append(out, Node{Kind: KindGroup, Label: it.Label, Icon: it.Icon, Children: FromManual(it.Children)})
			continue
		}
		out = append(out, Node{Kind: KindLink, Label: it.Label, Path: it.Path, Icon: it.Icon})
	}
	return out
}

// ItemsFor returns the tree shown for a section. Legacy sites ignore the id.
func (s Site) ItemsFor(sectionID string) []Node {
	if s.Kind == config.NavigationLegacy {
		return s.Legacy
	}
	for _, t := range s.Sections {
		if t.ID == sectionID {
			return t.Items
		}
	}
	return nil
}
