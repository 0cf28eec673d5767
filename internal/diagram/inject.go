package diagram

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const placeholderPrefix = "docsmith-diagram:"

// Inject replaces every rendered mermaid code block in page HTML. Blocks with
// an entry in rendered (keyed by Hash) become paired light/dark containers;
// the rest become `<pre class="mermaid">` blocks for the browser to render.
// A nil map gives the client-side form for every block.
func Inject(page string, rendered map[string]Entry) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(page), body)
	if err != nil {
		return "", fmt.Errorf("parse page html: %w", err)
	}

	var replacements []string
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if def, ok := mermaidBlock(c); ok {
				marker := &html.Node{Type: html.CommentNode, Data: fmt.Sprintf("%s%d", placeholderPrefix, len(replacements))}
				n.InsertBefore(marker, c)
				n.RemoveChild(c)
				replacements = append(replacements, markup(def, rendered))
			} else {
				visit(c)
			}
			c = next
		}
	}

	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	visit(root)
	if len(replacements) == 0 {
		return page, nil
	}

	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render page html: %w", err)
		}
	}
	out := buf.String()
	for i, r := range replacements {
		out = strings.Replace(out, fmt.Sprintf("<!--%s%d-->", placeholderPrefix, i), r, 1)
	}
	return out, nil
}

func mermaidBlock(n *html.Node) (string, bool) {
	if n.Type != html.ElementNode || n.DataAtom != atom.Pre {
		return "", false
	}
	code := n.FirstChild
	for code != nil && code.Type != html.ElementNode {
		code = code.NextSibling
	}
	if code == nil || code.DataAtom != atom.Code {
		return "", false
	}
	for _, a := range code.Attr {
		if a.Key != "class" {
			continue
		}
		for _, cls := range strings.Fields(a.Val) {
			if cls == "language-"+Language {
				return textContent(code), true
			}
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func markup(def string, rendered map[string]Entry) string {
	hash := Hash(def)
	e, ok := rendered[hash]
	if !ok {
		return `<pre class="mermaid">` + html.EscapeString(strings.TrimSpace(def)) + `</pre>`
	}
	return fmt.Sprintf(`<div class="docsmith-mermaid" data-diagram=%q>`+
		`<div class="docsmith-mermaid-light">%s</div>`+
		`<div class="docsmith-mermaid-dark">%s</div></div>`, hash, e.LightOutput, e.DarkOutput)
}
