package diagram

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Language is the fence info string that marks a diagram block.
const Language = "mermaid"

var extractor = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Extract returns the definitions of every mermaid fenced block in a
// markdown body, in document order.
func Extract(body string) []string {
	src := []byte(body)
	doc := extractor.Parser().Parse(text.NewReader(src))

	var defs []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if string(fence.Language(src)) != Language {
			return ast.WalkSkipChildren, nil
		}
		var b strings.Builder
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		if def := strings.TrimSpace(b.String()); def != "" {
			defs = append(defs, def)
		}
		return ast.WalkSkipChildren, nil
	})
	return defs
}
