package build

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"git.home.luguber.info/inful/docsmith/internal/config"
)

// Placeholders left in the app shell for per-page content.
const (
	HeadPlaceholder = "<!--app-head-->"
	HTMLPlaceholder = "<!--app-html-->"
)

var shellTemplate = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="en" data-theme="{{.Mode}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{.HeadSlot}}
<link rel="stylesheet" href="/assets/docsmith.css">
<style>:root { --docsmith-primary: {{.PrimaryColor}}; }</style>
</head>
<body>
<header class="docsmith-header">
<a class="docsmith-brand" href="/">{{.Name}}</a>
{{if gt (len .Sections) 1}}<nav class="docsmith-sections">{{range .Sections}}<a href="{{.BasePath}}">{{.Label}}</a>{{end}}</nav>{{end}}
<input id="docsmith-search" type="search" placeholder="Search" autocomplete="off">
<ul id="docsmith-search-results"></ul>
</header>
<div id="app">{{.HTMLSlot}}</div>
{{if .MermaidScript}}<script type="module">
import mermaid from {{.MermaidScript}};
mermaid.initialize({ startOnLoad: true, theme: window.matchMedia('(prefers-color-scheme: dark)').matches ? 'dark' : 'default' });
</script>{{end}}
<script src="/assets/docsmith.js" defer></script>
</body>
</html>
`))

type shellData struct {
	Name          string
	Mode          string
	PrimaryColor  string
	Sections      []config.Section
	MermaidScript string
	HeadSlot      template.HTML
	HTMLSlot      template.HTML
}

// RenderShell renders the app shell with head and body placeholders. The
// browser-side mermaid loader is included when clientDiagrams is set.
func RenderShell(cfg *config.Config, sections []config.Section, clientDiagrams bool) (string, error) {
	data := shellData{
		Name:         cfg.DisplayName(),
		Mode:         string(cfg.Theme.Mode),
		PrimaryColor: cfg.Theme.PrimaryColor,
		Sections:     sections,
		HeadSlot:     template.HTML(HeadPlaceholder),
		HTMLSlot:     template.HTML(HTMLPlaceholder),
	}
	if clientDiagrams {
		data.MermaidScript = cfg.Diagrams.ScriptURL
	}
	var buf bytes.Buffer
	if err := shellTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render app shell: %w", err)
	}
	return buf.String(), nil
}

// FillShell places a page into the shell.
func FillShell(shell string, p Page) string {
	out := strings.Replace(shell, HeadPlaceholder, string(p.Head), 1)
	return strings.Replace(out, HTMLPlaceholder, string(p.HTML), 1)
}

// StaticAssets returns the fixed client assets by file name.
func StaticAssets() map[string]string {
	return map[string]string{"docsmith.css": stylesheet, "docsmith.js": script}
}

const stylesheet = `:root { color-scheme: light dark; }
body { margin: 0; font-family: system-ui, sans-serif; line-height: 1.6; }
a { color: var(--docsmith-primary); }
.docsmith-header { display: flex; gap: 1rem; align-items: center; padding: 0.75rem 1.5rem; border-bottom: 1px solid #8884; }
.docsmith-brand { font-weight: 700; text-decoration: none; }
.docsmith-layout { display: grid; grid-template-columns: 16rem 1fr 14rem; gap: 2rem; padding: 1.5rem; }
.docsmith-sidebar ul, .docsmith-toc ul { list-style: none; padding-left: 0.75rem; }
.docsmith-badge { font-size: 0.7rem; border: 1px solid currentColor; border-radius: 0.25rem; padding: 0 0.25rem; margin-left: 0.25rem; }
.docsmith-mermaid { display: flex; justify-content: center; margin-bottom: 1rem; }
.docsmith-mermaid-dark { display: none; }
@media (prefers-color-scheme: dark) {
  .docsmith-mermaid-light { display: none; }
  .docsmith-mermaid-dark { display: block; }
}
html[data-theme="light"] .docsmith-mermaid-light { display: block; }
html[data-theme="light"] .docsmith-mermaid-dark { display: none; }
html[data-theme="dark"] .docsmith-mermaid-light { display: none; }
html[data-theme="dark"] .docsmith-mermaid-dark { display: block; }
`

const script = `(function () {
  var input = document.getElementById('docsmith-search');
  var list = document.getElementById('docsmith-search-results');
  if (!input || !list) return;
  var index = null;
  function load() {
    if (index) return Promise.resolve(index);
    return fetch('/assets/search-index.json').then(function (r) { return r.json(); }).then(function (d) { index = d; return d; });
  }
  input.addEventListener('input', function () {
    var terms = input.value.toLowerCase().split(/\s+/).filter(Boolean);
    if (!terms.length) { list.innerHTML = ''; return; }
    load().then(function (entries) {
      var hits = entries.filter(function (e) {
        var text = (e.title + ' ' + e.description + ' ' + e.content).toLowerCase();
        return terms.every(function (t) { return text.indexOf(t) >= 0; });
      }).slice(0, 10);
      list.innerHTML = '';
      hits.forEach(function (e) {
        var li = document.createElement('li');
        var a = document.createElement('a');
        a.href = e.path;
        a.textContent = e.title;
        li.appendChild(a);
        list.appendChild(li);
      });
    });
  });
})();
`
