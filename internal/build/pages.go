package build

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/diagram"
	"git.home.luguber.info/inful/docsmith/internal/markdown"
	"git.home.luguber.info/inful/docsmith/internal/navigation"
	"git.home.luguber.info/inful/docsmith/internal/openapi"
	"git.home.luguber.info/inful/docsmith/internal/routes"
	"git.home.luguber.info/inful/docsmith/internal/site"
)

// Page is one rendered output page. Head and HTML fill the shell placeholders.
type Page struct {
	Path  string
	Title string
	Head  template.HTML
	HTML  template.HTML
}

// PageRenderer renders the pages served by a route. Most routes yield one
// page; an API route yields its overview plus one page per operation.
type PageRenderer interface {
	Render(ctx context.Context, route routes.Entry) ([]Page, error)
}

var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "nav"}}<ul>{{range .}}<li class="docsmith-nav-{{.Kind}}">{{if .Path}}<a href="{{.Path}}">{{.Label}}</a>{{else}}<span>{{.Label}}</span>{{end}}{{if .Badge}}<span class="docsmith-badge">{{.Badge}}</span>{{end}}{{if .Children}}{{template "nav" .Children}}{{end}}</li>{{end}}</ul>{{end}}

{{define "head"}}<title>{{if .Title}}{{.Title}} | {{end}}{{.Site}}</title>
{{if .Description}}<meta name="description" content="{{.Description}}">
{{end}}{{if .Redirect}}<meta http-equiv="refresh" content="0; url={{.Redirect}}">
<link rel="canonical" href="{{.Redirect}}">
{{end}}{{end}}

{{define "layout"}}<div class="docsmith-layout">
<nav class="docsmith-sidebar">{{template "nav" .Nav}}</nav>
<main class="docsmith-content"><article>{{.Body}}</article></main>
{{if .Outline}}<aside class="docsmith-toc"><ul>{{range .Outline}}<li class="level-{{.Level}}"><a href="#{{.ID}}">{{.Text}}</a></li>{{end}}</ul></aside>{{end}}
</div>{{end}}

{{define "redirect"}}<p>Redirecting to <a href="{{.}}">{{.}}</a>.</p>{{end}}

{{define "api"}}<h1>{{.Label}}</h1>
{{if .Version}}<p class="docsmith-api-version">Version {{.Version}}</p>{{end}}
{{if .Description}}<p>{{.Description}}</p>{{end}}
{{range .Groups}}<h2 id="{{.Slug}}">{{.Tag}}</h2>
{{if .Description}}<p>{{.Description}}</p>{{end}}
<ul>{{range .Operations}}<li><a href="{{.Href}}"><code>{{.Method}}</code> <code>{{.Path}}</code></a> {{.Summary}}</li>{{end}}</ul>
{{end}}{{end}}

{{define "operation"}}<h1>{{.Summary}}</h1>
<p><code class="docsmith-method">{{.Method}}</code> <code>{{.Path}}</code></p>
{{if .Description}}<p>{{.Description}}</p>{{end}}
{{if .OperationID}}<p>Operation ID: <code>{{.OperationID}}</code></p>{{end}}
<p class="docsmith-tag">{{.Tag}}</p>{{end}}
`))

type headData struct {
	Site        string
	Title       string
	Description string
	Redirect    string
}

type layoutData struct {
	Nav     []navigation.Node
	Body    template.HTML
	Outline []markdown.Heading
}

type apiView struct {
	Label       string
	Version     string
	Description string
	Groups      []apiGroupView
}

type apiGroupView struct {
	Tag         string
	Slug        string
	Description string
	Operations  []apiOperationView
}

type apiOperationView struct {
	openapi.Operation
	Tag  string
	Href string
}

// MarkdownRenderer renders pages from a site snapshot with goldmark.
type MarkdownRenderer struct {
	snap     *site.Snapshot
	md       goldmark.Markdown
	siteName string
	diagrams map[string]diagram.Entry
}

// NewMarkdownRenderer creates a renderer. A nil diagrams map leaves every
// diagram for the browser.
func NewMarkdownRenderer(cfg *config.Config, snap *site.Snapshot, diagrams map[string]diagram.Entry) *MarkdownRenderer {
	return &MarkdownRenderer{snap: snap, md: markdown.New(), siteName: cfg.DisplayName(), diagrams: diagrams}
}

// Render implements PageRenderer.
func (r *MarkdownRenderer) Render(ctx context.Context, route routes.Entry) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch route.Kind {
	case routes.KindRedirect:
		p, err := r.redirect(route)
		return []Page{p}, err
	case routes.KindAPI:
		return r.api(route)
	default:
		p, err := r.document(route)
		return []Page{p}, err
	}
}

func (r *MarkdownRenderer) document(route routes.Entry) (Page, error) {
	d, ok := r.snap.Document(route.Path)
	if !ok {
		return Page{}, fmt.Errorf("no document for route %s", route.Path)
	}
	body, err := markdown.Render(r.md, []byte(d.Body))
	if err != nil {
		return Page{}, err
	}
	body, err = diagram.Inject(body, r.diagrams)
	if err != nil {
		return Page{}, err
	}
	outline := markdown.Outline(r.md, []byte(d.Body), 2, 3)
	return r.page(route.Path, route.SectionID, headData{Title: d.Title, Description: d.Description}, template.HTML(body), outline) //nolint:gosec // rendered from project content
}

func (r *MarkdownRenderer) redirect(route routes.Entry) (Page, error) {
	var body bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&body, "redirect", route.RedirectTo); err != nil {
		return Page{}, err
	}
	head, err := r.head(headData{Title: "Redirecting", Redirect: route.RedirectTo})
	if err != nil {
		return Page{}, err
	}
	return Page{Path: route.Path, Title: "Redirecting", Head: head, HTML: template.HTML(body.String())}, nil //nolint:gosec // template output
}

func (r *MarkdownRenderer) api(route routes.Entry) ([]Page, error) {
	base := route.BasePath()
	api, ok := r.snap.API(base)
	if !ok {
		return nil, fmt.Errorf("no API description mounted at %s", base)
	}

	view := apiView{Label: api.Label, Version: api.Spec.Version, Description: api.Spec.Description}
	var ops []apiOperationView
	for _, g := range api.Spec.Groups {
		gv := apiGroupView{Tag: g.Tag, Slug: openapi.TagSlug(g.Tag), Description: g.Description}
		for _, op := range g.Operations {
			ov := apiOperationView{Operation: op, Tag: g.Tag, Href: openapi.OperationPath(base, g.Tag, op)}
			gv.Operations = append(gv.Operations, ov)
			ops = append(ops, ov)
		}
		view.Groups = append(view.Groups, gv)
	}

	var body bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&body, "api", view); err != nil {
		return nil, err
	}
	overview, err := r.page(base, route.SectionID, headData{Title: api.Label, Description: api.Spec.Description}, template.HTML(body.String()), nil) //nolint:gosec // template output
	if err != nil {
		return nil, err
	}

	pages := []Page{overview}
	for _, op := range ops {
		body.Reset()
		if err := pageTemplates.ExecuteTemplate(&body, "operation", op); err != nil {
			return nil, err
		}
		p, err := r.page(op.Href, route.SectionID, headData{Title: op.Summary, Description: op.Method + " " + op.Path}, template.HTML(body.String()), nil) //nolint:gosec // template output
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func (r *MarkdownRenderer) head(h headData) (template.HTML, error) {
	h.Site = r.siteName
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "head", h); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil //nolint:gosec // template output
}

func (r *MarkdownRenderer) page(p, sectionID string, h headData, body template.HTML, outline []markdown.Heading) (Page, error) {
	head, err := r.head(h)
	if err != nil {
		return Page{}, err
	}
	var buf bytes.Buffer
	data := layoutData{Nav: r.snap.Navigation.ItemsFor(sectionID), Body: body, Outline: outline}
	if err := pageTemplates.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Page{}, err
	}
	return Page{Path: p, Title: h.Title, Head: head, HTML: template.HTML(buf.String())}, nil //nolint:gosec // template output
}
