package build

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docsmith/internal/search"
)

// Bundler produces the client assets and the server-side page renderer.
type Bundler interface {
	BuildClient(ctx context.Context, bc *BuildContext) error
	BuildServer(ctx context.Context, bc *BuildContext) (PageRenderer, error)
}

// AssetsDir is the output subdirectory for client assets.
const AssetsDir = "assets"

// StaticBundler writes a static client (shell, styles, data files) and
// renders pages with goldmark.
type StaticBundler struct{}

// BuildClient empties the output dir and writes the app shell and assets.
func (StaticBundler) BuildClient(ctx context.Context, bc *BuildContext) error {
	if err := guardOutDir(bc); err != nil {
		return err
	}
	if err := os.RemoveAll(bc.OutDir); err != nil {
		return fmt.Errorf("empty output dir: %w", err)
	}
	assets := filepath.Join(bc.OutDir, AssetsDir)
	if err := os.MkdirAll(assets, 0o755); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}

	shell, err := RenderShell(bc.Config, bc.Snapshot.SectionList(), bc.ClientDiagrams())
	if err != nil {
		return err
	}
	bc.Shell = shell

	files := map[string][]byte{"index.html": []byte(shell)}
	for name, content := range StaticAssets() {
		files[filepath.Join(AssetsDir, name)] = []byte(content)
	}
	data := map[string]any{
		"search-index.json": bc.Snapshot.Search,
		"navigation.json":   bc.Snapshot.Navigation,
		"routes.json":       bc.Snapshot.Routes,
	}
	for name, v := range data {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		files[filepath.Join(AssetsDir, name)] = b
	}
	for name, b := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(bc.OutDir, name), b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	if bc.Config.Build.SQLiteSearch {
		if err := writeSearchDB(ctx, filepath.Join(assets, "search.db"), bc.Snapshot.Search); err != nil {
			return err
		}
	}
	return nil
}

func writeSearchDB(ctx context.Context, path string, entries []search.Entry) error {
	store, err := search.OpenStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.Replace(ctx, entries); err != nil {
		return fmt.Errorf("write search db: %w", err)
	}
	return nil
}

// guardOutDir refuses output dirs that would delete the project or its content.
func guardOutDir(bc *BuildContext) error {
	out, err := filepath.Abs(bc.OutDir)
	if err != nil {
		return err
	}
	protected := []string{bc.Config.Root}
	for _, s := range bc.Snapshot.SectionList() {
		protected = append(protected, s.ContentDir)
	}
	for _, p := range protected {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if abs == out || strings.HasPrefix(abs+string(filepath.Separator), out+string(filepath.Separator)) {
			return fmt.Errorf("output dir %s contains %s", bc.OutDir, p)
		}
	}
	return nil
}

type renderManifest struct {
	BuildID  string          `json:"buildId"`
	Strategy string          `json:"diagramStrategy"`
	Diagrams int             `json:"diagrams"`
	Routes   []manifestRoute `json:"routes"`
}

type manifestRoute struct {
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	SourcePath string `json:"sourcePath,omitempty"`
}

// BuildServer writes the render manifest and returns the page renderer.
func (StaticBundler) BuildServer(_ context.Context, bc *BuildContext) (PageRenderer, error) {
	if err := os.MkdirAll(bc.ServerDir, 0o755); err != nil {
		return nil, fmt.Errorf("create server dir: %w", err)
	}
	m := renderManifest{BuildID: bc.ID, Strategy: string(bc.Strategy), Diagrams: len(bc.Diagrams)}
	for _, r := range bc.Snapshot.Routes {
		m.Routes = append(m.Routes, manifestRoute{Path: r.Path, Kind: string(r.Kind), SourcePath: r.SourcePath})
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(bc.ServerDir, "render-manifest.json"), b, 0o644); err != nil {
		return nil, fmt.Errorf("write render manifest: %w", err)
	}
	return NewMarkdownRenderer(bc.Config, bc.Snapshot, bc.Diagrams), nil
}
