// Package build runs the ordered build pipeline that turns a site snapshot
// into static output.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/diagram"
	ferrors "git.home.luguber.info/inful/docsmith/internal/foundation/errors"
	"git.home.luguber.info/inful/docsmith/internal/logfields"
	"git.home.luguber.info/inful/docsmith/internal/manifest"
	"git.home.luguber.info/inful/docsmith/internal/metrics"
	"git.home.luguber.info/inful/docsmith/internal/routes"
	"git.home.luguber.info/inful/docsmith/internal/site"
	"git.home.luguber.info/inful/docsmith/internal/version"
)

// Options override configuration and collaborators for one run.
type Options struct {
	// OutDir overrides the configured output dir.
	OutDir string
	// Strategy overrides the configured diagram strategy.
	Strategy   config.DiagramStrategy
	Bundler    Bundler
	NewBackend func(config.DiagramsConfig) diagram.Backend
	Recorder   metrics.Recorder
	Observer   Observer
}

// DefaultBackend renders diagrams in headless Chrome.
func DefaultBackend(d config.DiagramsConfig) diagram.Backend {
	return diagram.NewChromeBackend(diagram.ChromeOptions{
		ScriptURL: d.ScriptURL,
		ExecPath:  d.ChromePath,
		Timeout:   d.RenderTimeout(),
	})
}

// DefaultPipeline is the stage order of a build. Diagram pre-rendering only
// runs for the build-time strategy.
func DefaultPipeline(bc *BuildContext) *Pipeline {
	return NewPipeline().
		AddIf(bc.Strategy == config.DiagramsBuild, StagePreRenderDiagrams, stagePreRenderDiagrams).
		Add(StageClientBuild, stageClientBuild).
		Add(StageServerBuild, stageServerBuild).
		Add(StagePagePreRender, stagePagePreRender).
		Add(StageManifestGeneration, stageManifestGeneration).
		Add(StageCleanup, stageCleanup)
}

// Run builds the site described by snap. The report is returned even when
// the build fails; the error is the fatal or canceled StageError.
func Run(ctx context.Context, cfg *config.Config, snap *site.Snapshot, opts Options) (*Report, error) {
	out := opts.OutDir
	if out == "" {
		out = cfg.Path(cfg.OutDir)
	}
	bc := NewBuildContext(cfg, snap, out)
	if opts.Strategy != "" {
		bc.Strategy = opts.Strategy
	}
	bc.Bundler = opts.Bundler
	if bc.Bundler == nil {
		bc.Bundler = StaticBundler{}
	}
	bc.NewBackend = opts.NewBackend
	if bc.NewBackend == nil {
		bc.NewBackend = DefaultBackend
	}
	bc.Recorder = metrics.OrNoop(opts.Recorder)
	observers := multiObserver{LogObserver{BuildID: bc.ID}, RecorderObserver{Recorder: bc.Recorder}}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}
	bc.Observer = observers
	bc.Report.Routes = len(snap.Routes)

	pipeline := DefaultPipeline(bc)
	bc.Stages = pipeline.Names()
	slog.Info("Build started",
		logfields.BuildID(bc.ID),
		logfields.Path(out),
		logfields.Strategy(string(bc.Strategy)),
		logfields.Count(len(snap.Routes)))

	err := RunStages(ctx, bc, pipeline.Build())
	bc.Report.DiagramStrategy = bc.Strategy
	bc.Report.Finish()
	bc.Report.DeriveOutcome()
	bc.observer().OnBuildComplete(bc.Report)
	return bc.Report, err
}

func canceled(ctx context.Context, stage StageName, err error) (*StageError, bool) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return NewCanceledStageError(stage, err), true
	}
	return nil, false
}

func bundleFailure(stage StageName, message string, err error) error {
	return NewFatalStageError(stage, ferrors.WrapError(fmt.Errorf("%w: %w", ErrBundle, err), ferrors.CategoryBundle, message).
		Fatal().
		WithContext("stage", string(stage)).
		Build())
}

func stagePreRenderDiagrams(ctx context.Context, bc *BuildContext) error {
	var defs []string
	unique := map[string]bool{}
	for _, d := range bc.Snapshot.Documents() {
		for _, def := range diagram.Extract(d.Body) {
			defs = append(defs, def)
			unique[diagram.Hash(def)] = true
		}
	}
	bc.Diagrams = map[string]diagram.Entry{}
	if len(defs) == 0 {
		return nil
	}

	cache, err := diagram.NewCache(bc.Config.Path(bc.Config.Diagrams.CacheDir))
	if err != nil {
		return fallBackToClient(bc, err)
	}
	renderer := diagram.NewRenderer(cache, bc.NewBackend(bc.Config.Diagrams), bc.Recorder)
	defer func() {
		if err := renderer.Close(); err != nil {
			slog.Warn("Failed to close diagram renderer", logfields.Error(err))
		}
	}()

	// Fully cached sites never need the backend.
	rendered, err := renderer.RenderBatch(ctx, defs)
	if errors.Is(err, diagram.ErrNotStarted) {
		if startErr := renderer.Start(ctx); startErr != nil {
			if se, ok := canceled(ctx, StagePreRenderDiagrams, startErr); ok {
				return se
			}
			return fallBackToClient(bc, startErr)
		}
		rendered, err = renderer.RenderBatch(ctx, defs)
	}
	if err != nil {
		if se, ok := canceled(ctx, StagePreRenderDiagrams, err); ok {
			return se
		}
		return fallBackToClient(bc, err)
	}

	bc.Diagrams = rendered
	bc.Report.Diagrams = len(rendered)
	bc.DiagramFailures = len(unique) - len(rendered)
	slog.Info("Diagrams pre-rendered", logfields.Count(len(rendered)), slog.Int("failed", bc.DiagramFailures))
	if bc.DiagramFailures > 0 {
		return NewWarnStageError(StagePreRenderDiagrams, fmt.Errorf("%d of %d diagrams failed to render", bc.DiagramFailures, len(unique)))
	}
	return nil
}

func fallBackToClient(bc *BuildContext, err error) error {
	bc.Strategy = config.DiagramsClient
	bc.Diagrams = nil
	slog.Warn("Diagram backend unavailable; falling back to client rendering", logfields.Error(err))
	return NewWarnStageError(StagePreRenderDiagrams, fmt.Errorf("%w: %w", ErrDiagramBackend, err))
}

func stageClientBuild(ctx context.Context, bc *BuildContext) error {
	if err := bc.Bundler.BuildClient(ctx, bc); err != nil {
		if se, ok := canceled(ctx, StageClientBuild, err); ok {
			return se
		}
		return bundleFailure(StageClientBuild, "client build failed", err)
	}
	return nil
}

func stageServerBuild(ctx context.Context, bc *BuildContext) error {
	pages, err := bc.Bundler.BuildServer(ctx, bc)
	if err != nil {
		if se, ok := canceled(ctx, StageServerBuild, err); ok {
			return se
		}
		return bundleFailure(StageServerBuild, "server build failed", err)
	}
	bc.Pages = pages
	return nil
}

func stagePagePreRender(ctx context.Context, bc *BuildContext) error {
	shell := bc.Shell
	if shell == "" {
		s, err := RenderShell(bc.Config, bc.Snapshot.SectionList(), bc.ClientDiagrams())
		if err != nil {
			return NewFatalStageError(StagePagePreRender, err)
		}
		shell = s
	}

	entries := bc.Snapshot.Routes
	failed := 0
	for _, route := range entries {
		if err := ctx.Err(); err != nil {
			return NewCanceledStageError(StagePagePreRender, err)
		}
		pages, err := bc.Pages.Render(ctx, route)
		if err == nil {
			err = writePages(bc.OutDir, shell, pages)
		}
		if err != nil {
			failed++
			bc.Recorder.IncPageRender(false)
			bc.Report.FailedRoutes = append(bc.Report.FailedRoutes, FailedRoute{Path: route.Path, Error: err.Error()})
			slog.Warn("Failed to pre-render route", logfields.BuildID(bc.ID), logfields.Route(route.Path), logfields.Error(err))
			continue
		}
		bc.Recorder.IncPageRender(true)
		bc.Report.RenderedPages += len(pages)
	}
	if failed > 0 {
		return NewWarnStageError(StagePagePreRender, fmt.Errorf("%w: %d of %d routes failed", ErrPageRender, failed, len(entries)))
	}
	return nil
}

// OutputPath maps a route to its file below outDir: "/" is index.html and
// every other route is a directory holding index.html.
func OutputPath(outDir, route string) string {
	clean := strings.TrimPrefix(path.Clean("/"+route), "/")
	if clean == "" {
		return filepath.Join(outDir, "index.html")
	}
	return filepath.Join(outDir, filepath.FromSlash(clean), "index.html")
}

func writePages(outDir, shell string, pages []Page) error {
	for _, p := range pages {
		dest := OutputPath(outDir, p.Path)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create page dir: %w", err)
		}
		if err := os.WriteFile(dest, []byte(FillShell(shell, p)), 0o644); err != nil {
			return fmt.Errorf("write page %s: %w", p.Path, err)
		}
	}
	return nil
}

func stageManifestGeneration(_ context.Context, bc *BuildContext) error {
	sections := bc.Snapshot.SectionList()
	sitemap, err := manifest.Sitemap(bc.Snapshot.Routes, sections, bc.Config.SiteURL)
	if err != nil {
		return NewFatalStageError(StageManifestGeneration, err)
	}
	robots := []byte(manifest.Robots(bc.Config.SiteURL))

	artifacts := map[string][]byte{"sitemap.xml": sitemap, "robots.txt": robots}
	hashes := make(map[string]string, len(artifacts))
	for name, data := range artifacts {
		if err := os.WriteFile(filepath.Join(bc.OutDir, name), data, 0o644); err != nil {
			return NewFatalStageError(StageManifestGeneration, ferrors.WrapError(err, ferrors.CategoryFileSystem, "write "+name).Build())
		}
		hashes[name] = manifest.ArtifactHash(data)
	}

	bm := buildManifest(bc, hashes)
	data, err := bm.ToJSON()
	if err != nil {
		return NewFatalStageError(StageManifestGeneration, err)
	}
	if err := os.WriteFile(filepath.Join(bc.OutDir, "build-manifest.json"), data, 0o644); err != nil {
		return NewFatalStageError(StageManifestGeneration, ferrors.WrapError(err, ferrors.CategoryFileSystem, "write build manifest").Build())
	}
	return nil
}

func buildManifest(bc *BuildContext, hashes map[string]string) *manifest.BuildManifest {
	snap := bc.Snapshot
	bm := &manifest.BuildManifest{
		ID:        bc.ID,
		Generator: version.String(),
		Timestamp: bc.Report.Start.UTC(),
		Inputs: manifest.Inputs{
			SiteName:    snap.Name,
			Fingerprint: snap.Fingerprint(),
		},
		Plan: manifest.Plan{DiagramStrategy: string(bc.Strategy), Stages: bc.Stages},
		Outputs: manifest.Outputs{
			Routes:         len(snap.Routes),
			RenderedPages:  bc.Report.RenderedPages,
			SearchEntries:  len(snap.Search),
			Diagrams:       len(bc.Diagrams),
			ArtifactHashes: hashes,
		},
		Status:   string(OutcomeSuccess),
		Duration: time.Since(bc.Report.Start).Milliseconds(),
	}
	if len(bc.Report.Warnings) > 0 {
		bm.Status = string(OutcomeWarning)
	}
	for _, sc := range snap.Sections {
		bm.Inputs.Sections = append(bm.Inputs.Sections, manifest.SectionInput{
			ID:        sc.Section.ID,
			BasePath:  sc.Section.BasePath,
			Documents: len(sc.Documents),
			Draft:     sc.Section.Draft,
		})
	}
	for _, a := range snap.APIs {
		bm.Inputs.APIs = append(bm.Inputs.APIs, a.BasePath)
	}
	for _, r := range snap.Routes {
		if r.Kind == routes.KindChangelog {
			bm.Inputs.HasChangelog = true
		}
	}
	for _, f := range bc.Report.FailedRoutes {
		bm.Outputs.FailedRoutes = append(bm.Outputs.FailedRoutes, f.Path)
	}
	return bm
}

func stageCleanup(_ context.Context, bc *BuildContext) error {
	bc.Diagrams = nil
	if bc.Config.Build.KeepServerOutput {
		return nil
	}
	if err := os.RemoveAll(bc.ServerDir); err != nil {
		return NewWarnStageError(StageCleanup, fmt.Errorf("remove server output: %w", err))
	}
	return nil
}
