package build

import (
	"path/filepath"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/diagram"
	"git.home.luguber.info/inful/docsmith/internal/metrics"
	"git.home.luguber.info/inful/docsmith/internal/site"
)

// ServerDirName holds server-build intermediates inside the output dir.
const ServerDirName = ".server"

// BuildContext is the state of one build run. It is created per run and
// threaded through every stage; nothing outlives the run.
type BuildContext struct {
	ID        string
	Config    *config.Config
	Snapshot  *site.Snapshot
	OutDir    string
	ServerDir string

	// Strategy starts as configured and falls back to client rendering when
	// the diagram backend is unavailable.
	Strategy config.DiagramStrategy
	// Diagrams holds the pre-rendered diagrams of this run, keyed by hash.
	Diagrams map[string]diagram.Entry
	// DiagramFailures counts definitions the pre-render stage could not render.
	DiagramFailures int

	// Shell is the app shell written by the client build.
	Shell string
	// Pages is produced by the server build.
	Pages PageRenderer

	Stages     []string
	Bundler    Bundler
	NewBackend func(config.DiagramsConfig) diagram.Backend
	Recorder   metrics.Recorder
	Observer   Observer
	Report     *Report
}

// NewBuildContext creates the state for one run with a fresh build id.
func NewBuildContext(cfg *config.Config, snap *site.Snapshot, outDir string) *BuildContext {
	id := uuid.NewString()
	return &BuildContext{
		ID:        id,
		Config:    cfg,
		Snapshot:  snap,
		OutDir:    outDir,
		ServerDir: filepath.Join(outDir, ServerDirName),
		Strategy:  cfg.Diagrams.Strategy,
		Recorder:  metrics.NoopRecorder{},
		Report:    NewReport(id),
	}
}

func (bc *BuildContext) observer() Observer {
	if bc.Observer == nil {
		return NoopObserver{}
	}
	return bc.Observer
}

// ClientDiagrams reports whether pages need the browser-side diagram renderer.
func (bc *BuildContext) ClientDiagrams() bool {
	return bc.Strategy != config.DiagramsBuild || bc.DiagramFailures > 0
}
