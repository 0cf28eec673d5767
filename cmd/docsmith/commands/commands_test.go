package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/foundation/errors"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return root
}

func defaultProject(t *testing.T, index string) string {
	t.Helper()
	return writeProject(t, map[string]string{
		"docsmith.yaml": "name: Acme\nsite_url: https://docs.example.com\n",
		"docs/index.md": index,
		"docs/guide.md": "---\ntitle: Guide\n---\n# Guide\n\nSteps.",
	})
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("docsmith"), kong.Vars{"version": "test"}, kong.Exit(func(int) {}))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	var out bytes.Buffer
	err = kctx.Run(&Global{Out: &out}, &cli)
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	root := defaultProject(t, "# Home\n\nSee the [guide](./guide.md).")

	out, err := run(t, "-C", root, "build", "--diagrams", "client")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome=success")

	_, err = os.Stat(filepath.Join(root, "docs-dist", "guide", "index.html"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "docs-dist", "sitemap.xml"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, ReportDir, "build-report.json"))
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestBuildCommandOutputOverride(t *testing.T) {
	root := defaultProject(t, "# Home")
	out := filepath.Join(t.TempDir(), "site")

	_, err := run(t, "-C", root, "build", "-o", out)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "index.html"))
	require.NoError(t, err)
}

func TestBuildCommandSucceedsWithFailedRoute(t *testing.T) {
	root := defaultProject(t, "# Home")
	// The page's output dir collides with a generated asset file.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "assets", "docsmith.css.md"), []byte("# Clash"), 0o600))

	out, err := run(t, "-C", root, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "failed=1")
	assert.Contains(t, out, "outcome=warning")
	assert.Equal(t, 1, strings.Count(out, "  failed /assets/docsmith.css:"))

	_, err = os.Stat(filepath.Join(root, "docs-dist", "guide", "index.html"))
	require.NoError(t, err)
	sitemap, err := os.ReadFile(filepath.Join(root, "docs-dist", "sitemap.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(sitemap), "https://docs.example.com/assets/docsmith.css/")
}

func TestBuildCommandRejectsUnknownStrategy(t *testing.T) {
	root := defaultProject(t, "# Home")

	_, err := run(t, "-C", root, "build", "--diagrams", "server")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
	assert.Equal(t, 2, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestCheckCommandReportsBrokenLinks(t *testing.T) {
	root := defaultProject(t, "# Home\n\nSee the [guide](./guide.md) and [gone](/gide).")

	out, err := run(t, "-C", root, "check")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryLinkCheck, errors.GetCategory(err))
	assert.Equal(t, 3, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Contains(t, out, "Found 1 broken link:")
	assert.Contains(t, out, "/gide (did you mean /guide?)")
}

func TestCheckCommandPassesCleanProject(t *testing.T) {
	root := defaultProject(t, "# Home\n\nSee the [guide](./guide.md).")

	out, err := run(t, "-C", root, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "No broken links found.")
}

func TestIndexCommand(t *testing.T) {
	root := defaultProject(t, "# Home")

	out, err := run(t, "-C", root, "index")
	require.NoError(t, err)
	var routes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &routes))
	var paths []string
	for _, r := range routes {
		paths = append(paths, r["path"].(string))
	}
	assert.Contains(t, paths, "/")
	assert.Contains(t, paths, "/guide")

	out, err = run(t, "-C", root, "index", "--search")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Guide"`)
}

func TestMissingExplicitConfigIsConfigError(t *testing.T) {
	root := defaultProject(t, "# Home")

	_, err := run(t, "-C", root, "-c", filepath.Join(root, "nope.yaml"), "index")
	require.Error(t, err)
	assert.Equal(t, 7, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: config.LogLevelWarn, Format: config.LogFormatJSON}, false, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))

	buf.Reset()
	logger = NewLogger(config.LoggingConfig{Level: config.LogLevelWarn, Format: config.LogFormatText}, true, &buf)
	logger.Debug("verbose wins")
	assert.True(t, strings.Contains(buf.String(), "verbose wins"))
}
