package openapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsmith/internal/config"
	"git.home.luguber.info/inful/docsmith/internal/navigation"
)

const petstore = `
openapi: 3.0.0
info:
  title: Petstore
  version: "1.0"
tags:
  - name: pets
    description: Everything about pets
  - name: store
paths:
  /pets/{id}:
    get:
      tags: [pets]
      summary: Get a pet
    delete:
      tags: [pets, admin]
      description: Remove a pet
  /pets:
    get:
      tags: [pets]
      operationId: listPets
    post:
      tags: [pets]
      summary: Create a pet
  /health:
    get:
      summary: Health check
    options:
      summary: ignored
  /orders:
    put:
      tags: [store]
      summary: Update order
`

func TestParse(t *testing.T) {
	spec, err := Parse([]byte(petstore))
	require.NoError(t, err)

	assert.Equal(t, "Petstore", spec.Title)
	assert.Equal(t, "1.0", spec.Version)
	require.Len(t, spec.Groups, 3)

	assert.Equal(t, "pets", spec.Groups[0].Tag)
	assert.Equal(t, "Everything about pets", spec.Groups[0].Description)
	assert.Equal(t, "store", spec.Groups[1].Tag)
	assert.Empty(t, spec.Groups[1].Description)
	assert.Equal(t, DefaultTag, spec.Groups[2].Tag)

	pets := spec.Groups[0].Operations
	require.Len(t, pets, 4)
	assert.Equal(t, Operation{Method: "GET", Path: "/pets", Summary: "GET /pets", OperationID: "listPets"}, pets[0])
	assert.Equal(t, "Create a pet", pets[1].Summary)
	assert.Equal(t, "Get a pet", pets[2].Summary)
	assert.Equal(t, "Remove a pet", pets[3].Summary, "summary falls back to description")

	require.Len(t, spec.Groups[2].Operations, 1)
	assert.Equal(t, "Health check", spec.Groups[2].Operations[0].Summary)
}

func TestParseJSON(t *testing.T) {
	spec, err := Parse([]byte(`{"info":{"title":"J"},"paths":{"/a":{"get":{"tags":["X"]}}}}`))
	require.NoError(t, err)
	assert.Equal(t, "J", spec.Title)
	require.Len(t, spec.Groups, 1)
	assert.Equal(t, "X", spec.Groups[0].Tag)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("- just\n- a list\n"))
	require.ErrorIs(t, err, ErrNotMapping)

	_, err = Parse([]byte("paths: [\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "openapi.yaml")
	require.NoError(t, os.WriteFile(p, []byte(petstore), 0o600))
	spec, err := Load(p)
	require.NoError(t, err)
	assert.Len(t, spec.Groups, 3)
}

func TestNavigationAndSearch(t *testing.T) {
	spec, err := Parse([]byte(petstore))
	require.NoError(t, err)

	nav := Navigation("/api", spec)
	require.Len(t, nav, 3)
	assert.Equal(t, navigation.KindGroup, nav[0].Kind)
	assert.Equal(t, "pets", nav[0].Label)
	assert.Equal(t, "/api/pets/get-pets-id", nav[0].Children[2].Path)
	assert.Equal(t, "GET", nav[0].Children[2].Badge)
	assert.Equal(t, "/api/default/get-health", nav[2].Children[0].Path)

	entries := SearchEntries("/api", spec, config.Section{ID: "guide", Label: "Guide"})
	require.Len(t, entries, 6)
	assert.Equal(t, "GET /pets", entries[0].Description)
	assert.Equal(t, "pets listPets", entries[0].Content)
	assert.Equal(t, "guide", entries[0].SectionID)
}

func TestParseIsDeterministic(t *testing.T) {
	a, err := Parse([]byte(petstore))
	require.NoError(t, err)
	b, err := Parse([]byte(petstore))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
