package manifest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// BuildManifest is a record of one build's inputs, plan and outputs.
type BuildManifest struct {
	ID        string    `json:"id"`
	Generator string    `json:"generator"`
	Timestamp time.Time `json:"timestamp"`
	Inputs    Inputs    `json:"inputs"`
	Plan      Plan      `json:"plan"`
	Outputs   Outputs   `json:"outputs"`
	Status    string    `json:"status"`
	Duration  int64     `json:"duration_ms"`
}

// Inputs captures what the build read.
type Inputs struct {
	SiteName     string         `json:"site_name"`
	Fingerprint  string         `json:"fingerprint"`
	Sections     []SectionInput `json:"sections"`
	APIs         []string       `json:"apis,omitempty"`
	HasChangelog bool           `json:"has_changelog,omitempty"`
}

// SectionInput describes one section that took part in the build.
type SectionInput struct {
	ID        string `json:"id"`
	BasePath  string `json:"base_path"`
	Documents int    `json:"documents"`
	Draft     bool   `json:"draft,omitempty"`
}

// Plan captures how the build was executed.
type Plan struct {
	DiagramStrategy string   `json:"diagram_strategy"`
	Stages          []string `json:"stages"`
}

// Outputs captures what the build produced.
type Outputs struct {
	Routes         int               `json:"routes"`
	RenderedPages  int               `json:"rendered_pages"`
	FailedRoutes   []string          `json:"failed_routes,omitempty"`
	SearchEntries  int               `json:"search_entries"`
	Diagrams       int               `json:"diagrams,omitempty"`
	ArtifactHashes map[string]string `json:"artifact_hashes,omitempty"`
}

// ToJSON serializes the manifest to JSON.
func (m *BuildManifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*BuildManifest, error) {
	var m BuildManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Hash computes a deterministic hash of the manifest's inputs and plan.
// Two builds with equal hashes read the same content the same way.
func (m *BuildManifest) Hash() (string, error) {
	hashInput := struct {
		Inputs Inputs `json:"inputs"`
		Plan   Plan   `json:"plan"`
	}{Inputs: m.Inputs, Plan: m.Plan}

	data, err := json.Marshal(hashInput)
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// ArtifactHash is the sha256 hex digest of an output file's bytes.
func ArtifactHash(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}
