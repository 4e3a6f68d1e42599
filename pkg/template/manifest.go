// Package template loads checklist template manifests and serves read-only
// template snapshots to the rest of the engine.
//
// Manifests are YAML or JSON documents validated against an embedded JSON
// Schema before being converted to contracts.Template. All human-visible
// text (names, titles, prompts) is normalized to Unicode NFC so that
// equality checks and audit hashes are stable across input sources.
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/fault"
)

// schemaVersionConstraint pins the manifest format generation this build
// understands. Minor bumps are additive; a 2.x manifest is rejected.
var schemaVersionConstraint = semver.MustParse("2.0.0")

// Manifest is the on-disk template document.
type Manifest struct {
	SchemaVersion string           `json:"schema_version" yaml:"schema_version"`
	Template      ManifestTemplate `json:"template" yaml:"template"`
}

type ManifestTemplate struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string            `json:"version" yaml:"version"`
	Sections    []ManifestSection `json:"sections" yaml:"sections"`
}

type ManifestSection struct {
	ID    string         `json:"id" yaml:"id"`
	Title string         `json:"title" yaml:"title"`
	Items []ManifestItem `json:"items" yaml:"items"`
}

type ManifestItem struct {
	ID                     string `json:"id" yaml:"id"`
	Prompt                 string `json:"prompt" yaml:"prompt"`
	Required               bool   `json:"required" yaml:"required"`
	EvidenceRequiredOnFail bool   `json:"evidence_required_on_fail" yaml:"evidence_required_on_fail"`
}

// LoadFile parses and validates a manifest file, inferring the format from
// the extension (.yaml/.yml vs .json).
func LoadFile(path string, now func() time.Time) (*contracts.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template manifest: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(raw, now)
	case ".json":
		return ParseJSON(raw, now)
	default:
		return nil, fault.New(fault.InvalidArgument, "unsupported manifest extension %q", filepath.Ext(path))
	}
}

// ParseYAML validates and converts a YAML manifest.
func ParseYAML(raw []byte, now func() time.Time) (*contracts.Template, error) {
	// Round-trip through JSON so schema validation sees the same document
	// shape regardless of source format.
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fault.New(fault.InvalidArgument, "manifest is not valid YAML: %v", err)
	}
	jsonRaw, err := json.Marshal(doc)
	if err != nil {
		return nil, fault.New(fault.InvalidArgument, "manifest cannot be represented as JSON: %v", err)
	}
	return ParseJSON(jsonRaw, now)
}

// ParseJSON validates and converts a JSON manifest.
func ParseJSON(raw []byte, now func() time.Time) (*contracts.Template, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fault.New(fault.InvalidArgument, "manifest is not valid JSON: %v", err)
	}
	if err := manifestSchema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if ok := asValidationError(err, &ve); ok {
			return nil, fault.New(fault.InvalidArgument, "manifest schema violation at %s", firstCause(ve))
		}
		return nil, fault.New(fault.InvalidArgument, "manifest schema violation: %v", err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fault.New(fault.InvalidArgument, "decode manifest: %v", err)
	}
	if err := checkSchemaVersion(m.SchemaVersion); err != nil {
		return nil, err
	}
	return m.toTemplate(now())
}

func checkSchemaVersion(v string) error {
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fault.New(fault.InvalidArgument, "manifest schema_version %q is not semver: %v", v, err)
	}
	if !ver.LessThan(schemaVersionConstraint) {
		return fault.New(fault.InvalidArgument,
			"manifest schema_version %s not supported (requires < %s)", v, schemaVersionConstraint)
	}
	return nil
}

func (m *Manifest) toTemplate(createdAt time.Time) (*contracts.Template, error) {
	tpl := &contracts.Template{
		ID:          m.Template.ID,
		Name:        nfc(m.Template.Name),
		Description: nfc(m.Template.Description),
		Version:     m.Template.Version,
		CreatedAt:   createdAt.UTC(),
	}
	seen := make(map[string]bool)
	for _, ms := range m.Template.Sections {
		sec := contracts.TemplateSection{ID: ms.ID, Title: nfc(ms.Title)}
		for _, mi := range ms.Items {
			if seen[mi.ID] {
				return nil, fault.New(fault.InvalidArgument, "duplicate template item id %q", mi.ID)
			}
			seen[mi.ID] = true
			sec.Items = append(sec.Items, contracts.TemplateItem{
				ID:                     mi.ID,
				Prompt:                 nfc(mi.Prompt),
				Required:               mi.Required,
				EvidenceRequiredOnFail: mi.EvidenceRequiredOnFail,
			})
		}
		tpl.Sections = append(tpl.Sections, sec)
	}
	if len(tpl.FlatItems()) == 0 {
		return nil, fault.New(fault.InvalidArgument, "template %q has no items", tpl.ID)
	}
	return tpl, nil
}

func nfc(s string) string {
	return norm.NFC.String(s)
}
