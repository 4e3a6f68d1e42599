package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyResource is returned when the export resource is empty.
	ErrEmptyResource = errors.New("audit: resource must not be empty")
	// ErrInvalidTimeRange is returned when start time is after end time.
	ErrInvalidTimeRange = errors.New("audit: start_time must be before end_time")
	// ErrTrailNotConfigured is returned when export is invoked without a trail.
	ErrTrailNotConfigured = errors.New("audit: trail not configured (fail-closed)")
)

// ExportRequest defines what to export: the trail for one resource (e.g.
// "inspection:insp-42") over an optional time window.
type ExportRequest struct {
	Resource  string    `json:"resource"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Exporter bundles audit events into verifiable evidence packs.
type Exporter struct {
	trail *Trail
}

func NewExporter(t *Trail) *Exporter {
	return &Exporter{trail: t}
}

// GeneratePack creates a zip containing the matching events and a manifest
// carrying the chain head, and returns the zip bytes plus their SHA-256.
func (e *Exporter) GeneratePack(_ context.Context, req ExportRequest) ([]byte, string, error) {
	if req.Resource == "" {
		return nil, "", ErrEmptyResource
	}
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && req.StartTime.After(req.EndTime) {
		return nil, "", ErrInvalidTimeRange
	}
	if e.trail == nil {
		return nil, "", ErrTrailNotConfigured
	}

	filter := QueryFilter{Resource: req.Resource}
	if !req.StartTime.IsZero() {
		filter.StartTime = &req.StartTime
	}
	if !req.EndTime.IsZero() {
		filter.EndTime = &req.EndTime
	}
	events := e.trail.Query(filter)

	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, "", err
	}

	manifest := map[string]any{
		"resource":     req.Resource,
		"generated_at": time.Now().UTC(),
		"event_count":  len(events),
		"chain_head":   e.trail.ChainHead(),
		"period": map[string]any{
			"start": req.StartTime,
			"end":   req.EndTime,
		},
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: failed to marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	f, err := w.Create("events.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(eventsJSON)

	f, err = w.Create("manifest.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(manifestJSON)

	f, err = w.Create("README.txt")
	if err != nil {
		return nil, "", err
	}
	_, _ = fmt.Fprintf(f, "Audit trail export for %s\nGenerated at %s\n", req.Resource, time.Now().UTC())

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	zipBytes := buf.Bytes()
	hash := sha256.Sum256(zipBytes)
	return zipBytes, hex.EncodeToString(hash[:]), nil
}
