package api

import (
	"net/http"
	"time"

	"github.com/fieldsafe/sentinel/pkg/audit"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": s.templates.List()})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.Get(r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// handleAuditExport streams a verifiable audit evidence pack for one
// resource, e.g. ?resource=inspection:ins-42&start=2026-01-01T00:00:00Z.
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		WriteNotFound(w, "Audit export is not configured")
		return
	}

	resource := r.URL.Query().Get("resource")
	if resource == "" {
		WriteBadRequest(w, "Missing required query parameter: resource")
		return
	}

	var start, end time.Time
	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteBadRequest(w, "Invalid start time; use RFC 3339")
			return
		}
		start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteBadRequest(w, "Invalid end time; use RFC 3339")
			return
		}
		end = t
	}

	pack, checksum, err := s.exporter.GeneratePack(r.Context(), audit.ExportRequest{
		Resource:  resource,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="audit_pack.zip"`)
	w.Header().Set("X-Pack-Checksum", checksum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pack)
}
