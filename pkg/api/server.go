package api

import (
	"log/slog"
	"net/http"

	"github.com/fieldsafe/sentinel/pkg/audit"
	"github.com/fieldsafe/sentinel/pkg/auth"
	"github.com/fieldsafe/sentinel/pkg/ledger"
	"github.com/fieldsafe/sentinel/pkg/lifecycle"
	"github.com/fieldsafe/sentinel/pkg/sweep"
	"github.com/fieldsafe/sentinel/pkg/template"
	"github.com/fieldsafe/sentinel/pkg/tracker"
)

// Server bundles the engine components behind the HTTP API.
type Server struct {
	machine   *lifecycle.Machine
	ledger    *ledger.Ledger
	tracker   *tracker.Tracker
	templates *template.Registry
	overdue   sweep.Cache
	exporter  *audit.Exporter
	logger    *slog.Logger
}

// NewServer wires the API over the engine components. exporter may be nil;
// the audit export endpoint then returns 404.
func NewServer(
	machine *lifecycle.Machine,
	ldg *ledger.Ledger,
	trk *tracker.Tracker,
	templates *template.Registry,
	overdue sweep.Cache,
	exporter *audit.Exporter,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		machine:   machine,
		ledger:    ldg,
		tracker:   trk,
		templates: templates,
		overdue:   overdue,
		exporter:  exporter,
		logger:    logger.With("component", "api"),
	}
}

// Routes returns the API handler. Authentication, rate limiting, and request
// IDs are layered on by the caller; see Chain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleHealth)

	mux.HandleFunc("GET /api/v1/templates", s.handleListTemplates)
	mux.HandleFunc("GET /api/v1/templates/{id}", s.handleGetTemplate)

	mux.HandleFunc("POST /api/v1/inspections", s.handleStartInspection)
	mux.HandleFunc("GET /api/v1/inspections", s.handleListInspections)
	mux.HandleFunc("GET /api/v1/inspections/{id}", s.handleGetInspection)
	mux.HandleFunc("DELETE /api/v1/inspections/{id}", s.handleDeleteInspection)
	mux.HandleFunc("GET /api/v1/inspections/{id}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/v1/inspections/{id}/evaluation", s.handleEvaluation)
	mux.HandleFunc("POST /api/v1/inspections/{id}/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/v1/inspections/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/v1/inspections/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /api/v1/inspections/{id}/notes", s.handleInspectionNote)
	mux.HandleFunc("GET /api/v1/inspections/{id}/rejections", s.handleRejectionEntries)

	mux.HandleFunc("GET /api/v1/inspections/{id}/responses", s.handleListResponses)
	mux.HandleFunc("PUT /api/v1/inspections/{id}/items/{itemID}/response", s.handleUpsertResponse)
	mux.HandleFunc("POST /api/v1/inspections/{id}/items/{itemID}/actions", s.handleCreateAction)

	mux.HandleFunc("GET /api/v1/inspections/{id}/actions", s.handleListInspectionActions)
	mux.HandleFunc("GET /api/v1/actions/overdue", s.handleOverdueActions)
	mux.HandleFunc("GET /api/v1/actions/open-by-item/{itemID}", s.handleOpenActionsByItem)
	mux.HandleFunc("GET /api/v1/actions/{id}", s.handleGetAction)
	mux.HandleFunc("POST /api/v1/actions/{id}/start", s.handleStartAction)
	mux.HandleFunc("POST /api/v1/actions/{id}/close", s.handleCloseAction)
	mux.HandleFunc("POST /api/v1/actions/{id}/reopen", s.handleReopenAction)
	mux.HandleFunc("POST /api/v1/actions/{id}/reassign", s.handleReassignAction)
	mux.HandleFunc("POST /api/v1/actions/{id}/notes", s.handleActionNote)

	mux.HandleFunc("GET /api/v1/audit/export", s.handleAuditExport)

	return mux
}

// Chain layers the standard middleware around the API handler: request IDs,
// CORS, authentication, per-actor rate limiting, and idempotent replay.
func (s *Server) Chain(verifier *auth.Verifier, limiter *auth.RateLimiter, idem IdempotencyStorer, allowedOrigins []string) http.Handler {
	h := s.Routes()
	if idem != nil {
		h = IdempotencyMiddleware(idem)(h)
	}
	h = auth.RateLimitMiddleware(limiter)(h)
	h = auth.NewMiddleware(verifier)(h)
	h = auth.CORSMiddleware(allowedOrigins)(h)
	h = auth.RequestIDMiddleware(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
