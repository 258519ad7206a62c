package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/combust-labs/smartmob-agent/pkg/record"
	"github.com/combust-labs/smartmob-agent/pkg/registry"
	"github.com/combust-labs/smartmob-agent/pkg/utils"
	"github.com/gorilla/mux"
)

// createRequest is the CREATE body's schema (spec §4.9, §6). Validation
// failures surface as 400 via go-playground/validator, matching the
// spec's "schema violation -> 400" contract.
type createRequest struct {
	App         string            `json:"app" validate:"required"`
	Node        string            `json:"node" validate:"required"`
	SourceURL   string            `json:"source_url" validate:"required"`
	ProcessType string            `json:"process_type" validate:"required"`
	Env         map[string]string `json:"env"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	doc, err := discoveryDoc(r, s.router)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	records := s.Registry.List()
	// Always a non-null slice (spec §6 supplement): an empty registry
	// renders as {"processes": []}, never {"processes": null}.
	details := make([]processDetail, 0, len(records))
	for _, rec := range records {
		detail, err := detailOf(r, s.router, rec)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		details = append(details, detail)
	}
	writeJSON(w, http.StatusOK, processListing{Processes: details})
}

func (s *Server) handleCreateProcess(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !utils.IsValidSlugToken(req.App) || !utils.IsValidSlugToken(req.Node) {
		writeError(w, http.StatusBadRequest, "app and node must be valid slug tokens")
		return
	}

	rec := record.New(req.App, req.Node, req.SourceURL, req.ProcessType, req.Env, s.Workspace.Root)
	if err := s.Registry.Insert(rec); err != nil {
		if _, ok := err.(*registry.ErrDuplicateSlug); ok {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.Pipeline.Spawn(context.Background(), rec)

	s.Sink.Info("process.create", "app", rec.App, "node", rec.Node, "slug", rec.Slug)

	detail, err := detailOf(r, s.router, rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Location", detail.Details)
	writeJSON(w, http.StatusCreated, detail)
}

func (s *Server) handleProcessStatus(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	rec, found := s.Registry.Get(slug)
	if !found {
		writeError(w, http.StatusNotFound, "unknown process "+slug)
		return
	}
	detail, err := detailOf(r, s.router, rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleDeleteProcess fires the stop signal, cancels the pipeline
// context, awaits task completion, and removes the record. It always
// returns 200 once the slug was known, even if the pipeline task ended
// in failure (spec §4.7 tie-break policy).
func (s *Server) handleDeleteProcess(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	rec, found := s.Registry.Get(slug)
	if !found {
		writeError(w, http.StatusNotFound, "unknown process "+slug)
		return
	}

	rec.Stop()
	if handle := rec.Pipeline; handle != nil {
		handle.Cancel()
		<-handle.Done
	}
	s.Registry.Delete(slug)

	writeJSON(w, http.StatusOK, map[string]string{})
}

// handleAttachConsole upgrades to a WebSocket and immediately closes,
// per spec's non-goal: "the attach endpoint exists but currently closes
// immediately after handshake".
func (s *Server) handleAttachConsole(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	if _, found := s.Registry.Get(slug); !found {
		writeError(w, http.StatusNotFound, "unknown process "+slug)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Sink.Info("process.attach", "slug", slug)
	_ = conn.Close()
}
