// Package httpapi implements the HTTP/WebSocket façade (C9): routing,
// JSON schema validation, request-id middleware, and the structured
// access log, all specified only at their interface to the pipeline
// core (spec §1).
package httpapi

import (
	"net/http"

	"github.com/combust-labs/smartmob-agent/pkg/logging"
	"github.com/combust-labs/smartmob-agent/pkg/pipeline"
	"github.com/combust-labs/smartmob-agent/pkg/registry"
	"github.com/combust-labs/smartmob-agent/pkg/workspace"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

const (
	routeIndex         = "index"
	routeListProcesses = "list-processes"
	routeCreateProcess = "create-process"
	routeProcessStatus = "process-status"
	routeDeleteProcess = "delete-process"
	routeAttachConsole = "attach-console"
)

// Server wires the registry, workspace and pipeline into routed HTTP
// handlers (spec §4.9).
type Server struct {
	Registry  *registry.Registry
	Workspace *workspace.Layout
	Pipeline  *pipeline.Pipeline
	Sink      logging.Sink
	Logger    hclog.Logger

	validate *validator.Validate
	upgrader websocket.Upgrader
	router   *mux.Router
}

// NewServer builds a Server and its routed handler.
func NewServer(reg *registry.Registry, ws *workspace.Layout, pl *pipeline.Pipeline, sink logging.Sink, logger hclog.Logger) *Server {
	s := &Server{
		Registry:  reg,
		Workspace: ws,
		Pipeline:  pl,
		Sink:      sink,
		Logger:    logger,
		validate:  validator.New(),
		upgrader:  websocket.Upgrader{},
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the fully wired http.Handler, middleware chain
// outermost-first: request-id, then access log (spec §4.9).
func (s *Server) Handler() http.Handler {
	return requestIDMiddleware(accessLogMiddleware(s.Sink)(s.router))
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet).Name(routeIndex)
	r.HandleFunc("/list-processes", s.handleListProcesses).Methods(http.MethodGet).Name(routeListProcesses)
	r.HandleFunc("/create-process", s.handleCreateProcess).Methods(http.MethodPost).Name(routeCreateProcess)
	r.HandleFunc("/process-status/{slug}", s.handleProcessStatus).Methods(http.MethodGet).Name(routeProcessStatus)
	r.HandleFunc("/delete-process/{slug}", s.handleDeleteProcess).Methods(http.MethodPost).Name(routeDeleteProcess)
	r.HandleFunc("/attach-console/{slug}", s.handleAttachConsole).Methods(http.MethodGet).Name(routeAttachConsole)
	return r
}
