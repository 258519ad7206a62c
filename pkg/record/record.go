// Package record defines the agent's central entity, ProcessRecord, and
// its state machine (spec §3, §4.7).
package record

import (
	"sync"

	"github.com/combust-labs/smartmob-agent/pkg/workspace"
)

// State is the closed set of states a ProcessRecord can occupy. It is a
// named string type rather than a bare string (design note: "Untyped
// process record -> a tagged record"), with every valid state declared
// as a constant below; an untyped string constant still converts to it
// implicitly.
type State string

// The happy path, in order, plus its terminal failure/non-error states.
const (
	StatePending                   State = "pending"
	StateDownloading               State = "downloading"
	StateDownloadFailure           State = "download failure"
	StateUnpacking                 State = "unpacking"
	StateProcessing                State = "processing"
	StateNoProcfile                State = "no procfile"
	StateUnknownProcessType        State = "unknown process type"
	StateVirtualEnvironmentFailure State = "virtual environment failure"
	StatePipInstallFailure         State = "pip install failure"
	StateRunning                   State = "running"
	StateStopped                   State = "stopped"
)

// Terminal reports whether the state is one the pipeline will never
// leave: either StateStopped, written once DELETE ends the supervised
// run, or one of the failure/non-error terminal states of §4.7.
// StateRunning is not terminal.
func (s State) Terminal() bool {
	switch s {
	case StateDownloadFailure, StateNoProcfile, StateUnknownProcessType,
		StateVirtualEnvironmentFailure, StatePipInstallFailure, StateStopped:
		return true
	default:
		return false
	}
}

// PipelineHandle is the opaque reference to a running pipeline task
// (spec §3). DELETE cancels it and waits for Done to close.
type PipelineHandle struct {
	Cancel func()
	Done   chan struct{}
}

// Record is the central entity: everything known about one supervised
// process. All fields set at creation are immutable; State is guarded by
// a mutex because it's written by the owning pipeline goroutine and read
// concurrently by HTTP handlers (spec invariant 2 and 3).
type Record struct {
	Slug        string
	App         string
	Node        string
	SourceURL   string
	ProcessType string
	Env         map[string]string

	WorkspaceRoot string

	Pipeline *PipelineHandle

	mu         sync.RWMutex
	state      State
	stopOnce   sync.Once
	stopSignal chan struct{}
}

// New returns a new Record in StatePending with a fresh, unfired stop
// signal. Slug is derived deterministically from app and node.
func New(app, node, sourceURL, processType string, env map[string]string, workspaceRoot string) *Record {
	return &Record{
		Slug:          Slug(app, node),
		App:           app,
		Node:          node,
		SourceURL:     sourceURL,
		ProcessType:   processType,
		Env:           env,
		WorkspaceRoot: workspaceRoot,
		state:         StatePending,
		stopSignal:    make(chan struct{}),
	}
}

// Slug derives the unique registry key for an app/node pair.
func Slug(app, node string) string {
	return app + "." + node
}

// State returns the current state.
func (r *Record) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// SetState transitions the record to a new state. Only the owning
// pipeline goroutine may call this (spec invariant 2).
func (r *Record) SetState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// StopSignal returns the channel that is closed when Stop is called. It
// never fires twice, and firing it before anyone observes it is safe:
// closed channels are instantly, repeatedly readable (spec invariant 4).
func (r *Record) StopSignal() <-chan struct{} {
	return r.stopSignal
}

// Stop fires the stop signal. Safe to call more than once or
// concurrently; only the first call has effect.
func (r *Record) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopSignal)
	})
}

// ArchivePath is where the fetcher (C2) writes the raw archive.
func (r *Record) ArchivePath() string {
	return workspace.New(r.WorkspaceRoot).ArchivePath(r.Slug)
}

// SourcePath is where the extractor (C3) unpacks the archive.
func (r *Record) SourcePath() string {
	return workspace.New(r.WorkspaceRoot).SourcePath(r.Slug)
}

// EnvPath is where the provisioner (C5) creates the isolated runtime.
func (r *Record) EnvPath() string {
	return workspace.New(r.WorkspaceRoot).EnvPath(r.Slug)
}
