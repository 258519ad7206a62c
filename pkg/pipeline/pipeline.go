// Package pipeline implements the lifecycle pipeline and state machine
// (C7) — the agent's core. One goroutine per record drives C2
// (fetcher) through C6 (supervisor), writing the post-phase state
// before beginning each phase exactly as spec §4.7 prescribes, and
// leaving the record in its terminal state for HTTP readers to observe
// regardless of whether the task itself ends in success or failure.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/combust-labs/smartmob-agent/pkg/archive"
	"github.com/combust-labs/smartmob-agent/pkg/envprovision"
	"github.com/combust-labs/smartmob-agent/pkg/fetcher"
	"github.com/combust-labs/smartmob-agent/pkg/manifest"
	"github.com/combust-labs/smartmob-agent/pkg/record"
	"github.com/combust-labs/smartmob-agent/pkg/supervisor"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/semaphore"
)

// Deps collects the collaborators a Pipeline drives a record through.
// They are constructed once at bootstrap and shared across every
// record's pipeline goroutine (spec §5: "a single HTTP client is
// shared for fetches").
type Deps struct {
	Fetcher     *fetcher.Fetcher
	Provisioner *envprovision.Provisioner
	Supervisor  *supervisor.Supervisor
	Accept      fetcher.AcceptPredicate

	// ExtractSem bounds how many archive extractions (C3, CPU/blocking
	// per spec §4.3) run concurrently, so a burst of CREATEs can't
	// starve the machine. A nil semaphore means unbounded.
	ExtractSem *semaphore.Weighted

	Logger hclog.Logger
}

// Pipeline drives one record through C2-C6 per the state machine of
// spec §4.7.
type Pipeline struct {
	deps Deps
}

// New returns a Pipeline using deps.
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = hclog.NewNullLogger()
	}
	return &Pipeline{deps: deps}
}

// Spawn starts the pipeline task for r as a goroutine, stores the
// resulting PipelineHandle on r, and returns it. The task runs under a
// context derived from parent; DELETE cancels that context (via the
// handle's Cancel) to ask earlier, otherwise uncancellable phases to
// abandon their current blocking call.
func (p *Pipeline) Spawn(parent context.Context, r *record.Record) *record.PipelineHandle {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	handle := &record.PipelineHandle{Cancel: cancel, Done: done}
	r.Pipeline = handle

	go func() {
		defer close(done)
		defer cancel()
		p.run(ctx, r)
	}()

	return handle
}

// run sequences C2->C3->C4->C5->C6 for r, exactly per the state table
// in spec §4.7.
func (p *Pipeline) run(ctx context.Context, r *record.Record) {
	logger := p.deps.Logger.With("slug", r.Slug)

	contentType, err := p.download(ctx, r, logger)
	if err != nil {
		return
	}

	if err := p.unpack(ctx, r, contentType, logger); err != nil {
		return
	}

	entry, ok := p.process(r, logger)
	if !ok {
		return
	}

	if err := p.provision(ctx, r, logger); err != nil {
		return
	}

	p.runSupervised(ctx, r, entry, logger)
}

// download runs C2. On success it leaves state "downloading" in place
// for unpack to advance from; on failure it sets the terminal state
// itself per the propagation policy.
func (p *Pipeline) download(ctx context.Context, r *record.Record, logger hclog.Logger) (string, error) {
	r.SetState(record.StateDownloading)
	accept := p.deps.Accept
	if accept == nil {
		accept = fetcher.DefaultAccept
	}
	contentType, err := p.deps.Fetcher.Fetch(ctx, r.SourceURL, r.ArchivePath(), accept)
	if err != nil {
		logger.Warn("download failed", "reason", err)
		r.SetState(record.StateDownloadFailure)
		return "", err
	}
	return contentType, nil
}

// unpack runs C3 on the pipeline's own goroutine (never a request
// handler's), bounded by ExtractSem, so a burst of extractions can't
// monopolize the machine (spec §4.3, §5).
// There is no distinct failure state for this phase (open question,
// §9): an extractor error is currently fatal to the task but leaves the
// record's state at "unpacking".
func (p *Pipeline) unpack(ctx context.Context, r *record.Record, contentType string, logger hclog.Logger) error {
	r.SetState(record.StateUnpacking)

	format, err := formatFromContentType(contentType)
	if err != nil {
		logger.Warn("unpack failed", "reason", err)
		return err
	}

	if p.deps.ExtractSem != nil {
		if err := p.deps.ExtractSem.Acquire(ctx, 1); err != nil {
			logger.Warn("unpack aborted waiting for worker pool", "reason", err)
			return err
		}
		defer p.deps.ExtractSem.Release(1)
	}

	if err := os.MkdirAll(r.SourcePath(), 0755); err != nil {
		logger.Warn("unpack failed creating source directory", "reason", err)
		return err
	}
	if err := archive.Unpack(format, r.ArchivePath(), r.SourcePath()); err != nil {
		logger.Warn("unpack failed", "reason", err)
		return err
	}
	return nil
}

// process runs C4: load the manifest and look up the requested process
// type. Both failure modes here are non-errors per spec §4.7 — the
// task returns normally, leaving the record in its terminal state.
func (p *Pipeline) process(r *record.Record, logger hclog.Logger) (manifest.ProcessType, bool) {
	r.SetState(record.StateProcessing)

	m, err := manifest.Load(r.SourcePath())
	if err != nil {
		logger.Info("no procfile", "reason", err)
		r.SetState(record.StateNoProcfile)
		return manifest.ProcessType{}, false
	}

	entry, err := m.Lookup(r.ProcessType)
	if err != nil {
		logger.Info("unknown process type", "process_type", r.ProcessType)
		r.SetState(record.StateUnknownProcessType)
		return manifest.ProcessType{}, false
	}

	return entry, true
}

// provision runs C5's two steps in sequence.
func (p *Pipeline) provision(ctx context.Context, r *record.Record, logger hclog.Logger) error {
	if _, err := p.deps.Provisioner.CreateEnv(ctx, r.EnvPath()); err != nil {
		logger.Warn("environment creation failed", "reason", err)
		r.SetState(record.StateVirtualEnvironmentFailure)
		return err
	}

	if _, err := p.deps.Provisioner.InstallDeps(ctx, r.EnvPath(), r.SourcePath()); err != nil {
		logger.Warn("dependency install failed", "reason", err)
		r.SetState(record.StatePipInstallFailure)
		return err
	}

	return nil
}

// runSupervised runs C6 until the record's stop signal fires, then
// marks the record stopped. The stop signal, not ctx, is the contract
// C6 observes (spec §4.6); ctx is still threaded through, so the
// handle's Cancel (called by DELETE) also kills the current child.
func (p *Pipeline) runSupervised(ctx context.Context, r *record.Record, entry manifest.ProcessType, logger hclog.Logger) {
	r.SetState(record.StateRunning)

	argv := []string{"/bin/sh", "-c", entry.Command}
	env := mergeEnv(entry.Env, r.Env)

	if err := p.deps.Supervisor.RunAndRespawn(ctx, r.Slug, argv, env, r.SourcePath(), r.StopSignal()); err != nil {
		logger.Warn("supervised run ended with error", "reason", err)
	}
	r.SetState(record.StateStopped)
}

// formatFromContentType maps the fetcher's allowed content types to an
// extractor format (spec §4.2's default accept predicate and §4.3's
// format enum agree on exactly these two).
func formatFromContentType(contentType string) (archive.Format, error) {
	switch contentType {
	case "application/zip":
		return archive.Zip, nil
	case "application/x-gtar":
		return archive.Tar, nil
	default:
		return "", fmt.Errorf("unsupported content type %q for archive extraction", contentType)
	}
}

// mergeEnv overlays override onto base (spec §3: "env... overlaid onto
// the process-type environment when the process runs"), rendering the
// result as NAME=VALUE pairs plus the current process environment, the
// way os/exec.Cmd.Env expects.
func mergeEnv(base, override map[string]string) []string {
	merged := map[string]string{}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	out := os.Environ()
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}
