package record

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugDerivation(t *testing.T) {
	assert.Equal(t, "foo.web.0", Slug("foo", "web.0"))
}

func TestNewRecordStartsPending(t *testing.T) {
	r := New("foo", "web.0", "http://host/archive.zip", "web", nil, "/tmp/.smartmob")
	assert.Equal(t, StatePending, r.State())
	assert.Equal(t, "foo.web.0", r.Slug)
}

func TestDerivedPaths(t *testing.T) {
	r := New("foo", "web.0", "http://host/archive.zip", "web", nil, "/tmp/.smartmob")
	assert.Equal(t, "/tmp/.smartmob/archives/foo.web.0", r.ArchivePath())
	assert.Equal(t, "/tmp/.smartmob/sources/foo.web.0", r.SourcePath())
	assert.Equal(t, "/tmp/.smartmob/envs/foo.web.0", r.EnvPath())
}

func TestStopSignalFiresOnce(t *testing.T) {
	r := New("foo", "web.0", "", "web", nil, "/tmp")

	select {
	case <-r.StopSignal():
		t.Fatal("stop signal must not be fired yet")
	default:
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Stop()
		}()
	}
	wg.Wait()

	select {
	case <-r.StopSignal():
	default:
		t.Fatal("stop signal must be fired")
	}
}

func TestStateIsConcurrencySafe(t *testing.T) {
	r := New("foo", "web.0", "", "web", nil, "/tmp")
	var wg sync.WaitGroup
	states := []State{StateDownloading, StateUnpacking, StateProcessing, StateRunning}
	for _, s := range states {
		wg.Add(1)
		go func(s State) {
			defer wg.Done()
			r.SetState(s)
		}(s)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.State()
		}()
	}
	wg.Wait()
}

func TestTerminalStates(t *testing.T) {
	terminal := []State{StateDownloadFailure, StateNoProcfile, StateUnknownProcessType,
		StateVirtualEnvironmentFailure, StatePipInstallFailure, StateStopped}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	nonTerminal := []State{StatePending, StateDownloading, StateUnpacking, StateProcessing, StateRunning}
	for _, s := range nonTerminal {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}
