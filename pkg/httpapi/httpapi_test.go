package httpapi

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/combust-labs/smartmob-agent/pkg/envprovision"
	"github.com/combust-labs/smartmob-agent/pkg/fetcher"
	"github.com/combust-labs/smartmob-agent/pkg/pipeline"
	"github.com/combust-labs/smartmob-agent/pkg/record"
	"github.com/combust-labs/smartmob-agent/pkg/registry"
	"github.com/combust-labs/smartmob-agent/pkg/supervisor"
	"github.com/combust-labs/smartmob-agent/pkg/workspace"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink records every emitted event in memory for assertions.
type fakeSink struct {
	mu     sync.Mutex
	events []event
}

type event struct {
	name    string
	keyvals []interface{}
}

func (f *fakeSink) Info(name string, keyvals ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{name: name, keyvals: keyvals})
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) find(name string) []event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []event
	for _, e := range f.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

func writeZipArchive(t *testing.T, path, procfile string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	entry, err := w.Create("Procfile")
	require.NoError(t, err)
	_, err = entry.Write([]byte(procfile))
	require.NoError(t, err)

	entry, err = w.Create("requirements.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte(""))
	require.NoError(t, err)
}

func archiveServer(t *testing.T, procfile string) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "archive.zip")
	writeZipArchive(t, archivePath, procfile)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		http.ServeFile(w, r, archivePath)
	}))
}

func scriptTool(t *testing.T) envprovision.Tool {
	t.Helper()
	dir := t.TempDir()
	okScript := filepath.Join(dir, "ok")
	require.NoError(t, os.WriteFile(okScript, []byte("#!/bin/sh\nexit 0\n"), 0755))
	return envprovision.Tool{
		EnvBinary:     okScript,
		EnvArgs:       func(string) []string { return nil },
		InstallBinary: okScript,
		InstallArgs:   func(string, string) []string { return nil },
	}
}

func newTestServer(t *testing.T) (*Server, *fakeSink, *registry.Registry) {
	t.Helper()
	ws := workspace.New(t.TempDir())
	require.NoError(t, ws.Ensure())

	sink := &fakeSink{}
	logger := hclog.NewNullLogger()
	reg := registry.New(logger)
	pl := pipeline.New(pipeline.Deps{
		Fetcher:     fetcher.New(nil),
		Provisioner: envprovision.New(scriptTool(t)),
		Supervisor:  supervisor.New(logger),
		Logger:      logger,
	})

	s := NewServer(reg, ws, pl, sink, logger)
	return s, sink, reg
}

func TestIndexExposesListAndCreateLinks(t *testing.T) {
	s, _, _ := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var doc discoveryDocument
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc.List, "/list-processes")
	assert.Contains(t, doc.Create, "/create-process")
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestListProcessesIsEmptyArrayNotNull(t *testing.T) {
	s, _, _ := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/list-processes")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := readAll(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"processes": []}`, body)
}

func readAll(resp *http.Response) (string, error) {
	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(resp.Body)
	return buf.String(), err
}

func createBody(app, node, sourceURL, processType string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"app": app, "node": node, "source_url": sourceURL, "process_type": processType,
	})
	return body
}

func TestCreateProcessHappyPath(t *testing.T) {
	archive := archiveServer(t, "web: sh -c 'trap exit TERM; while true; do sleep 0.05; done'")
	defer archive.Close()

	s, sink, reg := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/create-process", "application/json",
		bytes.NewReader(createBody("foo", "web.0", archive.URL, "web")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var detail processDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, resp.Header.Get("Location"), detail.Details)
	assert.Equal(t, "foo.web.0", detail.Slug)

	_, found := reg.Get("foo.web.0")
	assert.True(t, found)

	require.Eventually(t, func() bool { return len(sink.find("process.create")) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCreateProcessDuplicateIsConflict(t *testing.T) {
	archive := archiveServer(t, "web: python dots.py")
	defer archive.Close()

	s, _, reg := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	body := createBody("foo", "web.0", archive.URL, "web")
	resp1, err := http.Post(server.URL+"/create-process", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp1.Body.Close()
	require.Equal(t, http.StatusCreated, resp1.StatusCode)

	resp2, err := http.Post(server.URL+"/create-process", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)

	assert.Len(t, reg.List(), 1)
}

func TestCreateProcessSchemaViolation(t *testing.T) {
	s, _, reg := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"node": "web.0", "source_url": "http://example.invalid/a.zip", "process_type": "web",
	})
	resp, err := http.Post(server.URL+"/create-process", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, reg.List())
}

func TestUnknownSlugIs404OnStatusDeleteAndAttach(t *testing.T) {
	s, _, _ := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/process-status/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(server.URL+"/delete-process/unknown", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/attach-console/unknown"
	_, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
}

func TestDeleteThenSubsequentAccessIs404(t *testing.T) {
	archive := archiveServer(t, "web: sh -c 'trap exit TERM; while true; do sleep 0.05; done'")
	defer archive.Close()

	s, _, reg := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/create-process", "application/json",
		bytes.NewReader(createBody("bar", "web.0", archive.URL, "web")))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Eventually(t, func() bool {
		rec, found := reg.Get("bar.web.0")
		return found && rec.State() == record.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	resp, err = http.Post(server.URL+"/delete-process/bar.web.0", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := readAll(resp)
	assert.JSONEq(t, `{}`, body)

	resp2, err := http.Get(server.URL + "/process-status/bar.web.0")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestAttachConsoleHandshakeThenClose(t *testing.T) {
	archive := archiveServer(t, "web: python dots.py")
	defer archive.Close()

	s, _, reg := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/create-process", "application/json",
		bytes.NewReader(createBody("baz", "web.0", archive.URL, "web")))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Eventually(t, func() bool { _, found := reg.Get("baz.web.0"); return found }, time.Second, 5*time.Millisecond)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/attach-console/baz.web.0"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestAccessLogEmittedExactlyOncePerRequest(t *testing.T) {
	s, sink, _ := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Len(t, sink.find("http.access"), 1)
}
