// Package monitor serves the HTTP interface: a status page, snapshot and
// analysis JSON endpoints, a websocket snapshot push, and chart renderings
// of the detection log.
package monitor

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/skyward-data/groundtrack/internal/analysis"
	"github.com/skyward-data/groundtrack/internal/decision"
	"github.com/skyward-data/groundtrack/internal/detlog"
	"github.com/skyward-data/groundtrack/internal/pipeline"
	"github.com/skyward-data/groundtrack/internal/track"
	"github.com/skyward-data/groundtrack/internal/version"
)

//go:embed status.html
var statusHTML embed.FS

// WebServer handles the HTTP monitoring interface for a pipeline run.
type WebServer struct {
	address   string
	pipe      *pipeline.Coordinator
	worker    *analysis.Worker
	detlog    *detlog.Store
	interp    *decision.Interpreter
	source    string
	startedAt time.Time
	hub       *snapshotHub
	server    *http.Server
}

// WebServerConfig contains configuration options for the web server.
// Worker, Log, and Interp are optional and disable their endpoints when
// nil.
type WebServerConfig struct {
	Address  string
	Pipeline *pipeline.Coordinator
	Worker   *analysis.Worker
	Log      *detlog.Store
	Interp   *decision.Interpreter
	Source   string
}

// NewWebServer creates a web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:   config.Address,
		pipe:      config.Pipeline,
		worker:    config.Worker,
		detlog:    config.Log,
		interp:    config.Interp,
		source:    config.Source,
		startedAt: time.Now(),
		hub:       newSnapshotHub(),
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

// Broadcast pushes a snapshot to all connected websocket clients without
// blocking; the pipeline's Publish hook points here.
func (ws *WebServer) Broadcast(snap track.Snapshot) {
	ws.hub.Broadcast(snap)
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start begins the HTTP server in a goroutine and blocks until the
// context ends, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")
	ws.hub.closeAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/snapshot", ws.handleSnapshot)
	mux.HandleFunc("/api/analysis", ws.handleAnalysis)
	mux.HandleFunc("/ws", ws.handleWS)
	mux.HandleFunc("/charts/targets", ws.handleTargetsChart)
	mux.HandleFunc("/charts/distance", ws.handleDistanceChart)
	mux.HandleFunc("/charts/trails.png", ws.handleTrailsPNG)

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "groundtrack", "version": "%s", "timestamp": "%s"}`,
		version.Version, time.Now().UTC().Format(time.RFC3339))
}

// handleStatus handles the main status page endpoint
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	tmpl, err := template.ParseFS(statusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	controlStatus := "disabled"
	if ws.interp != nil && ws.interp.Enabled() {
		controlStatus = "enabled"
	}

	analysisText := "no analysis yet"
	analysisAt := ""
	if ws.worker != nil {
		if res, ok := ws.worker.Latest(); ok {
			analysisText = res.Text
			analysisAt = res.At.Format(time.RFC3339)
		}
	}

	var tracked, confirmed int
	var frame int64
	if snap, ok := ws.pipe.Latest(); ok {
		frame = snap.Frame
		tracked = len(snap.Tracks)
		confirmed = len(snap.Confirmed())
	}

	runID := ""
	if ws.detlog != nil {
		runID = ws.detlog.RunID()
	}

	data := struct {
		HTTPAddress     string
		Source          string
		RunID           string
		Uptime          string
		FramesProcessed int64
		CurrentFrame    int64
		TrackedTargets  int
		ConfirmedCount  int
		ControlStatus   string
		AnalysisText    string
		AnalysisAt      string
	}{
		HTTPAddress:     ws.address,
		Source:          ws.source,
		RunID:           runID,
		Uptime:          time.Since(ws.startedAt).Round(time.Second).String(),
		FramesProcessed: ws.pipe.FramesProcessed(),
		CurrentFrame:    frame,
		TrackedTargets:  tracked,
		ConfirmedCount:  confirmed,
		ControlStatus:   controlStatus,
		AnalysisText:    analysisText,
		AnalysisAt:      analysisAt,
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}
