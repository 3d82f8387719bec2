// Command groundtrack runs the detection-to-decision pipeline over a
// recorded detection stream: tracking, range estimation, scene analysis
// via an external language model, and optional vehicle control, with an
// HTTP monitoring interface.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/skyward-data/groundtrack/internal/analysis"
	"github.com/skyward-data/groundtrack/internal/config"
	"github.com/skyward-data/groundtrack/internal/decision"
	"github.com/skyward-data/groundtrack/internal/detlog"
	"github.com/skyward-data/groundtrack/internal/geom"
	"github.com/skyward-data/groundtrack/internal/monitor"
	"github.com/skyward-data/groundtrack/internal/pipeline"
	"github.com/skyward-data/groundtrack/internal/track"
	"github.com/skyward-data/groundtrack/internal/vehicle"
	"github.com/skyward-data/groundtrack/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to tuning config (.json or .yaml); defaults apply when empty")
	detections    = flag.String("detections", "", "Path to JSONL detection recording to replay (required)")
	dbPath        = flag.String("db", "groundtrack.db", "Path to the detection log database")
	listen        = flag.String("listen", ":8080", "Listen address for the monitoring interface")
	enableControl = flag.Bool("enable-control", false, "Dispatch parsed commands to the vehicle")
	analysisURL   = flag.String("analysis", "", "Chat-completions endpoint URL; empty disables scene analysis")
	analysisModel = flag.String("analysis-model", "deepseek-chat", "Model name for scene analysis")
)

func main() {
	flag.Parse()
	log.Printf("groundtrack %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	if *detections == "" {
		log.Fatal("a detection recording is required (-detections)")
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := &config.TuningConfig{}
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	replay, err := pipeline.OpenReplay(*detections)
	if err != nil {
		log.Fatalf("failed to open detection recording: %v", err)
	}
	defer replay.Close()

	dlog, err := detlog.Open(*dbPath, *detections, time.Now().UnixNano(), cfg.GetFlushEveryFrames())
	if err != nil {
		log.Fatalf("failed to open detection log: %v", err)
	}

	store := track.NewStore(track.StoreConfigFromTuning(cfg))
	assoc := track.NewAssociator(store, track.AssociatorConfigFromTuning(cfg))
	estimator := geom.NewDistanceEstimator(geom.DistanceEstimatorConfig{
		ReferenceHeights:       cfg.GetReferenceHeights(),
		DefaultReferenceHeight: cfg.GetDefaultReferenceHeight(),
		FocalLengthPixels:      cfg.GetFocalLengthPixels(),
		MaxPlausibleDistance:   cfg.GetMaxPlausibleDistance(),
	})

	var worker *analysis.Worker
	if *analysisURL != "" {
		client := analysis.NewClient(analysis.ClientConfig{
			Endpoint: *analysisURL,
			APIKey:   os.Getenv("DEEPSEEK_API_KEY"),
			Model:    *analysisModel,
		})
		worker = analysis.NewWorker(client, cfg.GetAnalysisTimeout())
	} else {
		log.Printf("scene analysis disabled (no -analysis endpoint)")
	}

	bounds := decision.AltitudeBoundsFromTuning(cfg)
	parser := decision.NewParser(bounds)
	sim := vehicle.NewSim(0, 0, bounds.Min)
	controlEnabled := *enableControl || cfg.GetControlEnabled()
	interp := decision.NewInterpreter(sim, bounds, controlEnabled)

	// The web server and the pipeline reference each other: the server
	// reads pipeline state, the pipeline pushes snapshots to the server's
	// websocket hub. The hub reference is bound late, before Run starts.
	var web *monitor.WebServer
	coord, err := pipeline.NewCoordinator(pipeline.Deps{
		Source:             replay,
		Detector:           replay,
		Estimator:          estimator,
		Associator:         assoc,
		Store:              store,
		Summarizer:         &analysis.Summarizer{MovingSpeedPx: cfg.GetMovingSpeedPx()},
		Worker:             worker,
		Parser:             parser,
		Interp:             interp,
		Log:                dlog,
		AnalyzeEveryFrames: cfg.GetAnalyzeEveryFrames(),
		Publish:            func(snap track.Snapshot) { web.Broadcast(snap) },
	})
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	web = monitor.NewWebServer(monitor.WebServerConfig{
		Address:  *listen,
		Pipeline: coord,
		Worker:   worker,
		Log:      dlog,
		Interp:   interp,
		Source:   *detections,
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := web.Start(ctx); err != nil {
			log.Printf("web server error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := coord.Run(ctx); err != nil {
			log.Printf("pipeline error: %v", err)
		}
		// A finished playback ends the process; shut the web server down
		// with it.
		stop()
	}()

	wg.Wait()

	if err := dlog.Close(time.Now().UnixNano()); err != nil {
		log.Printf("failed to close detection log: %v", err)
	}
	log.Printf("shutdown complete")
}
