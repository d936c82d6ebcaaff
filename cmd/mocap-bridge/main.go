// Command mocap-bridge polls a motion-capture server once per tick and
// publishes the latest 6DOF pose as a six-value output vector.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/mocap.bridge/internal/api"
	"github.com/banshee-data/mocap.bridge/internal/bridge"
	"github.com/banshee-data/mocap.bridge/internal/config"
	"github.com/banshee-data/mocap.bridge/internal/db"
	"github.com/banshee-data/mocap.bridge/internal/mocap"
	"github.com/banshee-data/mocap.bridge/internal/mocap/sim"
	"github.com/banshee-data/mocap.bridge/internal/monitor"
	"github.com/banshee-data/mocap.bridge/internal/monitoring"
	"github.com/banshee-data/mocap.bridge/internal/output"
	"github.com/banshee-data/mocap.bridge/internal/scheduler"
	"github.com/banshee-data/mocap.bridge/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a .json/.yaml bridge config (defaults apply when empty)")
	listen      = flag.String("listen", ":8080", "HTTP listen address (empty disables the API)")
	simMode     = flag.Bool("sim", false, "Use the built-in simulated capture server")
	simBodies   = flag.Int("sim-bodies", 3, "Number of simulated bodies")
	dbPath      = flag.String("db", "mocap_runs.db", "Run ledger sqlite path (empty disables the ledger)")
	forward     = flag.String("forward", "", "Forward each output as a UDP datagram to host:port")
	serialPort  = flag.String("serial", "", "Write each output as a CSV line to this serial device")
	zmqEndpoint = flag.String("zmq", "", "Publish each output on a ZeroMQ PUB socket bound here, e.g. tcp://*:5556")
	tick        = flag.Duration("tick", 10*time.Millisecond, "Tick interval")
	stopCapture = flag.String("stop-capture", "never", "When to send stop-capture: never, shutdown or every_tick")
	quietFrames = flag.Bool("quiet-frames", false, "Do not echo decoded frames to the log")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// applyFlags overrides cfg with the flags named in set. Flags left at
// their defaults do not override a config file.
func applyFlags(cfg *config.BridgeConfig, set map[string]bool) {
	if set["listen"] {
		cfg.Listen = listen
	}
	if set["db"] {
		cfg.DBPath = dbPath
	}
	if set["forward"] {
		cfg.ForwardAddress = forward
	}
	if set["serial"] {
		cfg.SerialPort = serialPort
	}
	if set["zmq"] {
		cfg.ZMQEndpoint = zmqEndpoint
	}
	if set["tick"] {
		s := tick.String()
		cfg.TickInterval = &s
	}
	if set["stop-capture"] {
		cfg.StopCapture = stopCapture
	}
	if set["quiet-frames"] {
		echo := !*quietFrames
		cfg.FrameEcho = &echo
	}
	if set["sim-bodies"] {
		if cfg.Sim == nil {
			cfg.Sim = &config.SimConfig{}
		}
		cfg.Sim.Bodies = simBodies
	}
}

func loadConfig() (*config.BridgeConfig, error) {
	cfg := config.EmptyBridgeConfig()
	if *configPath != "" {
		loaded, err := config.LoadBridgeConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(cfg, set)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newCapability returns the session the bridge will own. Only the
// simulated server is built in; a vendor client plugs in by implementing
// mocap.Capability.
func newCapability(cfg *config.BridgeConfig, useSim bool) (mocap.Capability, error) {
	if !useSim {
		return nil, errors.New("no live capture client is built into this binary; run with -sim or embed a mocap.Capability")
	}
	return sim.New(sim.Options{
		Bodies:          sim.DefaultBodies(cfg.GetSimBodies()),
		FrameRate:       cfg.GetSimFrameRate(),
		AssignUDPPort:   cfg.GetSimAssignUDPPort(),
		DecodeFailEvery: cfg.GetSimDecodeFailEvery(),
	}), nil
}

// runSummary builds the ledger row from the post-initialize snapshot and
// the final one. connected and streaming record what the session reached,
// since both are cleared by shutdown.
func runSummary(settled, s bridge.Snapshot, ended time.Time) db.RunSummary {
	return db.RunSummary{
		EndedAt:         ended,
		FinalState:      s.State.String(),
		Connected:       settled.Connected,
		Streaming:       settled.Streaming,
		UDPPort:         s.UDPPort,
		Ticks:           s.Counters.Ticks,
		Frames:          s.Counters.Frames,
		Bodies:          s.Counters.Bodies,
		DecodeSkips:     s.Counters.Failed(bridge.DecodeSkip),
		ReceiveFailures: s.Counters.Failed(bridge.ReceiveFailure),
	}
}

// buildSinks opens the optional transports. Sinks that fail to open are
// logged and skipped so the bridge still runs.
func buildSinks(ctx context.Context, cfg *config.BridgeConfig, drops output.DropCounter) output.Fanout {
	var sinks output.Fanout
	if addr := cfg.GetForwardAddress(); addr != "" {
		fwd, err := output.NewUDPForwarder(addr, drops, cfg.GetStatsInterval())
		if err != nil {
			monitoring.Logf("UDP forwarding disabled: %v", err)
		} else {
			fwd.Start(ctx)
			sinks = append(sinks, fwd)
		}
	}
	if path := cfg.GetSerialPort(); path != "" {
		sc := cfg.GetSerial()
		w, err := output.OpenSerialWriter(path, output.PortOptions{
			BaudRate: sc.BaudRate,
			DataBits: sc.DataBits,
			StopBits: sc.StopBits,
			Parity:   sc.Parity,
		}, drops)
		if err != nil {
			monitoring.Logf("serial output disabled: %v", err)
		} else {
			w.Start(ctx)
			sinks = append(sinks, w)
		}
	}
	if endpoint := cfg.GetZMQEndpoint(); endpoint != "" {
		pub, err := output.NewZMQPublisher(endpoint, output.DefaultTopic, drops)
		if err != nil {
			monitoring.Logf("ZeroMQ output disabled: %v", err)
		} else {
			sinks = append(sinks, pub)
		}
	}
	return sinks
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := run(cfg, *simMode); err != nil {
		log.Fatal(err)
	}
}

// run owns the bridge for one session. Setup failures are returned after
// everything opened so far has been released.
func run(cfg *config.BridgeConfig, useSim bool) error {
	capability, err := newCapability(cfg, useSim)
	if err != nil {
		return err
	}

	b, err := bridge.New(capability, cfg.BridgeOptions())
	if err != nil {
		capability.Close()
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	hub := monitoring.NewHub(log.Printf)
	monitoring.SetLogger(hub.Logf)
	defer monitoring.SetLogger(log.Printf)
	defer hub.Close()

	var ledger *db.DB
	var runID string
	if path := cfg.GetDBPath(); path != "" {
		ledger, err = db.NewDB(path)
		if err != nil {
			b.Shutdown()
			return fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer ledger.Close()

		mode := "live"
		if useSim {
			mode = "sim"
		}
		runID, err = ledger.StartRun(db.RunStart{
			Mode:          mode,
			ServerAddress: cfg.GetServerAddress(),
			UDPPort:       cfg.GetUDPPort(),
			StartedAt:     time.Now(),
		})
		if err != nil {
			monitoring.Logf("failed to record run start: %v", err)
		} else {
			monitoring.Logf("Run %s started", runID)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := monitor.NewTickStats(nil)
	latest := &output.Latest{}
	trace := output.NewTrace(cfg.GetTraceSize())
	transports := buildSinks(ctx, cfg, stats)
	sinks := append(output.Fanout{latest, trace}, transports...)

	var wg sync.WaitGroup

	// Scheduler goroutine: owns the bridge until ctx is cancelled.
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner := &scheduler.Runner{
			Bridge:        b,
			Sink:          sinks,
			Stats:         stats,
			Interval:      cfg.GetTickInterval(),
			StatsInterval: cfg.GetStatsInterval(),
		}
		last := runner.Run(ctx)
		if err := transports.Close(); err != nil {
			monitoring.Logf("output close error: %v", err)
		}
		monitoring.Logf("Bridge stopped after %d ticks (%d frames, state %s)", last.Tick, last.Counters.Frames, last.State)

		if ledger != nil && runID != "" {
			if err := ledger.FinishRun(runID, runSummary(runner.Settled(), last, time.Now())); err != nil {
				monitoring.Logf("failed to record run end: %v", err)
			}
		}
		// The HTTP server has nothing to serve once the bridge is gone.
		stop()
	}()

	// HTTP server goroutine
	if addr := cfg.GetListen(); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			srv := api.NewServer(api.Options{
				Latest: latest,
				Trace:  trace,
				Stats:  stats,
				DB:     ledger,
				RunID:  runID,
			})
			mux := srv.ServeMux()
			srv.AttachAdminRoutes(mux)
			hub.AttachAdminRoutes(mux)
			if ledger != nil {
				if err := ledger.AttachAdminRoutes(mux); err != nil {
					monitoring.Logf("tailsql disabled: %v", err)
				}
			}

			server := &http.Server{
				Addr:    addr,
				Handler: api.LoggingMiddleware(mux),
			}

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					monitoring.Logf("HTTP server error: %v", err)
					stop()
				}
			}()

			monitoring.Logf("Serving HTTP on %s", addr)
			<-ctx.Done()
			monitoring.Logf("shutting down HTTP server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				monitoring.Logf("HTTP server shutdown error: %v", err)
				if err := server.Close(); err != nil {
					monitoring.Logf("HTTP server force close error: %v", err)
				}
			}
			monitoring.Logf("HTTP server routine stopped")
		}()
	}

	wg.Wait()
	monitoring.Logf("Graceful shutdown complete")
	return nil
}
