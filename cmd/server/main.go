package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"marblemech/internal/persistence/runindex"
	"marblemech/internal/persistence/trace"
	"marblemech/internal/sim/rig"
	"marblemech/internal/sim/tuning"
	"marblemech/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		rigID      = flag.String("rig", "rig_1", "rig id")
		seed       = flag.Int64("seed", 1337, "marble jitter seed")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		bits       = flag.Int("bits", 0, "override counter width (0 = use tuning)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	if *bits > 0 {
		tune.Bits = *bits
	}

	r := rig.New(rig.Config{ID: *rigID, Seed: *seed, Tune: tune})

	ctx, cancel := signalContext()
	defer cancel()

	header := r.NewTraceHeader(time.Now().UTC().Format(time.RFC3339Nano))
	runLog, err := trace.NewRunLogger(*dataDir, header)
	if err != nil {
		logger.Fatalf("open trace: %v", err)
	}
	defer runLog.Close()

	// Optional read-model index (does not affect sim determinism).
	var idx *runindex.Index
	if !*disableDB {
		idx, err = runindex.OpenSQLite(filepath.Join(*dataDir, "index", "runs.db"))
		if err != nil {
			logger.Fatalf("open run index: %v", err)
		}
		defer idx.Close()
		idx.RegisterRun(header, runLog.Path())
	}
	r.SetTraceLogger(multiTraceLogger{a: runLog, b: idx})

	go func() {
		if err := r.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("rig stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := r.Metrics()
		tick := r.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP marblemech_rig_tick Current rig tick.\n")
		fmt.Fprintf(rw, "# TYPE marblemech_rig_tick gauge\n")
		fmt.Fprintf(rw, "marblemech_rig_tick{rig=%q} %d\n", *rigID, tick)

		fmt.Fprintf(rw, "# HELP marblemech_counter_value Decoded counter value.\n")
		fmt.Fprintf(rw, "# TYPE marblemech_counter_value gauge\n")
		fmt.Fprintf(rw, "marblemech_counter_value{rig=%q} %d\n", *rigID, m.Value)

		fmt.Fprintf(rw, "# HELP marblemech_launches_total Marbles launched since start.\n")
		fmt.Fprintf(rw, "# TYPE marblemech_launches_total counter\n")
		fmt.Fprintf(rw, "marblemech_launches_total{rig=%q} %d\n", *rigID, m.Launches)

		fmt.Fprintf(rw, "# HELP marblemech_marbles Marbles currently in the space.\n")
		fmt.Fprintf(rw, "# TYPE marblemech_marbles gauge\n")
		fmt.Fprintf(rw, "marblemech_marbles{rig=%q} %d\n", *rigID, m.Marbles)

		fmt.Fprintf(rw, "# HELP marblemech_gate_open Whether the launch gate is open.\n")
		fmt.Fprintf(rw, "# TYPE marblemech_gate_open gauge\n")
		fmt.Fprintf(rw, "marblemech_gate_open{rig=%q} %d\n", *rigID, boolGauge(m.GateOpen))

		fmt.Fprintf(rw, "# HELP marblemech_sessions Current number of connected observers.\n")
		fmt.Fprintf(rw, "# TYPE marblemech_sessions gauge\n")
		fmt.Fprintf(rw, "marblemech_sessions{rig=%q} %d\n", *rigID, m.Sessions)

		fmt.Fprintf(rw, "# HELP marblemech_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE marblemech_queue_depth gauge\n")
		fmt.Fprintf(rw, "marblemech_queue_depth{rig=%q,queue=%q} %d\n", *rigID, "launch", m.LaunchQueueDepth)

		fmt.Fprintf(rw, "# HELP marblemech_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE marblemech_step_ms gauge\n")
		fmt.Fprintf(rw, "marblemech_step_ms{rig=%q} %.3f\n", *rigID, m.StepMS)
	})

	enableAdminHTTP := envBool("MM_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("MM_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, req *http.Request) {
			if !isLoopbackRemote(req.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				RigID   string      `json:"rig_id"`
				Tick    uint64      `json:"tick"`
				Metrics rig.Metrics `json:"metrics"`
			}{
				RigID:   *rigID,
				Tick:    r.CurrentTick(),
				Metrics: r.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/launch", func(rw http.ResponseWriter, req *http.Request) {
			if req.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(req.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			select {
			case r.Launch() <- struct{}{}:
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": r.CurrentTick()})
			default:
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": "launch queue full"})
			}
		})
	} else {
		logger.Printf("admin endpoints disabled (MM_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (MM_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(r, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("rig=%s bits=%d seed=%d trace=%s", *rigID, tune.Bits, *seed, runLog.Path())
	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

type multiTraceLogger struct {
	a rig.TraceLogger
	b *runindex.Index
}

func (m multiTraceLogger) WriteTick(entry rig.TraceEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}
