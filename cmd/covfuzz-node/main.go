// Command covfuzz-node is the composition root for one fuzzing node: it
// wires a corpus, an event bus and a transport Node together and runs the
// node until its context is cancelled. The minimizer is not wired here. It is deliberately not a CLI (spec.md §1 places flag/config
// parsing out of scope, the way syz-manager's own flag handling is
// separate from its manager.go composition logic); every knob here is
// read from the environment instead of a flag package, and the process
// embedding this binary is expected to supply the real Executor/Evaluator
// (the target harness and coverage instrumentation are both external,
// spec.md §6) by building its own main around the same wiring.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/covfuzz/covfuzz/executor"
	"github.com/covfuzz/covfuzz/internal/eventbus"
	"github.com/covfuzz/covfuzz/internal/logger"
	"github.com/covfuzz/covfuzz/ir"
	"github.com/covfuzz/covfuzz/pkg/corpus"
	"github.com/covfuzz/covfuzz/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "covfuzz-node:", err)
		os.Exit(1)
	}
}

func run() error {
	log := logger.Stdout()
	if lvl := os.Getenv("COVFUZZ_VERBOSITY"); lvl != "" {
		var v int
		fmt.Sscanf(lvl, "%d", &v)
		logger.SetVerbosity(v)
	}

	selfID := uuid.New()
	bus := eventbus.New()

	c := corpus.New(corpus.Config{
		Strategy: &corpus.BasicRing{MaxSize: 10000, MinMutationsPerSample: 4},
		Bus:      bus,
		Logf:     log,
		Rand:     rand.New(rand.NewSource(rand.Int63())),
	})

	registry := prometheus.NewRegistry()
	for _, col := range c.Collectors() {
		registry.MustRegister(col)
	}
	if addr := os.Getenv("COVFUZZ_METRICS_ADDR"); addr != "" {
		go serveMetrics(addr, registry, log)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	handlers := transport.Handlers{
		SyncSnapshot: c.Programs,
		OnProgram: func(peer uuid.UUID, program *ir.Program) {
			// A real node would re-execute program against its own
			// executor/evaluator to obtain the ProgramAspects Add needs;
			// that harness is external (spec.md §6) and not available in
			// this composition root, so the embedding process is expected
			// to override OnProgram with its own Add call.
			log(1, "received program (%d instructions) from %s", program.Size(), peer)
		},
		OnCrash: func(peer uuid.UUID, program *ir.Program, outcome executor.Outcome, detail string) {
			log(0, "crash report from %s: %v %s", peer, outcome, detail)
		},
	}

	switch os.Getenv("COVFUZZ_ROLE") {
	case "parent":
		return runParent(ctx, selfID, handlers, bus, log)
	case "child":
		return runChild(ctx, selfID, handlers, bus, log)
	default:
		return fmt.Errorf("COVFUZZ_ROLE must be \"parent\" or \"child\"")
	}
}

func runParent(ctx context.Context, selfID uuid.UUID, handlers transport.Handlers, bus *eventbus.Bus, log logger.Logf) error {
	addr := os.Getenv("COVFUZZ_LISTEN_ADDR")
	if addr == "" {
		addr = ":0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	defer ln.Close()
	log(0, "parent node %s listening on %s", selfID, ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}
		go func() {
			node, err := transport.Accept(ctx, raw, transport.RoleParent, selfID, handlers, bus, log)
			if err != nil {
				log(0, "handshake with %s failed: %v", raw.RemoteAddr(), err)
				raw.Close()
				return
			}
			if err := node.Run(ctx); err != nil {
				log(0, "connection to %s ended: %v", node.Conn.PeerID, err)
			}
		}()
	}
}

func runChild(ctx context.Context, selfID uuid.UUID, handlers transport.Handlers, bus *eventbus.Bus, log logger.Logf) error {
	addr := os.Getenv("COVFUZZ_PARENT_ADDR")
	if addr == "" {
		return fmt.Errorf("COVFUZZ_PARENT_ADDR is required for role=child")
	}
	return transport.RunChildWithReconnect(ctx, addr, selfID, handlers, bus, log)
}

func serveMetrics(addr string, registry *prometheus.Registry, log logger.Logf) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log(0, "metrics server on %s stopped: %v", addr, err)
	}
}
