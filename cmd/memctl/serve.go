package main

import (
	"context"
	"math/rand"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem/system"
)

var (
	serveAddr     string
	serveInterval time.Duration
	serveBatch    int
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run background churn and serve live statistics over HTTP",
		Long: `The serve command keeps a churn workload running against one allocator
stack and exposes its state:

  GET /stats    per-tier statistics (JSON)
  GET /report   live allocations by category and site (JSON, or text with ?format=text)
  GET /check    run every tier's consistency walk

Example:
  memctl serve --addr :8080 --interval 100ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	cmd.Flags().DurationVar(&serveInterval, "interval", 100*time.Millisecond, "Pause between workload batches")
	cmd.Flags().IntVar(&serveBatch, "batch", 500, "Operations per workload batch")
	rootCmd.AddCommand(cmd)
}

// server serialises HTTP handlers and the background workload; the
// allocators themselves are single-threaded.
type server struct {
	mu    sync.Mutex
	sys   *system.System
	work  *churner
	rng   *rand.Rand
	ops   int
	fails int
}

func runServe(ctx context.Context) error {
	sys, err := openSystem(true)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := &server{
		sys:  sys,
		work: &churner{sys: sys},
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	go s.churn(ctx)

	srv := &fasthttp.Server{Handler: s.handle, Name: "memctl"}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(serveAddr) }()
	logger.Info("serving allocator statistics", "addr", serveAddr)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return srv.Shutdown()
	case err := <-errc:
		return err
	}
}

// churn runs workload batches until ctx is done.
func (s *server) churn(ctx context.Context) {
	t := time.NewTicker(serveInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.step()
		}
	}
}

func (s *server) step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.work.run(serveBatch, s.rng, nil)
	s.ops += res.Ops
	s.fails += res.Failures
	if err != nil {
		logger.Warn("workload batch failed", "err", err)
	}
}

func (s *server) handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch string(ctx.Path()) {
	case "/stats":
		s.writeJSON(ctx, map[string]any{
			"ops":      s.ops,
			"failures": s.fails,
			"stats":    s.sys.Stats(),
		})
	case "/report":
		r := s.sys.Report()
		if string(ctx.QueryArgs().Peek("format")) == "text" {
			var sb strings.Builder
			if err := r.Format(&sb, ctx.QueryArgs().GetUintOrZero("sites")); err != nil {
				ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
				return
			}
			ctx.SetContentType("text/plain; charset=utf-8")
			ctx.SetBodyString(sb.String())
			return
		}
		s.writeJSON(ctx, r)
	case "/check":
		if err := s.sys.Check(); err != nil {
			ctx.SetStatusCode(fasthttp.StatusConflict)
			s.writeJSON(ctx, map[string]string{"status": "corrupt", "error": err.Error()})
			return
		}
		s.writeJSON(ctx, map[string]string{"status": "ok"})
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *server) writeJSON(ctx *fasthttp.RequestCtx, v any) {
	stream := json.BorrowStream(ctx)
	defer json.ReturnStream(stream)
	stream.WriteVal(v)
	if stream.Error != nil {
		ctx.Error(stream.Error.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	_ = stream.Flush()
}
