// Command example serves a counter, a live search and a todo list built with
// hxlive.
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pthm/hxlive"
	"github.com/pthm/hxlive/example/components"
	"github.com/pthm/hxlive/lib/node"
)

//go:embed static
var staticFiles embed.FS

func main() {
	fs := newFlags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	cfg, err := Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func newApp(cfg *Config, log logrus.FieldLogger, reg prometheus.Registerer) (*hxlive.App, error) {
	key, err := cfg.Session.KeyBytes()
	if err != nil {
		return nil, err
	}
	if key == nil {
		log.Warn("session.key not set, reload URLs will not survive a restart")
	}

	opts := []hxlive.Option{
		hxlive.WithState(components.AppStateSchema, nil),
		hxlive.WithKey(key),
		hxlive.WithLogger(log),
		hxlive.WithCookie(cfg.Session.Cookie, cfg.Session.MaxAge),
		hxlive.WithDeleteTimeout(cfg.Session.DeleteTimeout),
		hxlive.WithSSETick(cfg.Session.SSETick),
		hxlive.WithSSEBufferSize(cfg.Session.BufferSize),
	}
	if reg != nil {
		opts = append(opts, hxlive.WithMetrics(reg))
	}
	app := hxlive.New(opts...)

	comps := components.Register(app, components.NewCatalog())
	app.Page("/", comps.Home,
		hxlive.WithTitle("hxlive example"),
		hxlive.WithHead(func(b *hxlive.Builder) {
			b.El(node.Link, node.Set("rel", "stylesheet"), node.Href("/static/app.css"))
		}),
	)
	return app, nil
}

func run(ctx context.Context, cfg *Config, log *logrus.Logger) error {
	var (
		reg        *prometheus.Registry
		registerer prometheus.Registerer
	)
	if cfg.Server.Metrics {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer = reg
	}

	app, err := newApp(cfg, log, registerer)
	if err != nil {
		return err
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/", app.Handler())
	mux.Handle("GET /static/", http.FileServerFS(staticFiles))
	if reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	// SSE streams never go idle, so Shutdown cancels their base context.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancelBase)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.Server.Addr).Info("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
