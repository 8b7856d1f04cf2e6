package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/zeusync/kinetic/internal/config"
	"github.com/zeusync/kinetic/internal/core/observability/log"
	"github.com/zeusync/kinetic/internal/injector"
	"github.com/zeusync/kinetic/internal/render/term"
	"github.com/zeusync/kinetic/internal/server"
	"github.com/zeusync/kinetic/internal/watch"
	"golang.org/x/sync/errgroup"
)

const (
	modeServe    = "serve"
	modeView     = "view"
	modeHeadless = "headless"
)

type options struct {
	configPath string
	mode       string
	frames     int
	watch      bool
	logLevel   string
	token      string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "scene file (YAML); the demo scene when empty")
	flag.StringVar(&opts.mode, "mode", modeServe, "serve, view or headless")
	flag.IntVar(&opts.frames, "frames", 0, "headless: step this many fixed frames and exit (0 runs until interrupted)")
	flag.BoolVar(&opts.watch, "watch", false, "reload the scene file when it changes")
	flag.StringVar(&opts.logLevel, "log-level", "", "override log.level")
	flag.StringVar(&opts.token, "token", "", "override server.token")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "kinetic:", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (config.Config, error) {
	cfg := config.Demo()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.token != "" {
		cfg.Server.Token = opts.token
	}
	// the terminal view owns the screen, so stderr logging has to go elsewhere
	if opts.mode == modeView && (cfg.Log.Output == "" || cfg.Log.Output == "stderr") {
		cfg.Log.Output = os.DevNull
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, opts options) error {
	switch opts.mode {
	case modeServe, modeView, modeHeadless:
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
	if opts.watch && opts.configPath == "" {
		return errors.New("-watch needs -config")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	app, err := injector.InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Logger.Sync() }()

	logger := app.Logger.With(log.String("mode", opts.mode))
	logger.Info("starting", log.Int("bodies", len(cfg.Bodies)), log.String("session", app.Runner.Session()))

	if opts.mode == modeHeadless && opts.frames > 0 {
		return runFrames(app, opts.frames)
	}

	err = start(ctx, app, opts)
	m := app.Runner.Metrics()
	logger.Info("stopped",
		log.Uint64("frames", m.Frames),
		log.Uint64("commands", m.Commands),
		log.Uint64("dropped", m.DroppedCommands),
		log.Duration("avg_delivery", m.AvgDeliveryDuration),
	)
	return err
}

// newScreen is replaced in tests.
var newScreen = tcell.NewScreen

// start builds every surface the mode needs and only then launches the
// runner, so a failed setup leaves no goroutine behind.
func start(ctx context.Context, app *injector.App, opts options) error {
	var (
		watcher *watch.SceneWatcher
		srv     *server.Server
		view    *term.View
		err     error
	)
	if opts.watch {
		if watcher, err = watch.New(opts.configPath, app.Runner, app.Logger); err != nil {
			return err
		}
	}
	switch opts.mode {
	case modeServe:
		if srv, err = injector.InitializeServer(app); err != nil {
			return err
		}
	case modeView:
		screen, err := newScreen()
		if err != nil {
			return err
		}
		if err := screen.Init(); err != nil {
			return err
		}
		defer screen.Fini()
		view = term.New(screen, app.Runner, app.Logger)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.Runner.Run(ctx) })
	if watcher != nil {
		g.Go(func() error { return watcher.Run(ctx) })
	}
	if srv != nil {
		g.Go(func() error { return srv.Run(ctx) })
	}
	if view != nil {
		g.Go(func() error {
			defer cancel()
			return view.Run(ctx)
		})
	}
	return g.Wait()
}

// runFrames steps a fixed number of 1/fps frames as fast as possible and
// prints the final state.
func runFrames(app *injector.App, frames int) error {
	dt := 1 / float64(app.Config.Runner.FPS)
	f := app.Runner.Snapshot()
	for range frames {
		f = app.Runner.Advance(dt)
	}

	fmt.Printf("frames %d  time %.4fs  hash %016x\n", f.Seq, f.Time, f.Hash)
	for i, b := range f.Bodies {
		fmt.Printf("body %d  %-12s  pos (%.4f, %.4f)  vel (%.4f, %.4f)\n",
			i, b.Shape, b.Position.X, b.Position.Y, b.Velocity.X, b.Velocity.Y)
	}
	return nil
}
