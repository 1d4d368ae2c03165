// Package cmd implements the ldash command line: a terminal client of the
// loan portfolio backend.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/etnz/loandash"
	"github.com/etnz/loandash/api"
	"github.com/etnz/loandash/config"
	"github.com/etnz/loandash/dashboard"
	"github.com/etnz/loandash/renderer"
	"github.com/etnz/loandash/session"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&loginCmd{}, "session")
	c.Register(&signupCmd{}, "session")
	c.Register(&logoutCmd{}, "session")
	c.Register(&whoamiCmd{}, "session")

	c.Register(&showCmd{}, "portfolio")
	c.Register(&uploadCmd{}, "portfolio")
	c.Register(&otsCmd{}, "portfolio")
	c.Register(&projectionCmd{}, "portfolio")

	c.Register(&healthCmd{}, "server")
	c.Register(&serveCmd{}, "server")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	configPath  = flag.String("config", "", "Path to the YAML configuration file (default $LDASH_CONFIG or the user config dir)")
	backendURL  = flag.String("backend", "", "Backend URL, overrides the configuration")
	sessionFile = flag.String("session-file", "", "Path to the session file, overrides the configuration")
	publicMode  = flag.Bool("public", false, "Show the dashboard without logging in")
	Verbose     = flag.Bool("v", false, "Verbose logs on stderr")
)

// outputs, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// app is what every command runs with.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	client *api.Client
	store  *session.FileStore
}

// newApp loads the configuration and wires the backend client and the
// session store. Commands log to stderr at warn level, or debug with -v.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	level := zapcore.WarnLevel
	if *Verbose {
		level = zapcore.DebugLevel
	}
	logger, err := newConsoleLogger(level)
	if err != nil {
		return nil, err
	}
	return wire(cfg, logger, nil)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if *backendURL != "" {
		cfg.Backend.URL = *backendURL
	}
	if *sessionFile != "" {
		cfg.Session.File = *sessionFile
	}
	if *publicMode {
		cfg.Session.Public = true
	}
	return cfg, nil
}

func wire(cfg *config.Config, logger *zap.Logger, metrics *api.Metrics) (*app, error) {
	path := cfg.Session.File
	if path == "" {
		var err error
		if path, err = session.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		client: api.New(cfg.API(), logger, metrics),
		store:  session.NewFileStore(path, logger),
	}, nil
}

func newConsoleLogger(level zapcore.Level) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("cannot create logger: %w", err)
	}
	return logger, nil
}

// page opens a dashboard page instance. A rejection by the gate is reported
// on stderr with a hint to log in.
func (a *app) page(ctx context.Context) *dashboard.Page {
	return dashboard.NewPage(ctx, a.client, a.store, loginHint{}, dashboard.Options{
		Public: a.cfg.Session.Public,
		Prompt: monthPrompt(),
		Logger: a.logger,
	})
}

// gate validates the session for commands that do not need a whole page.
func (a *app) gate(ctx context.Context) (*dashboard.Gate, bool) {
	g := dashboard.NewGate(a.store, a.client, loginHint{}, a.logger)
	return g, g.Enter(ctx) == dashboard.Authenticated
}

// fail reports err and maps a 401 to the single clear-and-hint path.
func (a *app) fail(g *dashboard.Gate, err error) subcommands.ExitStatus {
	if errors.Is(err, loandash.ErrUnauthorized) && g != nil {
		g.Reject(dashboard.ExpiredReason)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stderr, "Error:", err)
	return subcommands.ExitFailure
}

type loginHint struct{}

func (loginHint) ToLogin(reason string) {
	fmt.Fprintf(stderr, "%s. Run 'ldash login'.\n", reason)
}

// printMarkdown renders md for the terminal, with colors when stdout is one.
func printMarkdown(md string) {
	width, color := 100, false
	if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		color = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = w
		}
	}
	out, err := renderer.Terminal(md, width, color)
	if err != nil {
		fmt.Fprintln(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}
