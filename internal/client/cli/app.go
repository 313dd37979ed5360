package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/partfinder/partfinder/internal/client/authapi"
	"github.com/partfinder/partfinder/internal/client/config"
	"github.com/partfinder/partfinder/internal/client/session"
	"github.com/partfinder/partfinder/internal/client/storage"
	"github.com/partfinder/partfinder/internal/logging"
)

// authSession is the session-manager surface the commands use.
type authSession interface {
	Init(ctx context.Context) error
	Dispose()
	Login(ctx context.Context, email, password string) error
	Signup(ctx context.Context, username, email, password string) error
	Logout(ctx context.Context)
	AuthHeader(ctx context.Context) session.Header
	RefreshAccessToken(ctx context.Context) (string, error)
	SendResetCode(ctx context.Context, email string) (string, error)
	VerifyResetCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) (string, error)
	IsAuthenticated() bool
	State() session.State
	Session() (session.Session, bool)
	LastError() error
	ClearError()
}

type profileFetcher interface {
	Me(ctx context.Context, header http.Header) (*authapi.User, error)
}

type App struct {
	session  authSession
	profiles profileFetcher
	closer   io.Closer
	reader   *bufio.Reader
	out      io.Writer
	log      logging.Logger
}

// NewApp opens the configured store, builds the backend client and the
// session manager on top of it.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, cfg.LogLevel, logging.FormatText)

	store, err := storage.Open(ctx, cfg.StorageBackend, cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	api, err := authapi.NewHTTPClient(cfg.APIBaseURL, cfg.RequestTimeout)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	stateLog := logger.With("module", "cli")
	mgr := session.New(api, store,
		session.WithLogger(logger),
		session.WithSafetyMargin(cfg.SafetyMargin),
		session.WithRefreshRetry(cfg.RefreshRetries, cfg.RetryBackoff),
		session.WithListener(func(s session.State) {
			stateLog.Debug(context.Background(), "session state changed", "state", s.String())
		}),
	)

	logger.Info(ctx, "client configured",
		"api", api.BaseURL(), "storage", cfg.StorageBackend, "path", cfg.StoragePath)

	return &App{
		session:  mgr,
		profiles: api,
		closer:   store,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		log:      stateLog,
	}, nil
}

// Run restores the saved session, serves the REPL until the user leaves and
// then releases the session and the store.
func (a *App) Run(ctx context.Context) error {
	if err := a.session.Init(ctx); err != nil {
		return err
	}
	defer func() {
		a.session.Dispose()
		if a.closer != nil {
			if err := a.closer.Close(); err != nil {
				a.log.Warn(ctx, "close storage", "error", err)
			}
		}
	}()

	if err := a.session.LastError(); err != nil {
		fmt.Fprintln(a.out, "Saved session could not be restored:", err)
		a.session.ClearError()
	}
	printlnFn("Welcome to Part Finder (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.session.IsAuthenticated()
}

func (a *App) status() string {
	return a.session.State().String()
}
