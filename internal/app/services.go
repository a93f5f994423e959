package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nhle/lms-client/internal/apiclient"
	"github.com/nhle/lms-client/internal/auth"
	"github.com/nhle/lms-client/internal/credential"
	"github.com/nhle/lms-client/internal/logging"
	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/internal/notify"
	"github.com/nhle/lms-client/internal/store"
)

// Services is the wired set of components shared by the TUI and the CLI
// subcommands.
type Services struct {
	Config *model.AppConfig
	Logger logging.Logger
	Tokens *credential.Store
	Client *apiclient.Client
	Auth   *auth.Manager
	Poller *notify.Poller
	Store  store.Store
}

// NewServices opens the keyring and the local database described by cfg
// and wires every component together.
func NewServices(cfg *model.AppConfig, logger logging.Logger) (*Services, error) {
	tokens, err := credential.Open(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Storage.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	return Wire(cfg, logger, tokens, st), nil
}

// Wire connects already-opened dependencies. The API client reports 401s
// to the session manager, and the poller stops once the session ends.
func Wire(
	cfg *model.AppConfig,
	logger logging.Logger,
	tokens *credential.Store,
	st store.Store,
) *Services {
	client := apiclient.New(cfg.Server.BaseURL, tokens,
		apiclient.WithTimeout(cfg.Server.Timeout()),
		apiclient.WithLogger(logger),
	)

	mgr := auth.New(client, tokens, auth.Options{
		Events: st,
		Logger: logger,
	})
	client.SetUnauthorizedHandler(mgr)

	poller := notify.New(client, notify.Options{
		Interval:  cfg.Notifications.PollInterval(),
		Active:    mgr.Active,
		Snapshots: st,
		Logger:    logger,
	})

	return &Services{
		Config: cfg,
		Logger: logger,
		Tokens: tokens,
		Client: client,
		Auth:   mgr,
		Poller: poller,
		Store:  st,
	}
}

// Close stops polling and closes the local database.
func (s *Services) Close() error {
	s.Poller.Stop()
	return s.Store.Close()
}
