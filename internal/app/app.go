package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gitlab-user/internal/account"
	"github.com/dokzlo13/gitlab-user/internal/config"
	"github.com/dokzlo13/gitlab-user/internal/ledger"
	"github.com/dokzlo13/gitlab-user/internal/lua"
	"github.com/dokzlo13/gitlab-user/internal/metrics"
)

// App is the main application container: it wires the services for one
// invocation and runs a single reconcile.
type App struct {
	cfg      *config.Config
	services *Services
	runID    string
	now      func() time.Time
}

// New creates a new App instance with all services initialized.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		services: services,
		runID:    uuid.New().String(),
		now:      time.Now,
	}, nil
}

// RunID identifies this invocation in logs and in the ledger.
func (a *App) RunID() string {
	return a.runID
}

// run is what one reconcile produced, kept for the ledger and metrics.
type run struct {
	username string
	changed  bool
	details  map[string]any
}

// Run resolves the desired state and reconciles it. Failures are reported
// in the Result rather than returned.
func (a *App) Run(ctx context.Context) Result {
	logger := log.With().Str("run_id", a.runID).Logger()

	logger.Info().
		Str("state", a.cfg.State).
		Bool("check_mode", a.cfg.CheckMode).
		Str("api", a.services.Client.BaseURL()).
		Msg("Starting run")

	start := a.now()
	r, err := a.reconcile(ctx)
	a.record(r, err)

	if err != nil {
		logger.Error().Err(err).Str("username", r.username).Msg("Run failed")
		return Failure(err)
	}

	logger.Info().
		Str("username", r.username).
		Bool("changed", r.changed).
		Dur("elapsed", a.now().Sub(start)).
		Msg("Run finished")
	return Result{Changed: r.changed}
}

func (a *App) reconcile(ctx context.Context) (run, error) {
	var r run

	fields := a.cfg.User
	if a.cfg.Script != "" {
		var err error
		fields, err = lua.LoadDesired(ctx, a.cfg.Script, fields)
		if err != nil {
			return r, err
		}
	}
	if name, ok := fields["username"].(string); ok {
		r.username = name
	}

	desired, err := account.DesiredFromMap(fields)
	if err != nil {
		return r, err
	}

	if desired.SSHKey != nil {
		fingerprint, err := sshKeyFingerprint(*desired.SSHKey)
		if err != nil {
			return r, err
		}
		r.details = map[string]any{
			"ssh_key_title":       *desired.SSHKeyTitle,
			"ssh_key_fingerprint": fingerprint,
		}
	}

	reconciler := a.services.Reconciler
	switch a.cfg.State {
	case config.StateAbsent:
		r.changed, err = reconciler.Remove(ctx, desired.Username, a.cfg.CheckMode)
	default:
		r.changed, err = reconciler.CreateOrUpdate(ctx, desired, a.cfg.CheckMode)
	}
	return r, err
}

// record appends the run to the ledger and writes the metrics textfile.
// Neither can fail the run.
func (a *App) record(r run, runErr error) {
	now := a.now()

	result := metrics.ResultUnchanged
	eventType := ledger.EventRunCompleted
	entry := &ledger.Entry{
		RunID:     a.runID,
		Timestamp: now,
		Username:  r.username,
		State:     a.cfg.State,
		CheckMode: a.cfg.CheckMode,
		Changed:   r.changed,
		Payload:   r.details,
	}
	switch {
	case runErr != nil:
		result = metrics.ResultFailed
		eventType = ledger.EventRunFailed
		entry.Error = runErr.Error()
	case r.changed:
		result = metrics.ResultChanged
	}
	entry.EventType = eventType

	a.services.Metrics.RecordRun(r.username, a.cfg.State, result, now)
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.services.Metrics.WriteTextfile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to write metrics")
		}
	}

	l := a.services.Ledger
	if l == nil {
		return
	}
	if err := l.Append(entry); err != nil {
		log.Warn().Err(err).Str("run_id", a.runID).Msg("Failed to append run to ledger")
		return
	}
	retention := time.Duration(a.cfg.Ledger.RetentionDays) * 24 * time.Hour
	if retention > 0 {
		deleted, err := l.DeleteOlderThan(retention)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to prune run ledger")
		} else if deleted > 0 {
			log.Debug().Int64("deleted", deleted).Msg("Pruned old runs from ledger")
		}
	}
}

// Close releases all resources.
func (a *App) Close() {
	if a.services != nil {
		a.services.Close()
	}
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
