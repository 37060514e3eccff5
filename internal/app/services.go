package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gitlab-user/internal/account"
	"github.com/dokzlo13/gitlab-user/internal/config"
	"github.com/dokzlo13/gitlab-user/internal/db"
	"github.com/dokzlo13/gitlab-user/internal/gitlab"
	"github.com/dokzlo13/gitlab-user/internal/ledger"
	"github.com/dokzlo13/gitlab-user/internal/metrics"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Run history, nil when ledger.path is empty
	DB     *db.DB
	Ledger *ledger.Ledger

	Metrics *metrics.Recorder

	Client     *gitlab.Client
	Reconciler *account.Reconciler
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	policy, err := account.ParseEmailDeletePolicy(cfg.EmailDeletePolicy)
	if err != nil {
		return nil, err
	}

	s := &Services{cfg: cfg}

	s.Metrics = metrics.New()

	s.Client = gitlab.NewClient(cfg.API.URL, cfg.API.PrivateToken, gitlab.Options{
		Timeout:       cfg.API.Timeout.Duration(),
		RateLimitRPS:  cfg.API.RateLimitRPS,
		StrictLookups: cfg.API.StrictLookups,
		Observer:      s.Metrics,
	})
	s.Reconciler = account.New(s.Client, policy)

	if cfg.Ledger.Path != "" {
		database, err := db.Open(cfg.Ledger.Path)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
	} else {
		log.Debug().Msg("Run ledger disabled")
	}

	return s, nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Client != nil {
		s.Client.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
