package app

import (
	"github.com/juju/errors"

	"github.com/dokzlo13/gitlab-user/internal/config"
	"github.com/dokzlo13/gitlab-user/internal/db"
	"github.com/dokzlo13/gitlab-user/internal/ledger"
)

// History returns up to limit recorded runs, newest first. When the
// configured user has a username only that account's runs are listed.
// It never contacts the API.
func History(cfg *config.Config, limit int) ([]*ledger.Entry, error) {
	if cfg.Ledger.Path == "" {
		return nil, errors.NewNotValid(nil, "ledger.path is not configured")
	}
	if limit <= 0 {
		return nil, errors.NewNotValid(nil, "history limit must be positive")
	}

	database, err := db.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	l := ledger.New(database.DB)
	if username, ok := cfg.User["username"].(string); ok && username != "" {
		return l.GetByUsername(username, limit)
	}
	return l.Recent(limit)
}
