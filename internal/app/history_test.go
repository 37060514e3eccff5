package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"

	"github.com/dokzlo13/gitlab-user/internal/config"
	"github.com/dokzlo13/gitlab-user/internal/ledger"
)

func TestHistoryListsRecordedRuns(t *testing.T) {
	c := qt.New(t)
	_, apiURL := newStub(t, map[string]string{
		"GET /users": `[{"id": 7, "username": "t"}, {"id": 8, "username": "other"}]`,
	})

	cfg := testConfig(t, apiURL, map[string]any{"username": "t"})
	cfg.State = config.StateAbsent
	cfg.CheckMode = true
	a := newApp(t, cfg)
	c.Assert(a.Run(context.Background()), qt.DeepEquals, Result{Changed: true})

	other := *cfg
	other.User = map[string]any{"username": "other"}
	b := newApp(t, &other)
	c.Assert(b.Run(context.Background()), qt.DeepEquals, Result{Changed: true})

	entries, err := History(cfg, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].RunID, qt.Equals, a.RunID())
	c.Assert(entries[0].EventType, qt.Equals, ledger.EventRunCompleted)

	all := *cfg
	all.User = map[string]any{}
	entries, err = History(&all, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 2)

	out, err := json.Marshal(entries[0])
	c.Assert(err, qt.IsNil)
	var decoded map[string]any
	c.Assert(json.Unmarshal(out, &decoded), qt.IsNil)
	c.Assert(decoded["state"], qt.Equals, "absent")
	c.Assert(decoded["check_mode"], qt.Equals, true)
	c.Assert(decoded["changed"], qt.Equals, true)
}

func TestHistoryErrors(t *testing.T) {
	c := qt.New(t)

	_, err := History(&config.Config{}, 5)
	c.Assert(err, qt.ErrorMatches, "ledger.path is not configured")
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)

	cfg := &config.Config{Ledger: config.LedgerConfig{Path: filepath.Join(t.TempDir(), "runs.sqlite")}}
	_, err = History(cfg, 0)
	c.Assert(err, qt.ErrorMatches, "history limit must be positive")
}
