// Package lua runs the optional desired-state script. A script sees the
// configured fields as the global table `user` and either modifies `user`
// in place (setting a field to nil removes it) or returns a table that is
// merged over the configured fields.
package lua

import (
	"context"
	"fmt"
	"maps"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/gitlab-user/internal/lua/modules"
)

// Runtime manages one Lua VM for a single script evaluation
type Runtime struct {
	L      *lua.LState
	script string
}

// NewRuntime creates a new Lua runtime with the log and env modules preloaded
func NewRuntime(script string) *Runtime {
	L := lua.NewState()

	r := &Runtime{L: L, script: script}
	r.registerModules()
	return r
}

// Close closes the Lua state
func (r *Runtime) Close() {
	r.L.Close()
}

// registerModules registers all Lua modules
func (r *Runtime) registerModules() {
	r.L.PreloadModule("log", modules.NewLogModule(r.script).Loader)
	r.L.PreloadModule("env", modules.NewEnvModule().Loader)
}

// Desired executes the script. A returned table is overlaid on base;
// otherwise the global user table, as the script left it, is the result.
// base itself is not modified.
func (r *Runtime) Desired(ctx context.Context, base map[string]any) (map[string]any, error) {
	r.L.SetContext(ctx)
	r.L.SetGlobal("user", modules.MapToLuaTable(r.L, base))

	log.Debug().Str("path", r.script).Msg("Running desired-state script")

	top := r.L.GetTop()
	if err := r.L.DoFile(r.script); err != nil {
		return nil, fmt.Errorf("failed to execute Lua script: %w", err)
	}

	var merged map[string]any
	if r.L.GetTop() > top {
		ret := r.L.Get(top + 1)
		r.L.SetTop(top)
		switch v := ret.(type) {
		case *lua.LTable:
			merged = maps.Clone(base)
			if merged == nil {
				merged = map[string]any{}
			}
			maps.Copy(merged, modules.LuaTableToMap(v))
		case *lua.LNilType:
		default:
			return nil, fmt.Errorf("script must return a table, got %s", ret.Type())
		}
	}
	if merged == nil {
		// user was seeded from base, so a field the script set to nil is gone.
		tbl, ok := r.L.GetGlobal("user").(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("script left global user as %s, want a table", r.L.GetGlobal("user").Type())
		}
		merged = modules.LuaTableToMap(tbl)
	}

	log.Info().Str("path", r.script).Int("fields", len(merged)).Msg("Desired state loaded from Lua script")
	return merged, nil
}

// LoadDesired is a convenience wrapper running script once in a fresh runtime.
func LoadDesired(ctx context.Context, script string, base map[string]any) (map[string]any, error) {
	r := NewRuntime(script)
	defer r.Close()
	return r.Desired(ctx, base)
}
