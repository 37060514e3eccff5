package modules

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// LogModule provides logging functions to Lua
type LogModule struct {
	script string
}

// NewLogModule creates a log module tagging every record with the script path
func NewLogModule(script string) *LogModule {
	return &LogModule{script: script}
}

// Loader is the module loader for Lua
func (m *LogModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "debug", L.NewFunction(m.at(zerolog.DebugLevel)))
	L.SetField(mod, "info", L.NewFunction(m.at(zerolog.InfoLevel)))
	L.SetField(mod, "warn", L.NewFunction(m.at(zerolog.WarnLevel)))
	L.SetField(mod, "error", L.NewFunction(m.at(zerolog.ErrorLevel)))

	L.Push(mod)
	return 1
}

// at returns log.<level>(msg, fields?)
func (m *LogModule) at(level zerolog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)

		event := log.WithLevel(level).Str("source", "lua")
		if m.script != "" {
			event = event.Str("script", m.script)
		}
		for k, v := range m.parseFields(L, 2) {
			event = event.Interface(k, v)
		}
		event.Msg(msg)

		return 0
	}
}

func (m *LogModule) parseFields(L *lua.LState, argIndex int) map[string]any {
	fields := make(map[string]any)

	tbl, ok := L.Get(argIndex).(*lua.LTable)
	if !ok {
		return fields
	}
	tbl.ForEach(func(key, value lua.LValue) {
		fields[lua.LVAsString(key)] = LuaToGo(value)
	})

	return fields
}
