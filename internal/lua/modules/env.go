package modules

import (
	"os"

	lua "github.com/yuin/gopher-lua"
)

// EnvModule exposes read-only access to the process environment
type EnvModule struct {
	lookup func(string) (string, bool)
}

// NewEnvModule creates a new env module backed by os.LookupEnv
func NewEnvModule() *EnvModule {
	return &EnvModule{lookup: os.LookupEnv}
}

// Loader is the module loader for Lua
func (m *EnvModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "get", L.NewFunction(m.get))
	L.SetField(mod, "require", L.NewFunction(m.require))

	L.Push(mod)
	return 1
}

// get(name, default?) - value of name, default (or nil) when unset or empty
func (m *EnvModule) get(L *lua.LState) int {
	name := L.CheckString(1)
	if val, ok := m.lookup(name); ok && val != "" {
		L.Push(lua.LString(val))
		return 1
	}
	L.Push(L.Get(2))
	return 1
}

// require(name) - value of name, raises a Lua error when unset or empty
func (m *EnvModule) require(L *lua.LState) int {
	name := L.CheckString(1)
	val, ok := m.lookup(name)
	if !ok || val == "" {
		L.RaiseError("environment variable %s is not set", name)
		return 0
	}
	L.Push(lua.LString(val))
	return 1
}
