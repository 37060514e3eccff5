package modules

import (
	"testing"

	qt "github.com/frankban/quicktest"
	lua "github.com/yuin/gopher-lua"
)

func TestRoundTripThroughLua(t *testing.T) {
	c := qt.New(t)
	L := lua.NewState()
	defer L.Close()

	in := map[string]any{
		"username": "u",
		"limit":    int64(10),
		"ratio":    0.5,
		"admin":    true,
		"tags":     []any{"a", "b"},
		"nested":   map[string]any{"k": "v"},
	}

	got := LuaTableToMap(MapToLuaTable(L, in))
	c.Assert(got, qt.DeepEquals, in)
}

func TestEnvModule(t *testing.T) {
	c := qt.New(t)
	L := lua.NewState()
	defer L.Close()

	env := &EnvModule{lookup: func(name string) (string, bool) {
		if name == "SET" {
			return "value", true
		}
		if name == "EMPTY" {
			return "", true
		}
		return "", false
	}}
	L.PreloadModule("env", env.Loader)

	err := L.DoString(`
local env = require("env")
a = env.get("SET")
b = env.get("EMPTY", "fallback")
c = env.get("UNSET")
`)
	c.Assert(err, qt.IsNil)
	c.Assert(L.GetGlobal("a"), qt.Equals, lua.LValue(lua.LString("value")))
	c.Assert(L.GetGlobal("b"), qt.Equals, lua.LValue(lua.LString("fallback")))
	c.Assert(L.GetGlobal("c"), qt.Equals, lua.LValue(lua.LNil))
}
