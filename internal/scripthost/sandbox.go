// Package scripthost runs per-script sandboxed Lua interpreters, each
// supervised by its own goroutine with a FIFO task queue, cooperative
// coroutine scheduling, and a signal-acceptance whitelist derived from the
// script's own top-level onXxx function names.
package scripthost

import (
	lua "github.com/yuin/gopher-lua"
)

// safeFunctions whitelists the globals and table members a sandboxed
// script may keep. A nil slice means the global itself is kept as-is
// (not a table to be filtered); a non-nil slice names the only members of
// that table left in place.
var safeFunctions = map[string][]string{
	"_VERSION":  nil,
	"assert":    nil,
	"coroutine": {"create", "resume", "running", "status", "wrap", "yield"},
	"error":     nil,
	"ipairs":    nil,
	"math": {
		"abs", "acos", "asin", "atan", "atan2", "ceil", "cos", "cosh", "deg",
		"exp", "floor", "fmod", "frexp", "huge", "ldexp", "log", "log10",
		"max", "min", "modf", "pi", "pow", "rad", "random", "randomseed",
		"sin", "sinh", "sqrt", "tan", "tanh",
	},
	"next":   nil,
	"os":     {"clock", "date", "difftime", "time"},
	"pairs":  nil,
	"pcall":  nil,
	"print":  nil,
	"select": nil,
	"string": {
		"byte", "char", "find", "format", "gmatch", "gsub", "len", "lower",
		"match", "rep", "reverse", "sub", "upper",
	},
	"table":    {"concat", "insert", "maxn", "remove", "sort"},
	"tonumber": nil,
	"tostring": nil,
	"type":     nil,
	"unpack":   nil,
	"xpcall":   nil,
}

// sandbox strips every global not on the whitelist, and for whitelisted
// table globals strips every member not explicitly named, leaving a script
// with no filesystem, network, process, or metatable-escape access.
func sandbox(L *lua.LState) {
	global := L.G.Global

	var topKeys []string
	global.ForEach(func(k, _ lua.LValue) {
		topKeys = append(topKeys, k.String())
	})

	for _, name := range topKeys {
		if name == "_G" {
			continue
		}
		allowed, ok := safeFunctions[name]
		if !ok {
			global.RawSetString(name, lua.LNil)
			continue
		}
		if allowed == nil {
			continue
		}
		tbl, isTable := global.RawGetString(name).(*lua.LTable)
		if !isTable {
			continue
		}
		keep := make(map[string]struct{}, len(allowed))
		for _, a := range allowed {
			keep[a] = struct{}{}
		}
		var subKeys []string
		tbl.ForEach(func(k2, _ lua.LValue) {
			subKeys = append(subKeys, k2.String())
		})
		for _, sub := range subKeys {
			if _, ok := keep[sub]; !ok {
				tbl.RawSetString(sub, lua.LNil)
			}
		}
	}

	global.RawSetString("list", buildListModule(L))
}

// buildListModule implements the `list` helper scripts use to build and
// slice plain Lua arrays without reaching for anything off the whitelist.
func buildListModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()

	mod.RawSetString("new", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		t := L.NewTable()
		for i := 1; i <= n; i++ {
			t.Append(L.Get(i))
		}
		L.Push(t)
		return 1
	}))

	mod.RawSetString("slice", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		length := tbl.Len()
		start := optInt(L, 2, 1)
		end := optInt(L, 3, length)
		step := optInt(L, 4, 1)
		if step == 0 {
			step = 1
		}

		result := L.NewTable()
		if step > 0 {
			for i := start; i <= end && i <= length; i += step {
				if i < 1 {
					continue
				}
				result.Append(tbl.RawGetInt(i))
			}
		} else {
			for i := start; i >= end && i >= 1; i += step {
				if i > length {
					continue
				}
				result.Append(tbl.RawGetInt(i))
			}
		}
		L.Push(result)
		return 1
	}))

	return mod
}

func optInt(L *lua.LState, n, def int) int {
	v := L.Get(n)
	if v == lua.LNil {
		return def
	}
	return int(L.CheckNumber(n))
}

// installSleep defines `sleep(ms)` as Lua source rather than a Go builtin,
// because it must be able to yield the calling coroutine — something only
// Lua-level code invoked from within the coroutine itself can do.
func installSleep(L *lua.LState) error {
	return L.DoString(`function sleep(ms)
suspend(ms)
coroutine.yield()
end`)
}
