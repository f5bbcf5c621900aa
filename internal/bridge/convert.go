package bridge

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// ToLua exposes toLua for packages outside bridge that share its Go<->Lua
// value mapping, such as the script host's Call(name, args...) marshalling.
func ToLua(L *lua.LState, value interface{}) lua.LValue {
	return toLua(L, value)
}

// FromLua exposes fromLua for packages outside bridge.
func FromLua(value lua.LValue) interface{} {
	return fromLua(value)
}

// toLua converts a Go value returned from a proxied call into a Lua value,
// grounded on the same primitive-by-value / table-by-reflection mapping the
// script host's event payloads use.
func toLua(L *lua.LState, value interface{}) lua.LValue {
	if value == nil {
		return lua.LNil
	}
	switch v := value.(type) {
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []byte:
		return lua.LString(string(v))
	case map[string]interface{}:
		table := L.NewTable()
		for k, val := range v {
			table.RawSetString(k, toLua(L, val))
		}
		return table
	case []interface{}:
		table := L.NewTable()
		for i, val := range v {
			table.RawSetInt(i+1, toLua(L, val))
		}
		return table
	case error:
		return lua.LString(v.Error())
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// fromLua converts a Lua value passed into a proxied call into a plain Go
// value suitable for reflect.Call arguments.
func fromLua(value lua.LValue) interface{} {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		maxN := 0
		v.ForEach(func(key, _ lua.LValue) {
			if num, ok := key.(lua.LNumber); ok && int(num) > maxN {
				maxN = int(num)
			}
		})
		if maxN > 0 {
			arr := make([]interface{}, maxN)
			v.ForEach(func(key, val lua.LValue) {
				if num, ok := key.(lua.LNumber); ok {
					arr[int(num)-1] = fromLua(val)
				}
			})
			return arr
		}
		obj := make(map[string]interface{})
		v.ForEach(func(key, val lua.LValue) {
			if str, ok := key.(lua.LString); ok {
				obj[string(str)] = fromLua(val)
			}
		})
		return obj
	default:
		return value.String()
	}
}
