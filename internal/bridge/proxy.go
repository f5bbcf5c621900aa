package bridge

import (
	"fmt"
	"reflect"
	"time"
	"unicode"

	lua "github.com/yuin/gopher-lua"
)

// callTimeout bounds how long a script will block waiting for a proxied
// call to run on the main thread before it gives up with an error, so a
// stalled host call can never hang a script forever.
const callTimeout = 20 * time.Second

// Proxy exposes arbitrary Go objects to sandboxed Lua code. Every method
// call is marshalled onto a MainLoop so host state is only ever touched
// from one goroutine; every field write is too. Lua code addresses methods
// and fields by their lowerCamelCase name; Proxy title-cases it to find the
// matching exported Go member.
type Proxy struct {
	loop *MainLoop
}

// NewProxy creates an attribute bridge that marshals calls through loop.
func NewProxy(loop *MainLoop) *Proxy {
	return &Proxy{loop: loop}
}

// Wrap returns Lua userdata backed by target, with __index/__newindex
// routed through the bridge. Scripts see it as an opaque object whose
// methods they can call and whose exported fields they can read or write.
func (p *Proxy) Wrap(L *lua.LState, target interface{}) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = target

	mt := L.NewTable()
	mt.RawSetString("__index", L.NewFunction(p.index))
	mt.RawSetString("__newindex", L.NewFunction(p.newindex))
	L.SetMetatable(ud, mt)
	return ud
}

func exportName(key string) string {
	if key == "" {
		return key
	}
	r := []rune(key)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func (p *Proxy) index(L *lua.LState) int {
	ud := L.CheckUserData(1)
	key := L.CheckString(2)
	target := ud.Value

	rv := reflect.ValueOf(target)
	name := exportName(key)

	if method := rv.MethodByName(name); method.IsValid() {
		bound := method
		L.Push(L.NewFunction(func(inner *lua.LState) int {
			return p.call(inner, bound, key)
		}))
		return 1
	}

	elem := rv
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() == reflect.Struct {
		if field := elem.FieldByName(name); field.IsValid() && field.CanInterface() {
			L.Push(toLua(L, field.Interface()))
			return 1
		}
	}

	L.RaiseError("attribute not found: %s", key)
	return 0
}

func (p *Proxy) newindex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	key := L.CheckString(2)
	value := fromLua(L.Get(3))
	target := ud.Value
	name := exportName(key)

	p.loop.Enqueue(func() {
		rv := reflect.ValueOf(target)
		if rv.Kind() == reflect.Ptr {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return
		}
		field := rv.FieldByName(name)
		if !field.IsValid() || !field.CanSet() {
			return
		}
		converted := reflect.ValueOf(value)
		if converted.IsValid() && converted.Type().ConvertibleTo(field.Type()) {
			field.Set(converted.Convert(field.Type()))
		}
	})
	return 0
}

// call marshals a bound method invocation onto the main loop and blocks the
// calling script goroutine until it completes or times out.
func (p *Proxy) call(L *lua.LState, method reflect.Value, name string) int {
	// Lua's colon-call syntax (c:add(5)) desugars to c.add(c, 5), so arg 1
	// is always the receiver userdata itself, already bound via the
	// closure's captured `method` — skip it rather than passing it through.
	top := L.GetTop()
	args := make([]interface{}, 0, top)
	for i := 2; i <= top; i++ {
		args = append(args, fromLua(L.Get(i)))
	}

	type outcome struct {
		values []interface{}
		err    error
	}
	done := make(chan outcome, 1)

	p.loop.Enqueue(func() {
		out := outcome{}
		defer func() {
			if r := recover(); r != nil {
				out.err = fmt.Errorf("%v", r)
			}
			done <- out
		}()

		methodType := method.Type()
		callArgs := make([]reflect.Value, 0, methodType.NumIn())
		for i := 0; i < methodType.NumIn(); i++ {
			paramType := methodType.In(i)
			if i < len(args) {
				av := reflect.ValueOf(args[i])
				if av.IsValid() && av.Type().ConvertibleTo(paramType) {
					callArgs = append(callArgs, av.Convert(paramType))
					continue
				}
			}
			callArgs = append(callArgs, reflect.Zero(paramType))
		}

		results := method.Call(callArgs)
		values := make([]interface{}, len(results))
		for i, r := range results {
			if err, ok := r.Interface().(error); ok {
				out.err = err
				return
			}
			values[i] = r.Interface()
		}
		out.values = values
	})

	select {
	case res := <-done:
		if res.err != nil {
			L.RaiseError("%s", res.err.Error())
			return 0
		}
		for _, v := range res.values {
			L.Push(toLua(L, v))
		}
		return len(res.values)
	case <-time.After(callTimeout):
		L.RaiseError("the call to the function %q timed out", name)
		return 0
	}
}
