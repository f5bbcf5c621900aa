package scripthost

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	lua "github.com/yuin/gopher-lua"

	"homescript-controller/internal/bridge"
	"homescript-controller/internal/logsink"
)

// queueCapacity is the initial capacity of each script's task queue. The
// queue grows past it as needed, so Call never blocks the caller.
const queueCapacity = 256

// Script supervises one sandboxed Lua interpreter: its own goroutine, its
// own FIFO task queue, and its own whitelist of acceptable onXxx signals.
type Script struct {
	filename string
	name     string

	hub           *logsink.Hub
	proxy         *bridge.Proxy
	deviceManager interface{}

	mu             sync.Mutex
	state          State
	L              *lua.LState
	allowedSignals map[string]struct{}
	sleepTimers    map[*lua.LState]*time.Timer

	tasks *queue.PriorityQueue
	seq   int64

	wg sync.WaitGroup
}

// New creates a script supervisor for the Lua file at filename. deviceManager
// is wrapped by the cross-thread attribute bridge and exposed to the script
// as the `deviceManager` global.
func New(filename string, hub *logsink.Hub, proxy *bridge.Proxy, deviceManager interface{}) *Script {
	return &Script{
		filename:      filename,
		name:          filepath.Base(filename),
		hub:           hub,
		proxy:         proxy,
		deviceManager: deviceManager,
		state:         StateClosed,
		sleepTimers:   make(map[*lua.LState]*time.Timer),
		tasks:         queue.NewPriorityQueue(queueCapacity, true),
	}
}

// Name returns the script's base filename.
func (s *Script) Name() string {
	return s.name
}

// State returns the script's current lifecycle stage.
func (s *Script) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Script) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Start launches the worker goroutine and schedules the initial load.
func (s *Script) Start() {
	s.wg.Add(1)
	go s.run()
	s.Reload()
}

// Reload schedules the script file to be re-read and re-executed from a
// fresh interpreter, once any calls already queued ahead of it have run.
func (s *Script) Reload() {
	s.enqueue(task{kind: taskReload})
}

// Shutdown schedules the script's worker to exit once its queue drains, and
// blocks until it does.
func (s *Script) Shutdown() {
	s.enqueue(task{kind: taskClose})
	s.wg.Wait()
}

// Call schedules name to run as a fresh coroutine with args, provided the
// script is alive and has declared it accepts that signal (by defining a
// top-level function of that name). Calls to unrecognized or unaccepted
// signals are silently dropped, matching a script that simply doesn't
// implement that hook.
func (s *Script) Call(name string, args ...interface{}) {
	state := s.State()
	if state != StateRunning && state != StateIdle {
		return
	}

	s.mu.Lock()
	_, allowed := s.allowedSignals[name]
	L := s.L
	s.mu.Unlock()
	if !allowed || L == nil {
		return
	}

	luaArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		luaArgs[i] = bridge.ToLua(L, a)
	}
	s.enqueue(task{kind: taskCall, fnName: name, args: luaArgs})
}

func (s *Script) enqueue(t task) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	_ = s.tasks.Put(taskItem{seq: seq, task: t})
}

func (s *Script) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if s.hub != nil {
		s.hub.Log(s.name, msg)
	}
}

func (s *Script) run() {
	defer s.wg.Done()
	for {
		items, err := s.tasks.Get(1)
		if err != nil {
			return // queue disposed
		}
		item := items[0].(taskItem)

		switch item.task.kind {
		case taskClose:
			s.performClose()
			return
		case taskReload:
			s.performLoad()
		case taskCall:
			s.performCall(item.task)
		}
	}
}

func (s *Script) performClose() {
	s.abortSleepTimers()
	s.setState(StateClosed)
	s.tasks.Dispose()
	s.logf("script %s unloaded", s.name)
}

func (s *Script) performLoad() {
	s.setState(StateLoading)
	s.abortSleepTimers()

	data, err := os.ReadFile(s.filename)
	if err != nil {
		s.setState(StateError)
		s.logf("could not read script %s: %v", s.name, err)
		return
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	s.registerPrint(L)
	sandbox(L)
	if err := installSleep(L); err != nil {
		s.setState(StateError)
		s.logf("could not install sleep() in %s: %v", s.name, err)
		return
	}
	s.registerSuspend(L)
	s.bindDeviceManager(L)

	s.mu.Lock()
	s.L = L
	s.mu.Unlock()

	s.setState(StateRunning)
	if err := L.DoString(string(data)); err != nil {
		s.setState(StateError)
		s.logf("could not execute lua script %s: %v", s.name, err)
		return
	}

	s.collectSignals(L)
	s.setState(StateIdle)
	s.logf("script %s loaded", s.name)
	s.Call("onInit")
}

// registerPrint mirrors the original print(msg, *args): the first argument
// is a format string applied against the rest printf-style, falling back to
// the raw message if formatting fails (LuaScript.py:119-124's `msg % args`
// / except: logMsg = msg).
func (s *Script) registerPrint(L *lua.LState) {
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		if n == 0 {
			s.logf("")
			return 0
		}
		msg := lua.LVAsString(L.Get(1))
		args := make([]interface{}, 0, n-1)
		for i := 2; i <= n; i++ {
			args = append(args, bridge.FromLua(L.Get(i)))
		}
		s.logf("%s", formatLogMessage(msg, args))
		return 0
	}))
}

func formatLogMessage(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	formatted := fmt.Sprintf(msg, args...)
	if strings.Contains(formatted, "%!") {
		return msg
	}
	return formatted
}

func (s *Script) bindDeviceManager(L *lua.LState) {
	if s.proxy == nil || s.deviceManager == nil {
		return
	}
	L.SetGlobal("deviceManager", s.proxy.Wrap(L, s.deviceManager))
}

// registerSuspend implements the host side of sleep(): gopher-lua invokes a
// registered Go function with the LState of whichever coroutine is
// currently executing it, so the L parameter here doubles as the routine
// handle to re-enqueue once the timer elapses.
func (s *Script) registerSuspend(L *lua.LState) {
	L.SetGlobal("suspend", L.NewFunction(func(co *lua.LState) int {
		ms := co.CheckNumber(1)
		s.scheduleSleep(co, time.Duration(float64(ms))*time.Millisecond)
		return 0
	}))
}

func (s *Script) scheduleSleep(co *lua.LState, d time.Duration) {
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.removeSleepTimer(co)
		s.enqueue(task{kind: taskCall, thread: co})
	})
	s.mu.Lock()
	s.sleepTimers[co] = timer
	s.mu.Unlock()
}

func (s *Script) removeSleepTimer(co *lua.LState) {
	s.mu.Lock()
	delete(s.sleepTimers, co)
	s.mu.Unlock()
}

func (s *Script) abortSleepTimers() {
	s.mu.Lock()
	timers := s.sleepTimers
	s.sleepTimers = make(map[*lua.LState]*time.Timer)
	s.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}

// collectSignals records which top-level functions named onXxx the script
// defines, so future Call()s need only consult this set rather than touch
// the interpreter from outside the worker goroutine.
func (s *Script) collectSignals(L *lua.LState) {
	signals := make(map[string]struct{})
	L.G.Global.ForEach(func(k, v lua.LValue) {
		name := k.String()
		if !strings.HasPrefix(name, "on") {
			return
		}
		if _, ok := v.(*lua.LFunction); ok {
			signals[name] = struct{}{}
		}
	})
	s.mu.Lock()
	s.allowedSignals = signals
	s.mu.Unlock()
}

func (s *Script) performCall(t task) {
	s.mu.Lock()
	L := s.L
	s.mu.Unlock()
	if L == nil {
		return
	}

	var co *lua.LState
	if t.thread != nil {
		co = t.thread
	} else {
		fnVal := L.GetGlobal(t.fnName)
		fn, ok := fnVal.(*lua.LFunction)
		if !ok {
			return
		}
		created, err := createCoroutine(L, fn)
		if err != nil {
			s.logf("could not start %s: %v", t.fnName, err)
			return
		}
		co = created
	}

	s.setState(StateRunning)
	ok, errMsg := resumeCoroutine(L, co, t.args)
	if !ok {
		label := t.fnName
		if label == "" {
			label = "<resumed routine>"
		}
		s.logf("could not execute function %s: %s", label, errMsg)
	}
	if s.State() != StateError {
		s.setState(StateIdle)
	}
}

// createCoroutine drives the sandboxed `coroutine.create` function rather
// than a Go-level thread API, so cooperative scheduling stays entirely
// inside the whitelist-enforced Lua runtime the script itself can see.
func createCoroutine(L *lua.LState, fn *lua.LFunction) (*lua.LState, error) {
	create := L.GetGlobal("coroutine").(*lua.LTable).RawGetString("create")
	if err := L.CallByParam(lua.P{Fn: create, NRet: 1, Protect: true}, fn); err != nil {
		return nil, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	thread, ok := ret.(*lua.LState)
	if !ok {
		return nil, fmt.Errorf("coroutine.create did not return a thread")
	}
	return thread, nil
}

// resumeCoroutine drives the sandboxed `coroutine.resume` function, the
// equivalent of the original's runningLuaThread.send(None).
func resumeCoroutine(L *lua.LState, co *lua.LState, args []lua.LValue) (ok bool, errMsg string) {
	resume := L.GetGlobal("coroutine").(*lua.LTable).RawGetString("resume")
	callArgs := append([]lua.LValue{co}, args...)
	if err := L.CallByParam(lua.P{Fn: resume, NRet: 2, Protect: true}, callArgs...); err != nil {
		return false, err.Error()
	}
	okVal := L.Get(-2)
	errVal := L.Get(-1)
	L.Pop(2)
	ok = lua.LVAsBool(okVal)
	if !ok {
		errMsg = lua.LVAsString(errVal)
	}
	return ok, errMsg
}
