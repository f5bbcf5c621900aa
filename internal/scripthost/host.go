package scripthost

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"homescript-controller/internal/bridge"
	"homescript-controller/internal/logger"
	"homescript-controller/internal/logsink"
)

// Host owns every running script in a directory and fans signals out to
// whichever of them declare they accept it.
type Host struct {
	dir           string
	hub           *logsink.Hub
	proxy         *bridge.Proxy
	deviceManager interface{}

	mu      sync.Mutex
	scripts map[string]*Script
}

// NewHost creates a script host that will load *.lua files from dir.
func NewHost(dir string, hub *logsink.Hub, proxy *bridge.Proxy, deviceManager interface{}) *Host {
	return &Host{
		dir:           dir,
		hub:           hub,
		proxy:         proxy,
		deviceManager: deviceManager,
		scripts:       make(map[string]*Script),
	}
}

// LoadAll starts a supervisor for every *.lua file currently in the
// directory.
func (h *Host) LoadAll() error {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return fmt.Errorf("failed to read script directory %s: %w", h.dir, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lua") {
			continue
		}
		path := filepath.Join(h.dir, entry.Name())
		script := New(path, h.hub, h.proxy, h.deviceManager)
		h.scripts[path] = script
		script.Start()
		logger.Info("loading script %s", entry.Name())
	}
	return nil
}

// Broadcast calls name on every loaded script that accepts it.
func (h *Host) Broadcast(name string, args ...interface{}) {
	h.mu.Lock()
	scripts := make([]*Script, 0, len(h.scripts))
	for _, s := range h.scripts {
		scripts = append(scripts, s)
	}
	h.mu.Unlock()

	for _, s := range scripts {
		s.Call(name, args...)
	}
}

// Shutdown stops every script, waiting for each to finish its queue.
func (h *Host) Shutdown() {
	h.mu.Lock()
	scripts := make([]*Script, 0, len(h.scripts))
	for _, s := range h.scripts {
		scripts = append(scripts, s)
	}
	h.mu.Unlock()

	for _, s := range scripts {
		s.Shutdown()
	}
}

// LintFile loads source from path into a throwaway sandboxed interpreter
// and reports any parse or top-level execution error, without starting a
// supervisor goroutine or calling onInit. Used by the `lint` CLI subcommand
// to validate scripts offline.
func LintFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	defer L.Close()

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int { return 0 }))
	sandbox(L)
	if err := installSleep(L); err != nil {
		return fmt.Errorf("failed to install sandbox runtime: %w", err)
	}
	L.SetGlobal("suspend", L.NewFunction(func(L *lua.LState) int { return 0 }))

	if err := L.DoString(string(data)); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
