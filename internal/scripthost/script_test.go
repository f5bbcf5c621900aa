package scripthost

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func writeScript(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func waitForState(t *testing.T, s *Script, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, got %s", want, s.State())
}

func TestScriptLoadsAndAcceptsDeclaredSignal(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "basic.lua", `
		seen = 0
		function onInit()
			seen = 1
		end
		function onTick()
			seen = seen + 1
		end
	`)

	s := New(path, nil, nil, nil)
	s.Start()
	defer s.Shutdown()

	waitForState(t, s, StateIdle)

	s.Call("onTick")
	waitForState(t, s, StateIdle)

	s.Call("onUnknownSignal")
	waitForState(t, s, StateIdle)
}

func TestScriptErrorStateOnBadSource(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "broken.lua", `this is not valid lua (`)

	s := New(path, nil, nil, nil)
	s.Start()
	defer s.Shutdown()

	waitForState(t, s, StateError)
}

func TestScriptCooperativeSleepResumes(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "sleeper.lua", `
		resumed = false
		function onInit()
			sleep(10)
			resumed = true
		end
	`)

	s := New(path, nil, nil, nil)
	s.Start()
	defer s.Shutdown()

	waitForState(t, s, StateIdle)
	// onInit yields inside sleep(10); give the timer time to fire and
	// re-enqueue the coroutine.
	time.Sleep(100 * time.Millisecond)
	waitForState(t, s, StateIdle)

	s.mu.Lock()
	L := s.L
	s.mu.Unlock()
	if v := L.GetGlobal("resumed"); v != lua.LTrue {
		t.Fatalf("expected onInit to resume after sleep, resumed = %v", v)
	}
}
