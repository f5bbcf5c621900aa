package scripthost

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestSandboxRemovesDisallowedGlobals(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	sandbox(L)

	if v := L.GetGlobal("io"); v != lua.LNil {
		t.Fatalf("expected io to be removed, got %v", v)
	}
	if v := L.GetGlobal("os"); v == lua.LNil {
		t.Fatalf("expected os table to survive filtered")
	}
}

func TestSandboxFiltersTableMembers(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	sandbox(L)

	osTable, ok := L.GetGlobal("os").(*lua.LTable)
	if !ok {
		t.Fatal("expected os to remain a table")
	}
	if osTable.RawGetString("execute") != lua.LNil {
		t.Fatal("expected os.execute to be stripped")
	}
	if osTable.RawGetString("time") == lua.LNil {
		t.Fatal("expected os.time to survive")
	}
}

func TestListModuleNewAndSlice(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	sandbox(L)
	if err := installSleep(L); err != nil {
		t.Fatalf("installSleep: %v", err)
	}

	err := L.DoString(`
		l = list.new(1, 2, 3, 4, 5)
		s = list.slice(l, 2, 4)
		result = #s
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := L.GetGlobal("result")
	if lua.LVAsNumber(result) != 3 {
		t.Fatalf("expected slice of length 3, got %v", result)
	}
}
