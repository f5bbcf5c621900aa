package bridge

import (
	"fmt"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

type counter struct {
	Value int
}

func (c *counter) Add(n float64) float64 {
	c.Value += int(n)
	return float64(c.Value)
}

func (c *counter) Broken() error {
	return fmt.Errorf("boom")
}

func TestProxyCallRoutesThroughMainLoop(t *testing.T) {
	loop := NewMainLoop(4)
	loop.Start()
	defer loop.Stop()

	proxy := NewProxy(loop)
	L := lua.NewState()
	defer L.Close()

	target := &counter{}
	ud := proxy.Wrap(L, target)
	L.SetGlobal("c", ud)

	if err := L.DoString(`result = c:add(5)`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := L.GetGlobal("result")
	if lua.LVAsNumber(result) != 5 {
		t.Fatalf("expected 5, got %v", result)
	}
	if target.Value != 5 {
		t.Fatalf("expected mutation to land on the wrapped target, got %d", target.Value)
	}
}

func TestProxyCallPropagatesError(t *testing.T) {
	loop := NewMainLoop(4)
	loop.Start()
	defer loop.Stop()

	proxy := NewProxy(loop)
	L := lua.NewState()
	defer L.Close()

	ud := proxy.Wrap(L, &counter{})
	L.SetGlobal("c", ud)

	err := L.DoString(`c:broken()`)
	if err == nil {
		t.Fatal("expected an error from the failing proxied call")
	}
}

func TestProxyUnknownAttributeRaises(t *testing.T) {
	loop := NewMainLoop(4)
	loop.Start()
	defer loop.Stop()

	proxy := NewProxy(loop)
	L := lua.NewState()
	defer L.Close()

	ud := proxy.Wrap(L, &counter{})
	L.SetGlobal("c", ud)

	err := L.DoString(`c:nonexistent()`)
	if err == nil {
		t.Fatal("expected an attribute-not-found error")
	}
}
