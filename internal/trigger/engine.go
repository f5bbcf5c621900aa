package trigger

import (
	"sync"
	"time"

	"homescript-controller/internal/logger"
)

// pollInterval mirrors the 5-second poll the original scheduler used
// instead of a tight per-second loop — minute boundaries don't need
// sub-second precision.
const pollInterval = 5 * time.Second

// Engine drives an Index forward in time: once a minute it looks at the
// bucket for the current minute in the engine's location, fires every
// trigger whose hour also matches, and relocates any suntime trigger whose
// recalculation moved it.
type Engine struct {
	index    *Index
	location *time.Location

	lastMinute int
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewEngine creates a trigger engine that evaluates buckets in location's
// local time for the purposes of hour comparisons.
func NewEngine(index *Index, location *time.Location) *Engine {
	return &Engine{
		index:      index,
		location:   location,
		lastMinute: -1,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the background polling loop.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.run()
	logger.Info("trigger engine started")
}

// Stop halts the polling loop and waits for it to exit.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
	logger.Info("trigger engine stopped")
}

func (e *Engine) run() {
	defer e.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case now := <-ticker.C:
			e.tick(now)
		}
	}
}

func (e *Engine) tick(now time.Time) {
	local := now.In(e.location)
	minute := local.Minute()
	if minute == e.lastMinute {
		return
	}
	e.lastMinute = minute
	e.processBucket(minute, local)
}

func (e *Engine) processBucket(minute int, local time.Time) {
	triggers := e.index.Snapshot(minute)
	var relocate []Trigger

	for _, t := range triggers {
		if t.Hour() != everyHour && t.Hour() != local.Hour() {
			continue
		}

		triggerType := "time"
		switch st := t.(type) {
		case *BlockheaterTrigger:
			triggerType = "blockheater"
		case *SuntimeTrigger:
			triggerType = "suntime"
			if st.Recalculate(local.UTC()) {
				relocate = append(relocate, t)
			}
		}

		if t.Active() {
			t.Fire(map[string]string{"triggertype": triggerType})
		}
	}

	for _, t := range relocate {
		e.index.Relocate(t, minute)
	}
}
