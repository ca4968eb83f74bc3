package realtime

import (
	"encoding/json"
	"sync"

	"oishi/internal/dto"
)

// MovementFeed is the local list of a shift's cash movements, newest first,
// kept current by merging change events instead of reloading.
type MovementFeed struct {
	mu      sync.RWMutex
	shiftID string
	items   []dto.MovimientoResponse
}

func NewMovementFeed(shiftID string, initial []dto.MovimientoResponse) *MovementFeed {
	items := make([]dto.MovimientoResponse, len(initial))
	copy(items, initial)
	return &MovementFeed{shiftID: shiftID, items: items}
}

// Apply merges ev. INSERT prepends, UPDATE replaces in place, DELETE removes by
// id. Events for other shifts or tables are ignored. Returns whether the list changed.
func (f *MovementFeed) Apply(ev Event) bool {
	if ev.Table != TablaMovimientos {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shiftID != "" && ev.ShiftID != f.shiftID {
		return false
	}

	idx := f.indexOf(ev.ID)
	switch ev.Type {
	case Delete:
		if idx < 0 {
			return false
		}
		f.items = append(f.items[:idx], f.items[idx+1:]...)
		return true
	case Insert, Update:
		var mov dto.MovimientoResponse
		if err := json.Unmarshal(ev.Record, &mov); err != nil || mov.ID == "" {
			return false
		}
		if idx >= 0 {
			f.items[idx] = mov
			return true
		}
		f.items = append([]dto.MovimientoResponse{mov}, f.items...)
		return true
	}
	return false
}

func (f *MovementFeed) indexOf(id string) int {
	for i, m := range f.items {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Items returns a copy of the current list.
func (f *MovementFeed) Items() []dto.MovimientoResponse {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]dto.MovimientoResponse, len(f.items))
	copy(out, f.items)
	return out
}

// Reset replaces the list, e.g. after reconnecting.
func (f *MovementFeed) Reset(shiftID string, items []dto.MovimientoResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shiftID = shiftID
	f.items = make([]dto.MovimientoResponse, len(items))
	copy(f.items, items)
}
