// Package realtime carries table change notifications between API instances,
// the SSE endpoint and the kitchen display over Redis pub/sub.
package realtime

import (
	"encoding/json"
	"time"
)

// Tables that publish changes.
const (
	TablaPedidos     = "orders"
	TablaMovimientos = "cash_movements"
)

// Change types.
const (
	Insert = "INSERT"
	Update = "UPDATE"
	Delete = "DELETE"
)

const channelPrefix = "realtime:"

// Event is one row change. Record holds the row after the change (empty on DELETE).
type Event struct {
	Table   string          `json:"table"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	ShiftID string          `json:"shift_id,omitempty"`
	Record  json.RawMessage `json:"record,omitempty"`
	At      time.Time       `json:"at"`
}

// NewEvent builds an event, encoding record as JSON. An unencodable record is dropped.
func NewEvent(table, typ, id string, record any) Event {
	ev := Event{Table: table, Type: typ, ID: id, At: time.Now().UTC()}
	if record != nil {
		if b, err := json.Marshal(record); err == nil {
			ev.Record = b
		}
	}
	return ev
}

// WithShift scopes a cash movement event to its shift.
func (e Event) WithShift(shiftID string) Event {
	e.ShiftID = shiftID
	return e
}

// Channel is the Redis channel for a table.
func Channel(table string) string { return channelPrefix + table }

// Filter narrows a subscription. Empty fields match everything.
type Filter struct {
	ShiftID string
}

func (f Filter) match(ev Event) bool {
	return f.ShiftID == "" || f.ShiftID == ev.ShiftID
}
