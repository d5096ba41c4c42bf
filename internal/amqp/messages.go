package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to an invoice.
type EventType string

const (
	EventCreated       EventType = "created"
	EventUpdated       EventType = "updated"
	EventStatusChanged EventType = "status_changed"
	EventDeleted       EventType = "deleted"
	EventPaymentLink   EventType = "payment_link"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventStatusChanged, EventDeleted, EventPaymentLink:
		return true
	}
	return false
}

// InvoiceEvent carries only identifiers; consumers read the current row
// from the store.
type InvoiceEvent struct {
	Type      EventType `json:"type"`
	InvoiceID int64     `json:"invoice_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewInvoiceEvent(t EventType, userID, invoiceID int64) *InvoiceEvent {
	return &InvoiceEvent{
		Type:      t,
		InvoiceID: invoiceID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

func (e *InvoiceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// InvoiceEventFromJSON rejects unknown event types and missing ids.
func InvoiceEventFromJSON(data []byte) (*InvoiceEvent, error) {
	var e InvoiceEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.InvoiceID <= 0 || e.UserID <= 0 {
		return nil, fmt.Errorf("event %q missing ids", e.Type)
	}
	return &e, nil
}
