// Package audit defines the run's tagged-union domain events and the
// append-only JSONL sink each event is written to as it is emitted.
package audit

import (
	"github.com/kairos-alloy/alloy/pkg/types"
)

// EventType discriminates the DomainEvent union.
type EventType string

const (
	EventBarProcessed       EventType = "bar_processed"
	EventOrderScheduled     EventType = "order_scheduled"
	EventOrderActivated     EventType = "order_activated"
	EventOrderFilled        EventType = "order_filled"
	EventTradeExecuted      EventType = "trade_executed"
	EventOrderCanceled      EventType = "order_canceled"
	EventOrderExpired       EventType = "order_expired"
	EventRiskHalted         EventType = "risk_halted"
	EventOrderRejected      EventType = "order_rejected"
	EventAgentCallAttempted EventType = "agent_call_attempted"
	EventAgentFallback      EventType = "agent_fallback"
	EventDataQuality        EventType = "data_quality"
)

// DomainEvent is one fact produced by the kernel during a run. Only
// the fields relevant to Type are populated.
type DomainEvent struct {
	Type         EventType          `json:"type"`
	BarIndex     int                `json:"bar_index"`
	TimestampUTC int64              `json:"timestamp_utc"`
	OrderID      int64              `json:"order_id,omitempty"`
	Trade        *types.Trade       `json:"trade,omitempty"`
	Partial      bool               `json:"partial,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	Equity       *types.EquityPoint `json:"equity,omitempty"`
}

// AuditEvent wraps a DomainEvent with the run-scoped monotonic
// sequence number it was assigned at emission time.
type AuditEvent struct {
	Seq   int64       `json:"seq"`
	Event DomainEvent `json:"event"`
}

// Sequencer assigns strictly increasing sequence numbers to events
// within a single run.
type Sequencer struct {
	next int64
}

// Next wraps event in an AuditEvent with the next sequence number.
func (s *Sequencer) Next(event DomainEvent) AuditEvent {
	s.next++
	return AuditEvent{Seq: s.next, Event: event}
}
