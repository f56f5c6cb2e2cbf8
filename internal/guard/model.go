package guard

import (
	"time"

	"github.com/linnemanlabs/shadowguard/internal/phi"
	"github.com/linnemanlabs/shadowguard/internal/risk"
)

// EventStatus tracks operator handling of a detection event.
type EventStatus string

const (
	// StatusActive means recorded, not yet handled by an operator
	StatusActive EventStatus = "active"

	// StatusMitigated means an operator took containment action
	StatusMitigated EventStatus = "mitigated"

	// StatusResolved means the event is closed
	StatusResolved EventStatus = "resolved"
)

// ValidEventStatus reports whether s is a known operator status.
func ValidEventStatus(s EventStatus) bool {
	switch s {
	case StatusActive, StatusMitigated, StatusResolved:
		return true
	}
	return false
}

// Event is the record of one scanned request's detection and decision
// outcome. Immutable after finalize except Status (operator action) and
// CallRef (set once by the dispatcher, updated in place as the call
// progresses).
type Event struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	SourceID     string           `json:"source_id"`
	Service      string           `json:"service"`
	Method       string           `json:"method"`
	Path         string           `json:"path,omitempty"`
	UserAgent    string           `json:"user_agent,omitempty"`
	Score        int              `json:"score"`
	Severity     risk.Severity    `json:"severity"`
	Action       risk.Action      `json:"action"`
	FindingTypes []phi.EntityType `json:"finding_types,omitempty"`
	FindingCount int              `json:"finding_count"`
	OriginalText string           `json:"original_text,omitempty"`
	RedactedText string           `json:"redacted_text,omitempty"`
	Status       EventStatus      `json:"status"`
	CallRef      *CallRecord      `json:"call_ref,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// CallStatus tracks where an escalation call is in its lifecycle.
type CallStatus string

const (
	// CallPending means created, not yet submitted to the provider
	CallPending CallStatus = "pending"

	// CallDispatched means the provider acknowledged the submission
	CallDispatched CallStatus = "dispatched"

	// CallCompleted means the provider reported a successful outcome
	CallCompleted CallStatus = "completed"

	// CallFailed means submission or delivery failed
	CallFailed CallStatus = "failed"
)

// CallRecord is the lifecycle record of one escalation paging attempt. Owned
// by the dispatcher; referenced, not owned, by the Event it escalates.
type CallRecord struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	SourceID       string     `json:"source_id"`
	Status         CallStatus `json:"status"`
	ProviderCallID string     `json:"provider_call_id,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
