package deadletter

import "time"

// AlertStage tells operators how far the failure path got.
type AlertStage string

const (
	// AlertStageDeadLettered means the write landed in the dead-letter store.
	AlertStageDeadLettered AlertStage = "DEAD_LETTERED"
	// AlertStageStuckOpen means even the dead-letter write failed; only memory holds the record.
	AlertStageStuckOpen AlertStage = "STUCK_OPEN"
)

// Alert is the message published to the failure-alert topic.
type Alert struct {
	Stage          AlertStage `json:"stage"`
	IdempotencyKey string     `json:"idempotency_key"`
	EventType      EventType  `json:"event_type"`
	DeadLetterID   int64      `json:"dead_letter_id,omitempty"`
	Reason         string     `json:"reason"`
	Payload        Payload    `json:"payload"`
	OccurredAt     time.Time  `json:"occurred_at"`
}
