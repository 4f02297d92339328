package models

import "time"

// EventType discriminates CompetitionEvent. The dispatch switch in the
// integration service handles every constant listed here.
type EventType string

const (
	EventParticipantJoined  EventType = "participant_joined"
	EventActivityRecorded   EventType = "activity_recorded"
	EventRankChanged        EventType = "rank_changed"
	EventCompetitionStarted EventType = "competition_started"
	EventCompetitionEnded   EventType = "competition_ended"
)

// LifecyclePhase labels season transition fan-outs.
type LifecyclePhase string

const (
	PhaseStarted    LifecyclePhase = "started"
	PhaseEndingSoon LifecyclePhase = "ending_soon"
	PhaseEnded      LifecyclePhase = "ended"
)

// CompetitionEvent lives only in process memory: created, queued, drained,
// discarded. Queue contents are lost on restart; there is no durable outbox,
// and the scoring path never waits on event delivery.
type CompetitionEvent struct {
	Type          EventType              `json:"type"`
	UserID        string                 `json:"user_id,omitempty"`
	CompetitionID string                 `json:"competition_id"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}
