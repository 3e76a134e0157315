// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"strings"
)

// Event type discriminators as they appear on the wire.
const (
	TypeGameStart    = "gameStart"
	TypeChallenge    = "challenge"
	TypeUnrecognized = "unrecognized"
)

// Event is one decoded stream event. Exactly one concrete type backs each
// value: GameStart, Challenge, or Unrecognized.
type Event interface {
	// EventType returns the wire discriminator of the event.
	EventType() string
}

// GameStart signals that an accepted game has begun.
type GameStart struct {
	GameID     string
	OpponentID string
}

// EventType implements Event.
func (GameStart) EventType() string { return TypeGameStart }

// Challenge is an incoming challenge awaiting an admission decision.
type Challenge struct {
	ChallengeID  string
	Status       string
	ChallengerID string
	VariantKey   string
	TimeControl  TimeControl
}

// EventType implements Event.
func (Challenge) EventType() string { return TypeChallenge }

// TimeControl kinds. Only clock games carry limit/increment values.
const (
	TimeControlClock          = "clock"
	TimeControlUnlimited      = "unlimited"
	TimeControlCorrespondence = "correspondence"
)

// TimeControl describes the clock parameters of a challenge.
type TimeControl struct {
	Type          string
	LimitSecs     int
	IncrementSecs int
}

// Unrecognized wraps any line that did not decode into a known event. The
// stream must keep flowing regardless of schema drift on the remote side,
// so unknown shapes are preserved rather than rejected.
type Unrecognized struct {
	Raw string
}

// EventType implements Event.
func (Unrecognized) EventType() string { return TypeUnrecognized }

// Wire shapes of the remote NDJSON event schema. Only the fields we route
// on are decoded; everything else is ignored.
type wireEnvelope struct {
	Type      string        `json:"type"`
	Game      *wireGame     `json:"game"`
	Challenge *wireChallenge `json:"challenge"`
}

type wireGame struct {
	ID       string    `json:"id"`
	Opponent *wireUser `json:"opponent"`
}

type wireChallenge struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	Challenger  *wireUser        `json:"challenger"`
	Variant     wireVariant      `json:"variant"`
	TimeControl *wireTimeControl `json:"timeControl"`
}

type wireUser struct {
	ID string `json:"id"`
}

type wireVariant struct {
	Key string `json:"key"`
}

type wireTimeControl struct {
	Type      string `json:"type"`
	Limit     int    `json:"limit"`
	Increment int    `json:"increment"`
}

// Parse decodes one non-blank stream line into an Event. It is total:
// malformed JSON, unknown discriminators, and missing payloads all map to
// Unrecognized, never to an error.
func Parse(line string) Event {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Unrecognized{Raw: line}
	}

	var envelope wireEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return Unrecognized{Raw: line}
	}

	switch envelope.Type {
	case TypeGameStart:
		if envelope.Game == nil || envelope.Game.ID == "" {
			return Unrecognized{Raw: line}
		}
		gs := GameStart{GameID: envelope.Game.ID}
		if envelope.Game.Opponent != nil {
			gs.OpponentID = envelope.Game.Opponent.ID
		}
		return gs

	case TypeChallenge:
		c := envelope.Challenge
		if c == nil || c.ID == "" {
			return Unrecognized{Raw: line}
		}
		challenge := Challenge{
			ChallengeID: c.ID,
			Status:      c.Status,
			VariantKey:  c.Variant.Key,
		}
		if c.Challenger != nil {
			challenge.ChallengerID = c.Challenger.ID
		}
		if c.TimeControl != nil {
			challenge.TimeControl = TimeControl{
				Type:          c.TimeControl.Type,
				LimitSecs:     c.TimeControl.Limit,
				IncrementSecs: c.TimeControl.Increment,
			}
		}
		return challenge

	default:
		return Unrecognized{Raw: line}
	}
}
