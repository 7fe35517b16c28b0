package domain

import (
	"fmt"
	"time"
)

// ControlRequest

type ControlRequest interface {
	ActorRequest
	ControlCommand() string
}

type ControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r ControlRequestMixIn) ControlCommand() string {
	return fmt.Sprintf("%T", r)
}

// ControlResponse

type ControlResponse interface {
	ActorResponse
	ControlResponse() string
}

type ControlResponseMixIn struct {
	ActorResponse
}

func (r ControlResponseMixIn) ControlResponse() string {
	return fmt.Sprintf("%T", r)
}

// Control commands

// ControlStartRequest opens a remote-control session. A session already in
// progress is stopped first, so the final state reflects these parameters.
type ControlStartRequest struct {
	ControlRequestMixIn
	PowerWatts      int
	DurationMinutes int
}

type ControlStartResponse struct {
	ControlResponseMixIn
	PowerWatts      int
	DurationMinutes int
}

type ControlStopRequest struct {
	ControlRequestMixIn
}

type ControlStopResponse struct {
	ControlResponseMixIn
}

type ControlSetPowerRequest struct {
	ControlRequestMixIn
	PowerWatts float64
}

type ControlSetDurationRequest struct {
	ControlRequestMixIn
	DurationMinutes float64
}

type ControlGetStateRequest struct {
	ControlRequestMixIn
}

type ControlGetStateResponse struct {
	ControlResponseMixIn
	Active              bool
	EndsAt              time.Time
	TargetPowerPermille int16
}

// ensure interface compliance
var _ ControlRequest = (*ControlStartRequest)(nil)
var _ ControlRequest = (*ControlStopRequest)(nil)
