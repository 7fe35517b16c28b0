package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

// Actor identifiers, also used as spawn names under the master.
const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MODBUS       = "modbus"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_MONITOR      = "monitor"
	ACTOR_ID_CONTROL      = "control"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}
