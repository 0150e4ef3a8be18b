package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MODBUS       = "modbus"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_OPTIMIZER    = "optimizer"
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

func ErrorResponse(err error) ActorResponseMixIn {
	return ActorResponseMixIn{ResponseError: err}
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// MQTT publishing

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	InputNumbers []GenericInputNumber
	Selects      []GenericSelect
	Buttons      []GenericButton
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Entity state store

// EntityStateUpdateRequest changes one entity. A nil State keeps the current state;
// ReplaceAttributes drops attributes not present in Attributes.
type EntityStateUpdateRequest struct {
	ActorRequestMixIn
	EntityId          string
	State             *string
	Attributes        map[string]any
	ReplaceAttributes bool
}

type EntityStateUpdateResponse struct {
	ActorResponseMixIn
	State EntityState
}

type GetEntityStateRequest struct {
	ActorRequestMixIn
	EntityId string
}

type GetEntityStateResponse struct {
	ActorResponseMixIn
	State EntityState
	Found bool
}

type ListEntityStatesRequest struct {
	ActorRequestMixIn
}

type ListEntityStatesResponse struct {
	ActorResponseMixIn
	States []EntityState
}

type DeleteEntityStateRequest struct {
	ActorRequestMixIn
	EntityId string
}

type DeleteEntityStateResponse struct {
	ActorResponseMixIn
	Found bool
}

// Optimizer state

type GetSnapshotRequest struct {
	ActorRequestMixIn
}

type GetSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot  *Snapshot
	Config    OptimizerConfig
	Available bool
}
