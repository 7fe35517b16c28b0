package domain

import "github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"

type GetDeviceInfoRequest struct {
	ActorRequestMixIn
}

type GetDeviceInfoResponse struct {
	ActorResponseMixIn
	Info *solarman_modbus.DeviceInfo
}

type GetBatteryTelemetryRequest struct {
	ActorRequestMixIn
}

type GetBatteryTelemetryResponse struct {
	ActorResponseMixIn
	Telemetry *solarman_modbus.BatteryTelemetry
}

// ReadRegistersRequest reads count holding registers starting at Address.
type ReadRegistersRequest struct {
	ActorRequestMixIn
	Address uint16
	Count   uint16
}

type ReadRegistersResponse struct {
	ActorResponseMixIn
	Address uint16
	Values  []uint16
}

// WriteRegistersRequest writes Values starting at Address with the
// write-multiple-registers function code.
type WriteRegistersRequest struct {
	ActorRequestMixIn
	Address uint16
	Values  []uint16
}

type WriteRegistersResponse struct {
	ActorResponseMixIn
}

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
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
