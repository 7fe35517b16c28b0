package actor

import (
	"fmt"
	"time"

	"github.com/mvaladares/solarman2mqtt/internal/core/domain"
	"github.com/mvaladares/solarman2mqtt/internal/core/port"
	"github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"

	"github.com/asynkron/protoactor-go/actor"
)

var _ port.RegisterClient = (*ActorRegisterClient)(nil)

// ActorRegisterClient exposes the modbus actor as a synchronous register
// client. Each call blocks on a request future, so callers must not run on
// the modbus actor's own goroutine.
type ActorRegisterClient struct {
	system  *actor.ActorSystem
	modbus  *actor.PID
	timeout time.Duration
}

func NewActorRegisterClient(system *actor.ActorSystem, modbus *actor.PID, timeout time.Duration) *ActorRegisterClient {
	return &ActorRegisterClient{
		system:  system,
		modbus:  modbus,
		timeout: timeout,
	}
}

func (c *ActorRegisterClient) Execute(functionCode uint8, address uint16, data []uint16, count uint16) ([]uint16, error) {
	switch functionCode {
	case solarman_modbus.FnReadHoldingRegisters:
		resp, err := c.request(domain.ReadRegistersRequest{Address: address, Count: count})
		if err != nil {
			return nil, err
		}
		read, ok := resp.(domain.ReadRegistersResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected response type %T", resp)
		}
		if read.HasResponseError() {
			return nil, read.GetResponseError()
		}
		return read.Values, nil
	case solarman_modbus.FnWriteMultipleRegisters:
		resp, err := c.request(domain.WriteRegistersRequest{Address: address, Values: data})
		if err != nil {
			return nil, err
		}
		write, ok := resp.(domain.WriteRegistersResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected response type %T", resp)
		}
		if write.HasResponseError() {
			return nil, write.GetResponseError()
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported function code 0x%02x", functionCode)
	}
}

func (c *ActorRegisterClient) request(msg any) (any, error) {
	future := c.system.Root.RequestFuture(c.modbus, msg, c.timeout)
	return future.Result()
}
