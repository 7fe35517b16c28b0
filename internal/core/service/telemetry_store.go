package service

import (
	"sync"

	"github.com/mvaladares/solarman2mqtt/internal/core/port"
	"github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"
)

// TelemetryStore caches the last successful device reads. The monitor actor
// writes it on every poll; the session manager reads the rated power from it
// at session start.
type TelemetryStore struct {
	mu      sync.RWMutex
	info    *solarman_modbus.DeviceInfo
	battery *solarman_modbus.BatteryTelemetry
}

func NewTelemetryStore() *TelemetryStore {
	return &TelemetryStore{}
}

func (s *TelemetryStore) SetDeviceInfo(info *solarman_modbus.DeviceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

func (s *TelemetryStore) SetBatteryTelemetry(t *solarman_modbus.BatteryTelemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battery = t
}

func (s *TelemetryStore) DeviceInfo() *solarman_modbus.DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

func (s *TelemetryStore) BatteryTelemetry() *solarman_modbus.BatteryTelemetry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.battery
}

func (s *TelemetryStore) RatedPowerWatt() (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil || s.info.RatedPowerWatt == 0 {
		return 0, false
	}
	return s.info.RatedPowerWatt, true
}

// ensure interface compliance
var _ port.TelemetrySource = (*TelemetryStore)(nil)
