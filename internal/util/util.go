package util

import (
	"github.com/mvaladares/solarman2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		InverterModbusTcp: config.InverterModbusTCPConfig{
			Host:          "-.-.-.-",
			Port:          502,
			UnitId:        1,
			TimeoutMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "solarman2mqtt",
		},
		ControlConfig: config.ControlConfig{
			DefaultDurationMinutes: 60,
			MaxPowerWatt:           24000,
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis: 5000,
		},
		Port: 8080,
	}
}
