package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel          zapcore.Level
	InverterModbusTcp InverterModbusTCPConfig `mapstructure:"inverter_modbus_tcp"`
	MQTT              MQTTConfig              `mapstructure:"mqtt"`

	ControlConfig ControlConfig `mapstructure:"control"`
	MonitorConfig MonitorConfig `mapstructure:"monitor"`
	Port          uint          `mapstructure:"port"`
	HttpLog       bool          `mapstructure:"http_log"`
}

type InverterModbusTCPConfig struct {
	Host          string
	Port          uint
	UnitId        uint   `mapstructure:"unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

type ControlConfig struct {
	// DefaultDurationMinutes is used when a control session is started from
	// the MQTT switch before any value arrived on the duration number.
	DefaultDurationMinutes uint   `mapstructure:"default_duration_minutes"`
	MaxPowerWatt           uint32 `mapstructure:"max_power_watt"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
