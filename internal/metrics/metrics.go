package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mvaladares/solarman2mqtt/pkg/solarman_modbus"
)

var (
	modbusExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solarman2mqtt_modbus_exchange_duration_seconds",
			Help:    "Duration of Modbus exchanges by operation.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	modbusExchangeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarman2mqtt_modbus_exchange_errors_total",
			Help: "Total failed Modbus exchanges by operation.",
		},
		[]string{"operation"},
	)

	controlSessionStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarman2mqtt_control_session_starts_total",
			Help: "Total control session start attempts by result.",
		},
		[]string{"result"},
	)

	controlSessionEnds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solarman2mqtt_control_session_ends_total",
			Help: "Total control sessions ended for any reason.",
		},
	)

	controlActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solarman2mqtt_control_active",
			Help: "Whether a control session is currently active.",
		},
	)

	controlSetpointWatts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solarman2mqtt_control_setpoint_watts",
			Help: "Last battery power setpoint written, in watts.",
		},
	)
)

// ModbusInstrument returns the hooks the Modbus device layer calls around
// each exchange.
func ModbusInstrument() solarman_modbus.Instrument {
	return solarman_modbus.Instrument{
		RecordTime: func(fnName string, callTime time.Duration) {
			modbusExchangeDuration.WithLabelValues(fnName).Observe(callTime.Seconds())
		},
		RecordError: func(fnName string) {
			modbusExchangeErrors.WithLabelValues(fnName).Inc()
		},
	}
}

func RecordSessionStart(err error) {
	if err != nil {
		controlSessionStarts.WithLabelValues("failure").Inc()
		return
	}
	controlSessionStarts.WithLabelValues("success").Inc()
}

func SetControlActive(active bool) {
	if active {
		controlActive.Set(1)
		return
	}
	controlActive.Set(0)
	controlSessionEnds.Inc()
}

func SetSetpointWatts(watts float64) {
	controlSetpointWatts.Set(watts)
}
