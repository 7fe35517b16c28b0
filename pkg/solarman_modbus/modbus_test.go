package solarman_modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteWriteIsRecorded(t *testing.T) {

	dev := CreateTestDevice()

	_, err := dev.Execute(FnWriteMultipleRegisters, RegRemoteModeEnable, []uint16{RemoteModeEnabled}, 0)
	require.NoError(t, err)

	writes := dev.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, RegRemoteModeEnable, writes[0].Address)
	assert.Equal(t, []uint16{RemoteModeEnabled}, writes[0].Values)
}

func TestExecuteRejectsUnknownFunctionCode(t *testing.T) {

	dev := CreateTestDevice()

	_, err := dev.Execute(0x06, RegRemoteModeEnable, []uint16{1}, 0)
	assert.Error(t, err)
}

func TestWatchdogMarginIsProtocolFact(t *testing.T) {

	// The refresh cadence has to stay strictly under the watchdog register
	// value or the device falls back to autonomous control mid-session.
	assert.Less(t, WatchdogRefreshInterval.Seconds(), float64(WatchdogTimeoutSeconds))
}

func TestSerialDecoding(t *testing.T) {

	dev := CreateTestDevice()
	info, err := dev.GetDeviceInfo()
	require.NoError(t, err)
	assert.Equal(t, "SM2300DTU042", info.Serial)
	assert.EqualValues(t, 20000, info.RatedPowerWatt)
}
