package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDelimited(t *testing.T) {
	now := time.Now()

	reading, err := Decode([]byte("W:42,T:19,S:OK,B:88"), FormatDelimited, now)
	require.NoError(t, err)

	assert.Equal(t, 42.0, reading.WaterLevelPercent)
	assert.Equal(t, 19, reading.TemperatureCelsius)
	assert.Equal(t, StatusOk, reading.Status)
	assert.Equal(t, 88.0, reading.BatteryPercent)
	assert.Equal(t, now, reading.ReceivedAt)
}

func TestDecodeDelimited_Defaults(t *testing.T) {
	reading, err := Decode([]byte("W:55"), FormatDelimited, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 55.0, reading.WaterLevelPercent)
	assert.Equal(t, 25, reading.TemperatureCelsius)
	assert.Equal(t, 100.0, reading.BatteryPercent)
	assert.Equal(t, StatusUnknown, reading.Status)
}

func TestDecodeDelimited_Clamping(t *testing.T) {
	reading, err := Decode([]byte("W:150,B:-20,T:-5"), FormatDelimited, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 100.0, reading.WaterLevelPercent)
	assert.Equal(t, 0.0, reading.BatteryPercent)
	// temperature is never clamped
	assert.Equal(t, -5, reading.TemperatureCelsius)
}

func TestDecodeDelimited_UnknownKeysIgnored(t *testing.T) {
	reading, err := Decode([]byte("X:1,W:30,Z:junk"), FormatDelimited, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 30.0, reading.WaterLevelPercent)
}

func TestDecodeDelimited_MalformedTokensSkipped(t *testing.T) {
	// broken water token, valid battery token
	reading, err := Decode([]byte("W:abc,B:40"), FormatDelimited, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 0.0, reading.WaterLevelPercent) // default
	assert.Equal(t, 40.0, reading.BatteryPercent)
}

func TestDecodeDelimited_NumericStatusCode(t *testing.T) {
	reading, err := Decode([]byte("S:4"), FormatDelimited, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, reading.Status)

	reading, err = Decode([]byte("S:moving"), FormatDelimited, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusMoving, reading.Status)
}

func TestDecode_EmptyPayload(t *testing.T) {
	_, err := Decode([]byte(""), FormatDelimited, time.Now())
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = Decode([]byte("   \t  "), FormatDelimited, time.Now())
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestDecode_NoRecognizedFields(t *testing.T) {
	_, err := Decode([]byte("X:1,Y:2"), FormatDelimited, time.Now())
	assert.ErrorIs(t, err, ErrNoRecognizedFields)

	_, err = Decode([]byte("garbage"), FormatDelimited, time.Now())
	assert.ErrorIs(t, err, ErrNoRecognizedFields)

	_, err = Decode([]byte(`{"other": 1}`), FormatStructured, time.Now())
	assert.ErrorIs(t, err, ErrNoRecognizedFields)
}

func TestDecodeStructured(t *testing.T) {
	reading, err := Decode([]byte(`{"water": 42, "temperature": 19, "status": "OK", "battery": 88}`), FormatStructured, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 42.0, reading.WaterLevelPercent)
	assert.Equal(t, 19, reading.TemperatureCelsius)
	assert.Equal(t, StatusOk, reading.Status)
	assert.Equal(t, 88.0, reading.BatteryPercent)
}

func TestDecodeStructured_NumericStatusAndClamp(t *testing.T) {
	reading, err := Decode([]byte(`{"water": 120, "status": 3}`), FormatStructured, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 100.0, reading.WaterLevelPercent)
	assert.Equal(t, StatusLow, reading.Status)
	assert.Equal(t, 100.0, reading.BatteryPercent) // default
}

func TestDecodeStructured_ExtraKeysIgnored(t *testing.T) {
	reading, err := Decode([]byte(`{"water": 10, "firmware": "2.1.0"}`), FormatStructured, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 10.0, reading.WaterLevelPercent)
}
