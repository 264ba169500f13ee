// Package telemetry decodes raw device payloads into readings.
//
// The device sends one packet per BLE notification. The canonical encoding
// is a comma-delimited list of single-letter key:value tokens
// ("W:42,T:19,S:OK,B:88"); newer firmware can send the same fields as a
// flat JSON object. Both encode the same reading, so the format is a
// decode strategy flag, not a second protocol.
package telemetry

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"hydrosense.xyz/hydration-link-service/pkg/common"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusOk
	StatusFull
	StatusLow
	StatusEmpty
	StatusError
	StatusMoving
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "OK"
	case StatusFull:
		return "FULL"
	case StatusLow:
		return "LOW"
	case StatusEmpty:
		return "EMPTY"
	case StatusError:
		return "ERROR"
	case StatusMoving:
		return "MOVING"
	default:
		return "UNKNOWN"
	}
}

type Format int

const (
	// FormatDelimited is the canonical "W:..,T:..,S:..,B:.." token payload.
	FormatDelimited Format = iota
	// FormatStructured is the flat JSON variant some firmware versions send.
	FormatStructured
)

// Reading is a single decoded sensor packet. Immutable after Decode.
type Reading struct {
	WaterLevelPercent  float64
	TemperatureCelsius int
	BatteryPercent     float64
	Status             Status
	ReceivedAt         time.Time
}

var (
	ErrEmptyPayload       = errors.New("telemetry: empty payload")
	ErrNoRecognizedFields = errors.New("telemetry: no recognized fields in payload")
)

const (
	defaultTemperature = 25
	defaultBattery     = 100.0
)

// Decode parses one notification payload. Malformed tokens are skipped and
// unknown keys ignored; the only failures are an empty payload and a
// payload from which nothing could be extracted.
func Decode(raw []byte, format Format, now time.Time) (Reading, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return Reading{}, ErrEmptyPayload
	}

	reading := Reading{
		WaterLevelPercent:  0,
		TemperatureCelsius: defaultTemperature,
		BatteryPercent:     defaultBattery,
		Status:             StatusUnknown,
		ReceivedAt:         now,
	}

	var recognized int
	switch format {
	case FormatStructured:
		recognized = decodeStructured(raw, &reading)
	default:
		recognized = decodeDelimited(raw, &reading)
	}

	if recognized == 0 {
		return Reading{}, ErrNoRecognizedFields
	}
	return reading, nil
}

func decodeDelimited(raw []byte, reading *Reading) int {
	recognized := 0
	for _, token := range strings.Split(string(raw), ",") {
		key, value, found := strings.Cut(strings.TrimSpace(token), ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch strings.ToUpper(key) {
		case "W":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				reading.WaterLevelPercent = common.ClampPercent(v)
				recognized++
			}
		case "T":
			if v, err := strconv.Atoi(value); err == nil {
				reading.TemperatureCelsius = v
				recognized++
			}
		case "S":
			if s, ok := parseStatus(value); ok {
				reading.Status = s
				recognized++
			}
		case "B":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				reading.BatteryPercent = common.ClampPercent(v)
				recognized++
			}
		}
	}
	return recognized
}

type structuredPayload struct {
	Water       *float64        `json:"water"`
	Temperature *int            `json:"temperature"`
	Status      json.RawMessage `json:"status"`
	Battery     *float64        `json:"battery"`
}

func decodeStructured(raw []byte, reading *Reading) int {
	var payload structuredPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0
	}

	recognized := 0
	if payload.Water != nil {
		reading.WaterLevelPercent = common.ClampPercent(*payload.Water)
		recognized++
	}
	if payload.Temperature != nil {
		reading.TemperatureCelsius = *payload.Temperature
		recognized++
	}
	if len(payload.Status) > 0 {
		var asString string
		var asCode int
		if err := json.Unmarshal(payload.Status, &asString); err == nil {
			if s, ok := parseStatus(asString); ok {
				reading.Status = s
				recognized++
			}
		} else if err := json.Unmarshal(payload.Status, &asCode); err == nil {
			if s, ok := parseStatus(strconv.Itoa(asCode)); ok {
				reading.Status = s
				recognized++
			}
		}
	}
	if payload.Battery != nil {
		reading.BatteryPercent = common.ClampPercent(*payload.Battery)
		recognized++
	}
	return recognized
}

// parseStatus accepts either the symbolic token ("OK", "LOW", ...) or the
// firmware's numeric status code.
func parseStatus(value string) (Status, bool) {
	if code, err := strconv.Atoi(value); err == nil {
		if code >= int(StatusUnknown) && code <= int(StatusMoving) {
			return Status(code), true
		}
		return StatusUnknown, false
	}

	switch strings.ToUpper(value) {
	case "UNKNOWN":
		return StatusUnknown, true
	case "OK":
		return StatusOk, true
	case "FULL":
		return StatusFull, true
	case "LOW":
		return StatusLow, true
	case "EMPTY":
		return StatusEmpty, true
	case "ERROR":
		return StatusError, true
	case "MOVING":
		return StatusMoving, true
	}
	return StatusUnknown, false
}
