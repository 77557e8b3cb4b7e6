package models

// ErrorCode is the run-fatal error taxonomy. A run latches at most one.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrFileLoad
	ErrLineTooLong
	ErrInvalidChar
	ErrOverTemp
	ErrUnderTemp
	ErrHousingOverTemp
	ErrChannelADisconnected
	ErrChannelAInternal
	ErrChannelAProbe
	ErrChannelBDisconnected
	ErrChannelBInternal
	ErrChannelBProbe
	ErrUserAbort
	ErrThermalRunaway
)

var errorCodeNames = map[ErrorCode]string{
	ErrNone:                 "",
	ErrFileLoad:             "FILE_LOAD",
	ErrLineTooLong:          "LINE_TOO_LONG",
	ErrInvalidChar:          "INVALID_CHARACTER",
	ErrOverTemp:             "OVER_TEMPERATURE",
	ErrUnderTemp:            "UNDER_TEMPERATURE",
	ErrHousingOverTemp:      "HOUSING_OVER_TEMPERATURE",
	ErrChannelADisconnected: "CHANNEL_A_DISCONNECTED",
	ErrChannelAInternal:     "CHANNEL_A_INTERNAL_READ_FAILURE",
	ErrChannelAProbe:        "CHANNEL_A_PROBE_READ_FAILURE",
	ErrChannelBDisconnected: "CHANNEL_B_DISCONNECTED",
	ErrChannelBInternal:     "CHANNEL_B_INTERNAL_READ_FAILURE",
	ErrChannelBProbe:        "CHANNEL_B_PROBE_READ_FAILURE",
	ErrUserAbort:            "USER_ABORT",
	ErrThermalRunaway:       "THERMAL_RUNAWAY",
}

func (c ErrorCode) String() string {
	if n, ok := errorCodeNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// Sensor reports whether the code came from a thermocouple channel fault.
func (c ErrorCode) Sensor() bool {
	return c >= ErrChannelADisconnected && c <= ErrChannelBProbe
}
