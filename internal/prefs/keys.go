package prefs

// Key identifies one preference setting.
type Key int

const (
	KeyNone Key = iota
	KeyAuthUser
	KeyAuthPass
	KeyPIDWindow
	KeyPIDKp
	KeyPIDKi
	KeyPIDKd
	KeyPIDPOE
	KeyPIDTempThreshold
	KeyPIDWindowDivider
	KeyLogWindow
	KeyMinTemp
	KeyMinTempGrace
	KeyMaxTemp
	KeyMaxHousingTemp
	KeyThermalRunaway
	KeyThermalRunawayMinRise
	KeyRunawayDuringThreshold
	KeyAlarmTimeout
	KeyErrorGraceCount
	KeyReadBudget
	keyEnd
)

type keyDef struct {
	name string
	kind Kind
}

// Names keep the spelling of the original preferences file.
// Units: PID_Window and Read_Budget in ms; LOG_Window, MIN_Temperature_Grace,
// Thermal_Runaway and Alarm_Timeout in seconds; temperatures in °C.
// PID_POE is 1 for proportional on error. Thermal_Runaway 0 disables the check
// and PID_Temp_Threshold <= 0 disables waiting for the target.
var keyDefs = [keyEnd]keyDef{
	KeyNone:                   {"None", KindAbsent},
	KeyAuthUser:               {"Auth_Username", KindString},
	KeyAuthPass:               {"Auth_Password", KindString},
	KeyPIDWindow:              {"PID_Window", KindInt},
	KeyPIDKp:                  {"PID_Kp", KindFloat},
	KeyPIDKi:                  {"PID_Ki", KindFloat},
	KeyPIDKd:                  {"PID_Kd", KindFloat},
	KeyPIDPOE:                 {"PID_POE", KindInt},
	KeyPIDTempThreshold:       {"PID_Temp_Threshold", KindFloat},
	KeyPIDWindowDivider:       {"PID_Window_Divider", KindInt},
	KeyLogWindow:              {"LOG_Window", KindInt},
	KeyMinTemp:                {"MIN_Temperature", KindFloat},
	KeyMinTempGrace:           {"MIN_Temperature_Grace", KindInt},
	KeyMaxTemp:                {"MAX_Temperature", KindFloat},
	KeyMaxHousingTemp:         {"MAX_Housing_Temperature", KindFloat},
	KeyThermalRunaway:         {"Thermal_Runaway", KindInt},
	KeyThermalRunawayMinRise:  {"Thermal_Runaway_Min_Rise", KindFloat},
	KeyRunawayDuringThreshold: {"Runaway_During_Threshold", KindInt},
	KeyAlarmTimeout:           {"Alarm_Timeout", KindInt},
	KeyErrorGraceCount:        {"MAX31855_Error_Grace_Count", KindInt},
	KeyReadBudget:             {"Read_Budget", KindInt},
}

func (k Key) String() string {
	if k < 0 || k >= keyEnd {
		return "invalid"
	}
	return keyDefs[k].name
}

// Kind is the variant a key is declared to hold.
func (k Key) Kind() Kind {
	if k < 0 || k >= keyEnd {
		return KindAbsent
	}
	return keyDefs[k].kind
}

// Keys returns every settable key.
func Keys() []Key {
	out := make([]Key, 0, keyEnd-1)
	for k := KeyNone + 1; k < keyEnd; k++ {
		out = append(out, k)
	}
	return out
}

// Lookup finds a key by its preference name.
func Lookup(name string) (Key, bool) {
	for _, k := range Keys() {
		if keyDefs[k].name == name {
			return k, true
		}
	}
	return KeyNone, false
}
