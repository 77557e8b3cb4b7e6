// Package config loads configs/config.yml through viper. Controller tuning
// lives under the prefs section, keyed by preference name; everything else
// is infrastructure wiring.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"kiln_controller/internal/logger"
	"kiln_controller/internal/prefs"
)

// Infra holds process wiring read straight from viper.
type Infra struct {
	Port           string
	DBPath         string
	LogLevel       string
	Tick           time.Duration
	SigningKey     string
	TokenTTL       time.Duration
	MQTTBroker     string
	MQTTClientID   string
	GPIOChip       string
	RelayPin       int
	AlarmPin       int
	RelayActiveLow bool
	SerialPort     string
	SerialBaud     int
	Simulate       bool
	HousingProbe   bool
}

// Config is the full controller configuration.
type Config struct {
	Infra Infra
	Prefs prefs.Store
}

// Read loads config.yml from the given directories (default "configs") with
// KILN_ environment overrides.
func Read(paths ...string) (*viper.Viper, error) {
	v := viper.New()
	if len(paths) == 0 {
		paths = []string{"configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p) // <path>/config.yml
	}
	v.SetConfigName("config")
	v.SetEnvPrefix("KILN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "kiln.db")
	v.SetDefault("log.level", logger.InfoLevel)
	v.SetDefault("tick", "1s")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("mqtt.client_id", "kiln-controller")
	v.SetDefault("gpio.chip", "gpiochip0")
	v.SetDefault("gpio.relay_pin", 19)
	v.SetDefault("gpio.alarm_pin", 21)
	v.SetDefault("sensor.baud", 115200)
	v.SetDefault("sensor.simulate", true)
}

// Load builds a Config from v.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)

	infra := Infra{
		Port:           v.GetString("port"),
		DBPath:         v.GetString("db.path"),
		LogLevel:       v.GetString("log.level"),
		Tick:           v.GetDuration("tick"),
		SigningKey:     v.GetString("auth.signing_key"),
		TokenTTL:       v.GetDuration("auth.token_ttl"),
		MQTTBroker:     v.GetString("mqtt.broker"),
		MQTTClientID:   v.GetString("mqtt.client_id"),
		GPIOChip:       v.GetString("gpio.chip"),
		RelayPin:       v.GetInt("gpio.relay_pin"),
		AlarmPin:       v.GetInt("gpio.alarm_pin"),
		RelayActiveLow: v.GetBool("gpio.active_low"),
		SerialPort:     v.GetString("sensor.serial_port"),
		SerialBaud:     v.GetInt("sensor.baud"),
		Simulate:       v.GetBool("sensor.simulate"),
		HousingProbe:   v.GetBool("sensor.housing_probe"),
	}
	if infra.Tick <= 0 {
		return Config{}, fmt.Errorf("tick must be positive, got %s", infra.Tick)
	}
	if !logger.ValidLevel(infra.LogLevel) {
		return Config{}, fmt.Errorf("unknown log level %q", infra.LogLevel)
	}
	if !infra.Simulate && infra.SerialPort == "" {
		return Config{}, errors.New("sensor.serial_port is required unless sensor.simulate is set")
	}

	store, err := LoadPrefs(v.Sub("prefs"))
	if err != nil {
		return Config{}, err
	}
	return Config{Infra: infra, Prefs: store}, nil
}

// LoadPrefs reads every known preference from v. Unknown entries are
// rejected so typos do not silently fall back to defaults. v may be nil.
func LoadPrefs(v *viper.Viper) (prefs.Store, error) {
	store := prefs.Store{}
	if v == nil {
		return store, nil
	}
	known := make(map[string]bool)
	for _, k := range prefs.Keys() {
		name := strings.ToLower(k.String())
		known[name] = true
		if !v.IsSet(name) {
			continue
		}
		val, err := prefs.Parse(k.Kind(), fmt.Sprint(v.Get(name)))
		if err != nil {
			return nil, fmt.Errorf("pref %s: %w", k, err)
		}
		if err := store.Set(k, val); err != nil {
			return nil, err
		}
	}
	for _, name := range v.AllKeys() {
		if !known[name] {
			return nil, fmt.Errorf("unknown pref %q", name)
		}
	}
	return store, nil
}
