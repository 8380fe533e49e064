// Package config holds the boot configuration of the door sensor.
//
// The network name, passphrase and destination endpoint are normally
// compiled in; every other field has a default that matches the stock
// hardware, so those three values are enough to run.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/door-sensor/internal/gpio"
	"github.com/sweeney/door-sensor/internal/notify"
	"github.com/sweeney/door-sensor/internal/stream"
)

type Config struct {
	Wifi        WifiConfig    `yaml:"wifi"`
	GPIO        GPIOConfig    `yaml:"gpio"`
	Endpoint    string        `yaml:"endpoint"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	MQTTTopic   string        `yaml:"mqtt_topic"`
	Poll        time.Duration `yaml:"poll"`
	HTTPAddr    string        `yaml:"http_addr"`
}

type WifiConfig struct {
	SSID             string        `yaml:"ssid"`
	Passphrase       string        `yaml:"passphrase"`
	Interface        string        `yaml:"interface"`
	ControlDir       string        `yaml:"control_dir"`
	AssociateTimeout time.Duration `yaml:"associate_timeout"`
	AddressTimeout   time.Duration `yaml:"address_timeout"`
	// Skip assumes the platform has already brought the network up.
	Skip bool `yaml:"skip"`
}

type GPIOConfig struct {
	Chip string `yaml:"chip"`
	Pin  int    `yaml:"pin"`
	// AssumeClosed skips the startup read and treats the door as closed.
	AssumeClosed bool `yaml:"assume_closed"`
}

// Default returns the built-in configuration with the given boot constants.
func Default(ssid, passphrase, endpoint string) *Config {
	return &Config{
		Wifi: WifiConfig{
			SSID:             ssid,
			Passphrase:       passphrase,
			Interface:        "wlan0",
			ControlDir:       "/var/run/wpa_supplicant",
			AssociateTimeout: 30 * time.Second,
			AddressTimeout:   30 * time.Second,
		},
		GPIO: GPIOConfig{
			Chip: gpio.DefaultChip,
			Pin:  gpio.DefaultPin,
		},
		Endpoint:    endpoint,
		DialTimeout: 10 * time.Second,
		MQTTTopic:   stream.DefaultTopic,
		Poll:        notify.DefaultPoll,
	}
}

// Load overlays the YAML file at path onto cfg. Keys absent from the file
// keep their current values.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if !c.Wifi.Skip {
		if c.Wifi.SSID == "" {
			errs = append(errs, errors.New("wifi.ssid is required"))
		}
		if c.Wifi.Interface == "" {
			errs = append(errs, errors.New("wifi.interface is required"))
		}
	}
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.Poll <= 0 {
		errs = append(errs, fmt.Errorf("poll must be positive, got %v", c.Poll))
	}
	if c.GPIO.Pin < 0 {
		errs = append(errs, fmt.Errorf("gpio.pin must not be negative, got %d", c.GPIO.Pin))
	}
	return errors.Join(errs...)
}
