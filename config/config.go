package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	PrometheusAddr string
	Capture        Capture
	Sync           Sync
	Replicas       map[string]Replica
}

// Capture configures the rate-limited capture adapter
// placed in front of every replica's local write path.
type Capture struct {
	WindowMS int
}

// Sync configures the cadence with that locally hosted
// replicas exchange deltas with each other.
type Sync struct {
	IntervalMS int
}

// Replica describes one replica hosted by this process.
// Name has to be globally unique; an empty name lets the
// replica assign itself a random unique identifier.
type Replica struct {
	Name string
}

// Functions

// LoadConfig takes in the path to the main config file of
// replmap in TOML syntax and places the values from the file
// in the corresponding struct.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	_, err := toml.DecodeFile(configFile, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read in TOML config file at '%s' with: %v", configFile, err)
	}

	// A capture window of zero would turn the throttle
	// into a pass-through, which is never intended.
	if conf.Capture.WindowMS <= 0 {
		return nil, fmt.Errorf("capture window has to be a positive amount of milliseconds")
	}

	if conf.Sync.IntervalMS <= 0 {
		return nil, fmt.Errorf("sync interval has to be a positive amount of milliseconds")
	}

	if len(conf.Replicas) < 1 {
		return nil, fmt.Errorf("at least one replica has to be configured")
	}

	// Default each replica's name to its section key and
	// make sure no name collides with another one.
	names := make(map[string]bool)

	for key, replica := range conf.Replicas {

		if replica.Name == "" {
			replica.Name = key
			conf.Replicas[key] = replica
		}

		if names[replica.Name] {
			return nil, fmt.Errorf("replica name '%s' is used more than once", replica.Name)
		}
		names[replica.Name] = true
	}

	return conf, nil
}
