package config

import (
	"os"

	"fmt"

	"github.com/joho/godotenv"
)

// Structs

// Env holds information specific to the system where
// replmap is deployed. This enables host adaptions without
// needing to maintain two different config files. Use the
// .env file to override per-host values.
type Env struct {
	ReplicaName    string
	PrometheusAddr string
}

// Functions

// LoadEnv reads in all values defined in the supplied
// .env file.
func LoadEnv(envFile string) (*Env, error) {

	// Load environment file.
	err := godotenv.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read in .env file at '%s' with: %v", envFile, err)
	}

	env := new(Env)

	// Fill variables from .env into struct.
	env.ReplicaName = os.Getenv("REPLMAP_REPLICA_NAME")
	env.PrometheusAddr = os.Getenv("REPLMAP_PROMETHEUS_ADDR")

	return env, nil
}
