// Package config loads the server's JSON configuration file, following the
// teacher's pkg/colonyos.ConfigLoader pattern of os.ReadFile +
// encoding/json against a single top-level struct.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level JSON configuration for the server and simulate
// entrypoints.
type Config struct {
	ServerAddress string       `json:"server_address"`
	DatabasePath  string       `json:"database_path"`
	TickInterval  jsonDuration `json:"tick_interval"`
	OPCUA         OPCUAConfig  `json:"opcua"`
	FMU           FMUConfig    `json:"fmu"`
}

// OPCUAConfig holds defaults for the HIL bridge.
type OPCUAConfig struct {
	ClientTimeout     jsonDuration `json:"client_timeout"`
	PublishInterval   jsonDuration `json:"publish_interval"`
}

// FMUConfig holds defaults for the FMU host.
type FMUConfig struct {
	ScratchDir string `json:"scratch_dir"`
}

// jsonDuration unmarshals a human-readable duration string ("1s", "500ms")
// into a time.Duration, the way a hand-edited config file is meant to be
// written.
type jsonDuration time.Duration

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = jsonDuration(parsed)
	return nil
}

func (d jsonDuration) Duration() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no config file is supplied.
func Default() Config {
	return Config{
		ServerAddress: ":8080",
		DatabasePath:  "digitaltwin.db",
		TickInterval:  jsonDuration(time.Second),
		OPCUA: OPCUAConfig{
			ClientTimeout:   jsonDuration(10 * time.Second),
			PublishInterval: jsonDuration(500 * time.Millisecond),
		},
		FMU: FMUConfig{ScratchDir: ""},
	}
}

// Load reads and parses the JSON configuration file at path. Fields absent
// from the file keep Default's values, since Load starts from Default()
// before unmarshaling.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// TickIntervalDuration returns the configured tick cadence, defaulting to 1s.
func (c Config) TickIntervalDuration() time.Duration {
	if c.TickInterval.Duration() <= 0 {
		return time.Second
	}
	return c.TickInterval.Duration()
}
