/*
 * Minio Cloud Storage, (C) 2016, 2017, 2018 Minio, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads afrheald's server configuration from a TOML
// file, then applies environment overrides the same way the teacher's
// server config takes MINIO_* env vars over whatever the file says.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const (
	envListenAddress = "AFRHEALD_ADDRESS"
	envNATSURL       = "AFRHEALD_NATS_URL"
	envPhaseTimeout  = "AFRHEALD_PHASE_TIMEOUT"
	envMinBlockSize  = "AFRHEALD_MIN_BLOCK_SIZE"
	envClusterSecret = "AFRHEALD_SECRET"
)

// Replica is one backend child as named in the config file: either an
// in-process replica (localchild, empty Endpoint) or a remote endpoint
// (rpcchild).
type Replica struct {
	ID       string `toml:"id"`
	Endpoint string `toml:"endpoint"` // empty means an in-process localchild
}

// Config is afrheald's full server configuration.
type Config struct {
	ListenAddress string    `toml:"address"`
	ClusterSecret string    `toml:"secret"`
	NATSURL       string    `toml:"nats_url"` // empty disables outcome publishing
	PhaseTimeout  duration  `toml:"phase_timeout"`
	MinBlockSize  int64     `toml:"min_block_size"`
	Replicas      []Replica `toml:"replica"`
}

// duration lets the TOML file write "30s" the way the teacher's JSON
// config writes duration fields as plain strings, rather than forcing
// callers to spell out nanoseconds.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrap(err, "config: bad duration")
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is given and no
// environment overrides are set.
func Default() Config {
	return Config{
		ListenAddress: ":9010",
		PhaseTimeout:  duration{30 * time.Second},
		MinBlockSize:  128 * 1024,
	}
}

// Load reads path (if non-empty) over Default, then applies environment
// overrides, mirroring loadConfig's file-then-env precedence.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config: decode %s", path)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(envListenAddress); ok {
		cfg.ListenAddress = v
	}
	if v, ok := os.LookupEnv(envClusterSecret); ok {
		cfg.ClusterSecret = v
	}
	if v, ok := os.LookupEnv(envNATSURL); ok {
		cfg.NATSURL = v
	}
	if v, ok := os.LookupEnv(envPhaseTimeout); ok {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.PhaseTimeout = duration{parsed}
		}
	}
	if v, ok := os.LookupEnv(envMinBlockSize); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MinBlockSize = n
		}
	}
}

// Validate reports a config that cannot be run: no replicas, or fewer
// than two (a self-heal engine over a single replica never disagrees
// with itself).
func (c Config) Validate() error {
	if len(c.Replicas) < 2 {
		return errors.New("config: at least two replicas are required")
	}
	seen := make(map[string]bool, len(c.Replicas))
	for _, r := range c.Replicas {
		if r.ID == "" {
			return errors.New("config: replica id must not be empty")
		}
		if seen[r.ID] {
			return errors.Errorf("config: duplicate replica id %q", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
