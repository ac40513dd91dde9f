/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// config_file.go: YAML configuration file
package core

import (
	"fmt"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/gitrgoliveira/go-framestash/internal/crypto"
	"github.com/gitrgoliveira/go-framestash/internal/frame"
	"github.com/gitrgoliveira/go-framestash/internal/integrity"
)

// ConfigEnv names the config file when no path is given explicitly.
const ConfigEnv = "FRAMESTASH_CONFIG"

// FileConfig is the on-disk configuration. Every field is optional; unset
// fields keep the library defaults.
//
//	chunk_size: 4MiB
//	hash: xxhash
//	cipher: chacha20-poly1305
//	container: ffv1
//	layout:
//	  width: 1280
//	  height: 720
//	  packets_per_frame: 32
//	kdf:
//	  algorithm: argon2id
//	  time: 3
//	  memory: 65536
//	  threads: 4
//	log_level: debug
type FileConfig struct {
	ChunkSize string             `yaml:"chunk_size"`
	Hash      string             `yaml:"hash"`
	Cipher    string             `yaml:"cipher"`
	Container string             `yaml:"container"`
	Layout    frame.LayoutConfig `yaml:"layout"`
	KDF       *KDFFileConfig     `yaml:"kdf"`
	LogLevel  string             `yaml:"log_level"`
}

// KDFFileConfig is the kdf section. Unset cost fields keep their defaults.
type KDFFileConfig struct {
	Algorithm        string `yaml:"algorithm"`
	crypto.KDFParams `yaml:",inline"`
}

// LoadConfigFile reads the YAML file at path. An empty path falls back to
// $FRAMESTASH_CONFIG; if that is unset too, the zero FileConfig is returned.
func LoadConfigFile(path string) (*FileConfig, error) {
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	fc := &FileConfig{}
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- config path is caller supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return fc, nil
}

// Options converts the file into options. They are meant to go first so
// that explicit options passed after them win.
func (fc *FileConfig) Options() ([]Option, error) {
	var opts []Option

	if fc.ChunkSize != "" {
		size, err := humanize.ParseBytes(fc.ChunkSize)
		if err != nil {
			return nil, fmt.Errorf("chunk_size: %w", err)
		}
		if size > math.MaxUint32 {
			return nil, fmt.Errorf("chunk_size: %s is too large", fc.ChunkSize)
		}
		opt, err := WithChunkSize(int(size)) // #nosec G115 -- bounded above
		if err != nil {
			return nil, fmt.Errorf("chunk_size: %w", err)
		}
		opts = append(opts, opt)
	}
	if fc.Hash != "" {
		alg, err := integrity.ParseAlgorithm(fc.Hash)
		if err != nil {
			return nil, fmt.Errorf("hash: %w", err)
		}
		opts = append(opts, WithHashAlgorithm(alg))
	}
	if fc.Cipher != "" {
		c, err := crypto.ParseCipher(fc.Cipher)
		if err != nil {
			return nil, fmt.Errorf("cipher: %w", err)
		}
		opts = append(opts, WithCipher(c))
	}
	if fc.Container != "" {
		opts = append(opts, WithContainer(fc.Container))
	}
	if fc.Layout != (frame.LayoutConfig{}) {
		if _, err := frame.ComputeLayout(fc.Layout); err != nil {
			return nil, fmt.Errorf("layout: %w", err)
		}
		opts = append(opts, WithLayout(fc.Layout))
	}
	if fc.KDF != nil {
		p, err := fc.KDF.params()
		if err != nil {
			return nil, fmt.Errorf("kdf: %w", err)
		}
		opts = append(opts, WithKDF(p))
	}
	if fc.LogLevel != "" {
		if _, err := logrus.ParseLevel(fc.LogLevel); err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
	}
	return opts, nil
}

func (k *KDFFileConfig) params() (crypto.KDFParams, error) {
	alg, err := crypto.ParseKDFAlgorithm(k.Algorithm)
	if err != nil {
		return crypto.KDFParams{}, err
	}
	p := crypto.DefaultKDFParams()
	p.Algorithm = alg
	if k.Time != 0 {
		p.Time = k.Time
	}
	if k.Memory != 0 {
		p.Memory = k.Memory
	}
	if k.Threads != 0 {
		p.Threads = k.Threads
	}
	if k.Iterations != 0 {
		p.Iterations = k.Iterations
	}
	if err := p.Validate(); err != nil {
		return crypto.KDFParams{}, err
	}
	return p, nil
}

// Level returns the configured log level, or def when none is set.
func (fc *FileConfig) Level(def logrus.Level) logrus.Level {
	if lvl, err := logrus.ParseLevel(fc.LogLevel); err == nil && fc.LogLevel != "" {
		return lvl
	}
	return def
}
