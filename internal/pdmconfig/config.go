/*
 * Copyright © 2025 Kaleido, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
 * an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
 * specific language governing permissions and limitations under the License.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package pdmconfig defines the on-disk configuration for a pod command
// core instance: pod identity and session seeding, the operating limits
// guarded in internal/pdm, and the radio/logging ambient settings. Shape
// and defaulting convention follow kata/internal/signer/config.go.
package pdmconfig

import "gopkg.in/yaml.v3"

// Config is the top-level decode target, loaded from a YAML file at
// process start.
type Config struct {
	Pod   PodConfig   `yaml:"pod"`
	Radio RadioConfig `yaml:"radio"`
	Log   LogConfig   `yaml:"log"`
}

// PodConfig seeds the Pod State Record and Nonce Generator (spec §3,
// §4.1) for a single session.
type PodConfig struct {
	Lot              uint32       `yaml:"lot"`
	TID              uint32       `yaml:"tid"`
	Address          *uint32      `yaml:"address"`
	NonceSeed        uint16       `yaml:"nonceSeed"`
	LastNonce        uint32       `yaml:"lastNonce"`
	MsgSequence      uint8        `yaml:"msgSequence"`
	PacketSequence   uint8        `yaml:"packetSequence"`
	MaximumBolus     float64      `yaml:"maximumBolus"`
	MaximumTempBasal float64      `yaml:"maximumTempBasal"`
	UTCOffsetMinutes int          `yaml:"utcOffsetMinutes"`
	Limits           LimitsConfig `yaml:"limits"`
}

// LimitsConfig is split out from PodConfig so the bolus/temp-basal maxima
// above (which the internal/pdm guards enforce) stay distinct from purely
// advisory ceilings a deployment may want layered on top.
type LimitsConfig struct {
	ReservoirCapacity float64 `yaml:"reservoirCapacity"`
}

// RadioConfig configures the default WSRadio transport (spec §6).
type RadioConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// LogConfig configures internal/plog.
type LogConfig struct {
	Level      string `yaml:"level"`
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Defaults mirrors kata/internal/signer/config.go's pattern of a package
// level var holding fallback values for fields a deployment commonly
// leaves unset.
var Defaults = &Config{
	Radio: RadioConfig{
		TimeoutSeconds: 30,
	},
	Log: LogConfig{
		Level:      "info",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
	},
}

// Load decodes a YAML document into a Config seeded from Defaults, so a
// deployment only needs to specify the fields it wants to override.
func Load(data []byte) (*Config, error) {
	cfg := *Defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
