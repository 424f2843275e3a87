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

// Package pulsetable implements the pure, pod-firmware-defined helpers the
// command layer invokes to assemble insulin schedule command bodies (spec
// §1: "Pulse/interval table math helpers ... their algorithms are
// pod-firmware-defined and assumed correct; the core invokes them as pure
// functions"). original_source/ did not retain the helper module these
// were distilled from, so the exact compressed wire encodings below are a
// self-consistent reconstruction rather than a byte-for-byte replay of
// pod firmware; callers only depend on the documented pure-function
// contracts (section 8's round-trip properties), not the encoding itself.
package pulsetable

import "math"

// PulseInterval is one (pulse count, time between pulses in microseconds)
// entry derived from a half-hour rate, as carried in commands 0x16/0x13.
type PulseInterval struct {
	PulseCount uint16
	IntervalUS uint32
}

// ISEEntry is one run of the compressed insulin-schedule-entry table
// carried in command 0x1a: Repeat consecutive half-hours each delivering
// PulseCount pulses.
type ISEEntry struct {
	PulseCount uint16
	Repeat     uint16
}

// PulsesForHalfHours converts a list of per-half-hour unit amounts into
// pulse counts (1 pulse = 0.05U, so pulses = round(units*20)).
func PulsesForHalfHours(units []float64) []uint16 {
	pulses := make([]uint16, len(units))
	for i, u := range units {
		pulses[i] = uint16(math.Round(u * 20))
	}
	return pulses
}

// InsulinScheduleFromPulses run-length encodes a pulse-count list into the
// compressed ISE table carried in command 0x1a.
func InsulinScheduleFromPulses(pulses []uint16) []ISEEntry {
	entries := make([]ISEEntry, 0, len(pulses))
	for _, p := range pulses {
		if n := len(entries); n > 0 && entries[n-1].PulseCount == p {
			entries[n-1].Repeat++
			continue
		}
		entries = append(entries, ISEEntry{PulseCount: p, Repeat: 1})
	}
	return entries
}

// StringBody serializes a compressed ISE table to its wire form: each
// entry as two big-endian uint16 fields, pulse count then repeat.
func StringBody(entries []ISEEntry) []byte {
	body := make([]byte, 0, 4*len(entries))
	for _, e := range entries {
		body = append(body, byte(e.PulseCount>>8), byte(e.PulseCount))
		body = append(body, byte(e.Repeat>>8), byte(e.Repeat))
	}
	return body
}

// PulseListBody serializes a raw pulse-count list to its wire form: each
// count as a big-endian uint16, used only to feed the checksums computed by
// set_temp_basal and set_basal_schedule (spec §4.5.6, §4.5.7).
func PulseListBody(pulses []uint16) []byte {
	body := make([]byte, 0, 2*len(pulses))
	for _, p := range pulses {
		body = append(body, byte(p>>8), byte(p))
	}
	return body
}

// PulseIntervalEntries derives, for each half-hour unit amount, the pulse
// count and the microsecond interval between individual pulses needed to
// spread that count evenly across the half hour (1800 seconds).
func PulseIntervalEntries(halfHourUnits []float64) []PulseInterval {
	entries := make([]PulseInterval, len(halfHourUnits))
	for i, u := range halfHourUnits {
		pulseCount := uint16(math.Round(u * 20))
		var intervalUS uint32
		if pulseCount > 0 {
			intervalUS = uint32(1800 * 1000000 / uint32(pulseCount))
		}
		entries[i] = PulseInterval{PulseCount: pulseCount, IntervalUS: intervalUS}
	}
	return entries
}

// Checksum is the additive byte checksum stamped into command 0x1a's
// header for a bolus or temp basal (spec §4.5.3, §4.5.6). set_basal_schedule
// computes it too but does not put it into the command body.
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}
