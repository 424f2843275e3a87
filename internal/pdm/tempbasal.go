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

package pdm

import (
	"context"
	"math"

	"github.com/kaleido-io/omnipod-pdm/internal/msgs"
	"github.com/kaleido-io/omnipod-pdm/internal/pdmerr"
	"github.com/kaleido-io/omnipod-pdm/pkg/message"
	"github.com/kaleido-io/omnipod-pdm/pkg/podstate"
	"github.com/kaleido-io/omnipod-pdm/pkg/pulsetable"
)

const (
	cmdTempBasalExtra byte = 0x16
	subtypeTempBasal  byte = 0x01

	maxTempBasalRate     = 30.0
	minTempBasalHalfHour = 1
	maxTempBasalHalfHour = 24
)

// SetTempBasal implements spec §4.5.6, including the pulse_interval_entries
// first-entry duplication documented in the Open Questions: the temp-basal
// extra command's leading (pulse_count, interval) pair is entries[0],
// immediately followed by the full entry list starting from entries[0]
// again. This is preserved as observed rather than "corrected".
func (p *PDM) SetTempBasal(ctx context.Context, rate float64, hours float64, confidenceReminder bool) error {
	return p.run(ctx, func(ctx context.Context) error {
		address, err := p.requireAddress(ctx)
		if err != nil {
			return err
		}
		if err := p.requireRunning(ctx); err != nil {
			return err
		}

		halfHours := int(math.Floor(hours * 2))
		if halfHours < minTempBasalHalfHour || halfHours > maxTempBasalHalfHour {
			return pdmerr.New(ctx, msgs.MsgInvalidDuration)
		}
		if rate > p.pod.MaximumTempBasal {
			return pdmerr.New(ctx, msgs.MsgRateExceedsMaximum)
		}
		if rate > maxTempBasalRate {
			return pdmerr.New(ctx, msgs.MsgRateExceedsCapability)
		}

		if p.isTempBasalActive(ctx) {
			if err := p.cancelTempBasal(ctx, address, false); err != nil {
				return err
			}
		}

		halfHourUnits := make([]float64, halfHours)
		for i := range halfHourUnits {
			halfHourUnits[i] = rate / 2
		}
		pulseList := pulsetable.PulsesForHalfHours(halfHourUnits)
		iseList := pulsetable.InsulinScheduleFromPulses(pulseList)

		bodyForChecksum := []byte{byte(halfHours)}
		bodyForChecksum = append(bodyForChecksum, byte(maxPulseSpan>>8), byte(maxPulseSpan))
		bodyForChecksum = append(bodyForChecksum, byte(pulseList[0]>>8), byte(pulseList[0]))
		checksum := pulsetable.Checksum(append(append([]byte{}, bodyForChecksum...), pulsetable.PulseListBody(pulseList)...))

		primaryBody := make([]byte, 0, 8+4*len(iseList))
		primaryBody = append(primaryBody, 0, 0, 0, 0)
		primaryBody = append(primaryBody, subtypeTempBasal)
		primaryBody = append(primaryBody, byte(checksum>>8), byte(checksum))
		primaryBody = append(primaryBody, bodyForChecksum...)
		primaryBody = append(primaryBody, pulsetable.StringBody(iseList)...)

		entries := pulsetable.PulseIntervalEntries(halfHourUnits)
		first := entries[0]
		var reminders byte
		if confidenceReminder {
			reminders = bolusBeepReminder
		}
		extraBody := []byte{reminders, 0x00}
		extraBody = append(extraBody, byte(first.PulseCount>>8), byte(first.PulseCount))
		extraBody = append(extraBody,
			byte(first.IntervalUS>>24), byte(first.IntervalUS>>16),
			byte(first.IntervalUS>>8), byte(first.IntervalUS))
		for _, e := range entries {
			extraBody = append(extraBody, byte(e.PulseCount>>8), byte(e.PulseCount))
			extraBody = append(extraBody,
				byte(e.IntervalUS>>24), byte(e.IntervalUS>>16),
				byte(e.IntervalUS>>8), byte(e.IntervalUS))
		}

		msg := message.New(message.PDM, address, p.radio.MessageSequence())
		msg.AddCommand(cmdInsulinSchedule, primaryBody)
		msg.ReserveNonce()
		msg.AddCommand(cmdTempBasalExtra, extraBody)

		if err := p.engine.Send(ctx, msg, true, false, ""); err != nil {
			return err
		}
		if p.pod.BasalState != podstate.BasalTempBasal {
			return pdmerr.New(ctx, msgs.MsgTempBasalNotConfirmed)
		}
		now := p.now()
		p.pod.LastEnactedTempBasalAmount = rate
		p.pod.LastEnactedTempBasalStart = &now
		p.pod.LastEnactedTempBasalDurationHrs = hours
		return nil
	})
}

// CancelTempBasal implements spec §4.5.5.
func (p *PDM) CancelTempBasal(ctx context.Context, beep bool) error {
	return p.run(ctx, func(ctx context.Context) error {
		address, err := p.requireAddress(ctx)
		if err != nil {
			return err
		}
		if err := p.requireRunning(ctx); err != nil {
			return err
		}
		if !p.isTempBasalActive(ctx) {
			return nil
		}
		return p.cancelTempBasal(ctx, address, beep)
	})
}

// cancelTempBasal is the guard-free cancel step shared by CancelTempBasal
// and the pre-cancel SetTempBasal runs when a temp basal is already active.
func (p *PDM) cancelTempBasal(ctx context.Context, address uint32, beep bool) error {
	if err := p.cancelActivity(ctx, address, beep, false, true, false); err != nil {
		return err
	}
	if p.pod.BasalState == podstate.BasalTempBasal {
		return pdmerr.New(ctx, msgs.MsgTempBasalCancelFailed)
	}
	now := p.now()
	p.pod.LastEnactedTempBasalAmount = podstate.CancelSentinel
	p.pod.LastEnactedTempBasalStart = &now
	p.pod.LastEnactedTempBasalDurationHrs = 0
	return nil
}
