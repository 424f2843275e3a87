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

	"github.com/kaleido-io/omnipod-pdm/internal/msgs"
	"github.com/kaleido-io/omnipod-pdm/internal/pdmerr"
	"github.com/kaleido-io/omnipod-pdm/pkg/message"
	"github.com/kaleido-io/omnipod-pdm/pkg/podstate"
	"github.com/kaleido-io/omnipod-pdm/pkg/pulsetable"
)

const (
	cmdBasalScheduleExtra byte = 0x13
	subtypeBasalSchedule  byte = 0x00

	minScheduleEntry = 0.05
	maxScheduleEntry = 30.0
)

// SetBasalSchedule implements spec §4.5.7.
func (p *PDM) SetBasalSchedule(ctx context.Context, schedule [podstate.ScheduleSlots]float64) error {
	return p.run(ctx, func(ctx context.Context) error {
		address, err := p.requireAddress(ctx)
		if err != nil {
			return err
		}
		if err := p.requireActive(ctx); err != nil {
			return err
		}
		if p.isTempBasalActive(ctx) {
			return pdmerr.New(ctx, msgs.MsgScheduleWhileTempBasal)
		}
		for _, entry := range schedule {
			if entry < minScheduleEntry {
				return pdmerr.New(ctx, msgs.MsgScheduleEntryTooLow)
			}
			if entry > maxScheduleEntry {
				return pdmerr.New(ctx, msgs.MsgScheduleEntryTooHigh)
			}
		}

		podTime := p.now().UTC().Add(utcOffset(p.pod.UTCOffsetMinutes))
		hour, minute, second := podTime.Hour(), podTime.Minute(), podTime.Second()

		currentHalfHour := hour*2 + boolToInt(minute >= 30)
		var secondsUntilHalfHour int
		if minute < 30 {
			secondsUntilHalfHour = (30-minute-1)*60 + (60 - second)
		} else {
			secondsUntilHalfHour = (60-minute-1)*60 + (60 - second)
		}

		pulseTable := pulsetable.PulsesForHalfHours(schedule[:])
		iseList := pulsetable.InsulinScheduleFromPulses(pulseTable)
		pulsesRemainingCurrent := secondsUntilHalfHour * int(pulseTable[currentHalfHour]) / 1800
		secondsUntilHalfHourEighths := secondsUntilHalfHour * 8

		// body_for_checksum is [current_half_hour(1B), seconds_until_half_hour*8
		// (BE u16), pulses_remaining_current_hour (BE u16)] - transmitted as part
		// of the primary command body, not just checksum input.
		bodyForChecksum := []byte{byte(currentHalfHour)}
		bodyForChecksum = append(bodyForChecksum, byte(secondsUntilHalfHourEighths>>8), byte(secondsUntilHalfHourEighths))
		bodyForChecksum = append(bodyForChecksum, byte(pulsesRemainingCurrent>>8), byte(pulsesRemainingCurrent))
		// checksum is computed but - per the Open Question this core
		// reproduces literally - never folded into the command body below.
		_ = pulsetable.Checksum(append(append([]byte{}, bodyForChecksum...), pulsetable.PulseListBody(pulseTable)...))

		primaryBody := make([]byte, 0, 10+4*len(iseList))
		primaryBody = append(primaryBody, 0, 0, 0, 0)
		primaryBody = append(primaryBody, subtypeBasalSchedule)
		primaryBody = append(primaryBody, bodyForChecksum...)
		primaryBody = append(primaryBody, pulsetable.StringBody(iseList)...)

		var leadingIntervalUS uint32
		if pulsesRemainingCurrent > 0 {
			leadingIntervalUS = uint32(secondsUntilHalfHour) * 1000000 / uint32(pulsesRemainingCurrent)
		}
		extraBody := []byte{0x00, 0x00}
		leadingPulses := uint16(pulsesRemainingCurrent) * 10
		extraBody = append(extraBody, byte(leadingPulses>>8), byte(leadingPulses))
		extraBody = append(extraBody,
			byte(leadingIntervalUS>>24), byte(leadingIntervalUS>>16),
			byte(leadingIntervalUS>>8), byte(leadingIntervalUS))

		entries := pulsetable.PulseIntervalEntries(schedule[:])
		for _, e := range entries {
			extraBody = append(extraBody, byte(e.PulseCount>>8), byte(e.PulseCount))
			extraBody = append(extraBody,
				byte(e.IntervalUS>>24), byte(e.IntervalUS>>16),
				byte(e.IntervalUS>>8), byte(e.IntervalUS))
		}

		msg := message.New(message.PDM, address, p.radio.MessageSequence())
		msg.AddCommand(cmdInsulinSchedule, primaryBody)
		msg.ReserveNonce()
		msg.AddCommand(cmdBasalScheduleExtra, extraBody)

		if err := p.engine.Send(ctx, msg, true, false, ""); err != nil {
			return err
		}
		if p.pod.BasalState != podstate.BasalProgram {
			return pdmerr.New(ctx, msgs.MsgScheduleNotConfirmed)
		}
		p.pod.BasalSchedule = schedule
		return nil
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
