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
	cmdInsulinSchedule byte = 0x1a
	cmdBolusExtra      byte = 0x17
)

const (
	subtypeImmediateBolus byte = 0x02
	maxPulseSpan               = 0x3840
	bolusDeliveryStart         = 200000
	bolusBeepReminder     byte = 0x40
)

// Bolus implements spec §4.5.3.
func (p *PDM) Bolus(ctx context.Context, amount float64, beep bool) error {
	return p.run(ctx, func(ctx context.Context) error {
		address, err := p.requireAddress(ctx)
		if err != nil {
			return err
		}
		if p.isBolusRunning(ctx) {
			return pdmerr.New(ctx, msgs.MsgBolusBusy)
		}
		if err := p.requireRunning(ctx); err != nil {
			return err
		}
		if amount > p.pod.MaximumBolus {
			return pdmerr.New(ctx, msgs.MsgBolusExceedsMaximum, amount, p.pod.MaximumBolus)
		}

		pulseCount := uint16(math.Floor(amount * 20))
		if pulseCount == 0 {
			return pdmerr.New(ctx, msgs.MsgZeroBolus)
		}
		pulseSpan := uint32(pulseCount) * 16
		if pulseSpan > maxPulseSpan {
			return pdmerr.New(ctx, msgs.MsgBolusTooLong)
		}
		if p.isBolusRunning(ctx) {
			return pdmerr.New(ctx, msgs.MsgBolusAlreadyRunning)
		}
		if amount > p.pod.Reservoir {
			return pdmerr.New(ctx, msgs.MsgBolusExceedsReservoir, amount, p.pod.Reservoir)
		}

		bodyForChecksum := []byte{
			0x01,
			byte(pulseSpan >> 8), byte(pulseSpan),
			byte(pulseCount >> 8), byte(pulseCount),
			byte(pulseCount >> 8), byte(pulseCount),
		}
		checksum := pulsetable.Checksum(bodyForChecksum)

		primaryBody := make([]byte, 0, 14)
		primaryBody = append(primaryBody, 0, 0, 0, 0) // nonce placeholder
		primaryBody = append(primaryBody, subtypeImmediateBolus)
		primaryBody = append(primaryBody, byte(checksum>>8), byte(checksum))
		primaryBody = append(primaryBody, bodyForChecksum...)

		var reminders byte
		if beep {
			reminders = bolusBeepReminder
		}
		intervalUS := uint32(pulseCount) * 10
		extraBody := []byte{reminders, byte(intervalUS >> 8), byte(intervalUS)}
		extraBody = append(extraBody,
			byte(bolusDeliveryStart>>24), byte(bolusDeliveryStart>>16),
			byte(bolusDeliveryStart>>8), byte(bolusDeliveryStart))
		extraBody = append(extraBody, make([]byte, 6)...)

		msg := message.New(message.PDM, address, p.radio.MessageSequence())
		msg.AddCommand(cmdInsulinSchedule, primaryBody)
		msg.ReserveNonce()
		msg.AddCommand(cmdBolusExtra, extraBody)

		if err := p.engine.Send(ctx, msg, true, false, ""); err != nil {
			return err
		}
		if p.pod.BolusState != podstate.BolusImmediate {
			return pdmerr.New(ctx, msgs.MsgBolusNotConfirmed)
		}
		now := p.now()
		p.pod.LastEnactedBolusAmount = amount
		p.pod.LastEnactedBolusStart = &now
		return nil
	})
}

// CancelBolus implements spec §4.5.4. A no-op (beyond the uniform
// lock/disconnect/save envelope) when no bolus is currently running.
func (p *PDM) CancelBolus(ctx context.Context, beep bool) error {
	return p.run(ctx, func(ctx context.Context) error {
		address, err := p.requireAddress(ctx)
		if err != nil {
			return err
		}
		if err := p.requireRunning(ctx); err != nil {
			return err
		}
		if !p.isBolusRunning(ctx) {
			return nil
		}

		if err := p.cancelActivity(ctx, address, beep, true, false, false); err != nil {
			return err
		}
		if p.pod.BolusState == podstate.BolusImmediate {
			return pdmerr.New(ctx, msgs.MsgBolusCancelFailed)
		}
		now := p.now()
		p.pod.LastEnactedBolusAmount = podstate.CancelSentinel
		p.pod.LastEnactedBolusStart = &now
		return nil
	})
}
