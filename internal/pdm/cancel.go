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

	"github.com/kaleido-io/omnipod-pdm/pkg/message"
)

const (
	cmdCancelActivity byte = 0x1f
	cmdDeactivatePod  byte = 0x1c
)

const (
	cancelFlagBeep      = 0x60
	cancelFlagBolus     = 0x04
	cancelFlagTempBasal = 0x02
	cancelFlagScheduled = 0x01
)

// cancelActivity sends the shared cancel command (spec §4.5.9): one flag
// byte selects which running activity(ies) to stop, with an independent
// beep flag folded into the same byte.
func (p *PDM) cancelActivity(ctx context.Context, address uint32, beep, bolus, tempBasal, scheduled bool) error {
	var flags byte
	if beep {
		flags |= cancelFlagBeep
	}
	if bolus {
		flags |= cancelFlagBolus
	}
	if tempBasal {
		flags |= cancelFlagTempBasal
	}
	if scheduled {
		flags |= cancelFlagScheduled
	}

	msg := message.New(message.PDM, address, p.radio.MessageSequence())
	msg.AddCommand(cmdCancelActivity, []byte{0, 0, 0, 0, flags})
	msg.ReserveNonce()
	return p.engine.Send(ctx, msg, true, true, "")
}

// DeactivatePod implements spec §4.5.8. There is no post-check; a
// deactivated pod stops answering regardless of whether this command's
// response is observed.
func (p *PDM) DeactivatePod(ctx context.Context) error {
	return p.run(ctx, func(ctx context.Context) error {
		address, err := p.requireAddress(ctx)
		if err != nil {
			return err
		}

		msg := message.New(message.PDM, address, p.radio.MessageSequence())
		msg.AddCommand(cmdDeactivatePod, []byte{0, 0, 0, 0})
		msg.ReserveNonce()
		return p.engine.Send(ctx, msg, true, false, "")
	})
}
