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

const cmdAcknowledgeAlerts byte = 0x11

// AcknowledgeAlerts implements spec §4.5.2.
func (p *PDM) AcknowledgeAlerts(ctx context.Context, mask uint8) error {
	return p.run(ctx, func(ctx context.Context) error {
		address, err := p.requireAddress(ctx)
		if err != nil {
			return err
		}
		if err := p.guardAcknowledgeAlerts(ctx); err != nil {
			return err
		}

		msg := message.New(message.PDM, address, p.radio.MessageSequence())
		msg.AddCommand(cmdAcknowledgeAlerts, []byte{0, 0, 0, 0, mask})
		msg.ReserveNonce()
		return p.engine.Send(ctx, msg, true, true, "")
	})
}
