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

const statusCacheWindowSeconds = 60

// cmdStatusRequest is the wire command for a status/information refresh
// (spec §6): subtype byte 0 means "full status".
const cmdStatusRequest byte = 0x0e

// UpdatePodStatus implements spec §4.5.1. updateType 0 is the routine
// refresh used throughout this core and by the liveness predicates; a
// recent-enough last_updated short-circuits without any radio traffic.
func (p *PDM) UpdatePodStatus(ctx context.Context, updateType byte) error {
	return p.run(ctx, func(ctx context.Context) error {
		return p.updatePodStatus(ctx, updateType, "")
	})
}

// updatePodStatus is the lock-free core of UpdatePodStatus. The liveness
// predicates use forceStatusRefresh instead, and the interim resync builds
// its own status probe inside the Transaction Engine.
func (p *PDM) updatePodStatus(ctx context.Context, updateType byte, requestTag string) error {
	address, err := p.requireAddress(ctx)
	if err != nil {
		return err
	}

	if updateType == 0 && p.pod.LastUpdated != nil {
		if p.now().Sub(*p.pod.LastUpdated).Seconds() < statusCacheWindowSeconds {
			return nil
		}
	}

	msg := message.New(message.PDM, address, p.radio.MessageSequence())
	msg.AddCommand(cmdStatusRequest, []byte{updateType})
	return p.engine.Send(ctx, msg, false, false, requestTag)
}

// forceStatusRefresh always issues a status request, bypassing the
// last_updated cache window - used by the liveness predicates (spec
// §4.5.11) which need the pod's current sub-state, not a cached one.
func (p *PDM) forceStatusRefresh(ctx context.Context) error {
	address, err := p.requireAddress(ctx)
	if err != nil {
		return err
	}
	msg := message.New(message.PDM, address, p.radio.MessageSequence())
	msg.AddCommand(cmdStatusRequest, []byte{0})
	return p.engine.Send(ctx, msg, false, false, "")
}
