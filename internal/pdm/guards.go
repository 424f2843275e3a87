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
	"github.com/kaleido-io/omnipod-pdm/pkg/podstate"
)

// requireAddress is the "address assigned" guard every command in spec
// §4.5 opens with; it also covers the identity fields the nonce generator
// was seeded from, since a pod record missing either is not one this core
// was ever handed a real session for.
func (p *PDM) requireAddress(ctx context.Context) (uint32, error) {
	if p.pod == nil {
		return 0, pdmerr.New(ctx, msgs.MsgNoPodAssigned)
	}
	if p.pod.Lot == 0 {
		return 0, pdmerr.New(ctx, msgs.MsgLotNotDefined)
	}
	if p.pod.TID == 0 {
		return 0, pdmerr.New(ctx, msgs.MsgTIDNotDefined)
	}
	if p.pod.Address == nil {
		return 0, pdmerr.New(ctx, msgs.MsgAddressUnknown)
	}
	return *p.pod.Address, nil
}

// requireRunning guards the commands that only make sense while the pod is
// actively delivering (bolus, cancels, temp basal): not faulted, progress
// within [Running, RunningLow].
func (p *PDM) requireRunning(ctx context.Context) error {
	if p.pod.Faulted {
		return pdmerr.New(ctx, msgs.MsgPodFaulted)
	}
	switch {
	case p.pod.Progress < podstate.ProgressRunning:
		return pdmerr.New(ctx, msgs.MsgNotYetRunning)
	case p.pod.Progress > podstate.ProgressRunningLow:
		return pdmerr.New(ctx, msgs.MsgPodStopped)
	}
	return nil
}

// requireActive guards the basal-program commands, which tolerate a wider
// progress range than requireRunning (spec §4.2 is_active()).
func (p *PDM) requireActive(ctx context.Context) error {
	if !p.pod.IsActive() {
		return pdmerr.New(ctx, msgs.MsgNotActive)
	}
	return nil
}

// guardAcknowledgeAlerts implements the acknowledge_alerts precondition
// (spec §4.5.2): progress within [PairingSuccess, AlertExpiredShuttingDown)
// and not ErrorShuttingDown.
func (p *PDM) guardAcknowledgeAlerts(ctx context.Context) error {
	switch {
	case p.pod.Progress < podstate.ProgressPairingSuccess:
		return pdmerr.New(ctx, msgs.MsgNotPaired)
	case p.pod.Progress == podstate.ProgressErrorShuttingDown:
		return pdmerr.New(ctx, msgs.MsgShuttingDown)
	case p.pod.Progress == podstate.ProgressAlertExpiredShuttingDown:
		return pdmerr.New(ctx, msgs.MsgAckExpired)
	case p.pod.Progress > podstate.ProgressAlertExpiredShuttingDown:
		return pdmerr.New(ctx, msgs.MsgNotActive)
	}
	return nil
}
