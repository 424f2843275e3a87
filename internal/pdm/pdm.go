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

// Package pdm implements the Command Layer and the Mutual Exclusion &
// Lifecycle Wrapper around it (spec §4.5, §4.6): one method per therapeutic
// intent, each guarded, transacted through the Transaction Engine, and
// post-checked, all serialised behind a single process-wide lock that
// guarantees link teardown and record persistence on every exit path.
package pdm

import (
	"context"
	"sync"
	"time"

	"github.com/kaleido-io/omnipod-pdm/internal/msgs"
	"github.com/kaleido-io/omnipod-pdm/internal/pdmerr"
	"github.com/kaleido-io/omnipod-pdm/internal/plog"
	"github.com/kaleido-io/omnipod-pdm/internal/radio"
	"github.com/kaleido-io/omnipod-pdm/internal/txnengine"
	"github.com/kaleido-io/omnipod-pdm/pkg/nonce"
	"github.com/kaleido-io/omnipod-pdm/pkg/podstate"
)

// PDM is the single exported facade implementing every operation in spec
// §4.5. It owns no transport or storage directly; those are injected
// collaborators, per the "global mutable state becomes explicit
// dependencies" design note (spec §9).
type PDM struct {
	mu sync.Mutex

	pod       *podstate.Record
	radio     radio.Radio
	nonceGen  *nonce.Generator
	engine    *txnengine.Engine
	persister podstate.Persister

	now func() time.Time
}

// New constructs a PDM bound to a single pod session. The caller is
// responsible for restoring pod, radio and nonceGen from persisted state
// before the first operation.
func New(pod *podstate.Record, r radio.Radio, n *nonce.Generator, persister podstate.Persister) *PDM {
	return &PDM{
		pod:       pod,
		radio:     r,
		nonceGen:  n,
		engine:    txnengine.New(r, n, pod),
		persister: persister,
		now:       time.Now,
	}
}

// run executes fn under the process-wide lock, then unconditionally tears
// down the radio link and persists the pod record before returning,
// normalising errors per spec §4.6 and §7. Lock contention fails fast with
// a PdmBusyError rather than blocking.
func (p *PDM) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if !p.mu.TryLock() {
		return pdmerr.NewBusy(ctx)
	}
	defer p.mu.Unlock()

	opErr := fn(ctx)

	p.radio.Disconnect(ctx)
	p.pod.MsgSequence = p.radio.MessageSequence()
	p.pod.PacketSequence = p.radio.PacketSequence()
	p.pod.NonceSeed = p.nonceGen.Seed()
	p.pod.LastNonce = p.nonceGen.LastNonce()

	if saveErr := p.pod.Save(ctx, p.persister); saveErr != nil {
		plog.L(ctx).WithError(saveErr).Error("pod record was not persisted")
		return pdmerr.Wrap(ctx, saveErr, msgs.MsgPodNotSaved)
	}

	if opErr == nil {
		return nil
	}
	return pdmerr.WrapUnexpected(ctx, opErr)
}

// IsBusy reports whether the pod is presently mid-delivery (spec §4.5.10).
// A lock that cannot be acquired is itself treated as "busy" - a command is
// already in flight, which is the only reason the lock would be held.
func (p *PDM) IsBusy(ctx context.Context) bool {
	if !p.mu.TryLock() {
		return true
	}
	defer p.mu.Unlock()
	busy := p.isBolusRunning(ctx)
	p.radio.Disconnect(ctx)
	return busy
}
