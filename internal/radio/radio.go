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

// Package radio defines the RF transceiver / link-layer collaborator the
// Transaction Engine depends on (spec §1, §6). The link layer itself -
// opening/closing connections, framing, and raising out-of-sync - is an
// external collaborator; this package only states the contract plus one
// concrete, swappable transport.
package radio

import (
	"context"

	"github.com/kaleido-io/omnipod-pdm/pkg/message"
)

// Radio is the contract the Transaction Engine consumes (spec §6). A
// Radio owns the link's message and packet sequence counters, seeded from
// the pod record at construction.
type Radio interface {
	// SendRequestGetResponse ships message and returns the pod's response,
	// or a *pdmerr.TransmissionOutOfSyncError if the link desynchronised.
	SendRequestGetResponse(ctx context.Context, msg *message.Message, stayConnected bool) (*message.Message, error)

	// Disconnect releases the link, allowing the pod to sleep. It is
	// called on every exit path from every command (spec §4.6).
	Disconnect(ctx context.Context)

	// MessageSequence and PacketSequence are owned by the radio. Only the
	// message sequence is set from outside, by the bad-nonce rewind in the
	// Transaction Engine.
	MessageSequence() uint8
	SetMessageSequence(uint8)
	PacketSequence() uint8
}
