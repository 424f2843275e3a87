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

// Package message implements the PDM<->pod wire message builder (spec
// §4.3): a typed envelope carrying one or more commands, a sender address,
// a message sequence and an optional nonce.
package message

import "encoding/binary"

// Type distinguishes which side originated a Message.
type Type int

const (
	PDM Type = iota
	Pod
)

// Command is a single command sub-frame: a command type byte and its body.
type Command struct {
	Type byte
	Body []byte
}

// Content is a single response sub-frame, as returned inside a received
// Message (spec §3, "Response Content").
type Content struct {
	Type    byte
	Payload []byte
}

// Message is immutable once transmitted; the Command Layer builds one per
// outbound exchange via New/AddCommand/ReserveNonce, and the Transaction
// Engine stamps its nonce with SetNonce and hands it to the radio
// collaborator.
type Message struct {
	Type     Type
	Address  uint32
	Sequence uint8
	Commands []Command

	// Contents carries a received message's response sub-frames (spec §3).
	// It is empty on an outbound message.
	Contents []Content

	nonceCmdIndex int
	hasNonceSlot  bool
}

// NewResponse builds a received message carrying contents, as decoded by
// the radio collaborator.
func NewResponse(address uint32, sequence uint8, contents []Content) *Message {
	return &Message{Type: Pod, Address: address, Sequence: sequence, Contents: contents}
}

// New creates an empty message addressed to address, carrying sequence.
func New(msgType Type, address uint32, sequence uint8) *Message {
	return &Message{
		Type:     msgType,
		Address:  address,
		Sequence: sequence,
		Commands: make([]Command, 0, 2),
	}
}

// AddCommand appends a command to the message. Body is copied so later
// mutation by the caller (e.g. appending more fields) cannot retroactively
// change an already-added command.
func (m *Message) AddCommand(cmdType byte, body []byte) {
	owned := make([]byte, len(body))
	copy(owned, body)
	m.Commands = append(m.Commands, Command{Type: cmdType, Body: owned})
}

// ReserveNonce marks the command most recently added as the one whose
// first four body bytes are the nonce placeholder SetNonce will later
// stamp. Command Layer builders write "\x00\x00\x00\x00" as that prefix
// themselves before calling ReserveNonce, so the body length is already
// correct.
func (m *Message) ReserveNonce() {
	m.nonceCmdIndex = len(m.Commands) - 1
	m.hasNonceSlot = true
}

// SetNonce stamps n, big-endian, into the first four body bytes of the
// command marked by ReserveNonce (spec §4.3). It is a no-op if no command
// reserved a nonce slot.
func (m *Message) SetNonce(n uint32) {
	if !m.hasNonceSlot {
		return
	}
	body := m.Commands[m.nonceCmdIndex].Body
	if len(body) < 4 {
		return
	}
	binary.BigEndian.PutUint32(body[0:4], n)
}
