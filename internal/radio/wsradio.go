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

package radio

import (
	"context"
	"sync"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/gorilla/websocket"
	"github.com/kaleido-io/omnipod-pdm/internal/msgs"
	"github.com/kaleido-io/omnipod-pdm/internal/pdmerr"
	"github.com/kaleido-io/omnipod-pdm/internal/plog"
	"github.com/kaleido-io/omnipod-pdm/pkg/message"
)

// WSRadio is the default Radio implementation: it frames PDM/Pod messages
// over a websocket byte stream, standing in for the BLE/RF link a real
// pod uses. It is a stand-in transport for development and integration
// testing; production deployments are expected to supply their own Radio
// bound to the real RF hardware.
type WSRadio struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	connID  string
	msgSeq  uint8
	pktSeq  uint8
	timeout time.Duration
}

// NewWSRadio constructs a WSRadio seeded from the pod record's persisted
// sequence counters (spec §6).
func NewWSRadio(url string, msgSeq, pktSeq uint8) *WSRadio {
	return &WSRadio{
		url:     url,
		dialer:  websocket.DefaultDialer,
		msgSeq:  msgSeq,
		pktSeq:  pktSeq,
		timeout: 30 * time.Second,
	}
}

func (r *WSRadio) ensureConnected(ctx context.Context) error {
	if r.conn != nil {
		return nil
	}
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return pdmerr.Wrap(ctx, err, msgs.MsgRadioConnectFailed, r.url)
	}
	r.conn = conn
	connID, idErr := nanoid.New()
	if idErr != nil {
		connID = "unknown"
	}
	r.connID = connID
	plog.L(ctx).WithField("conn_id", r.connID).Debug("radio link established")
	return nil
}

// SendRequestGetResponse implements Radio.
func (r *WSRadio) SendRequestGetResponse(ctx context.Context, msg *message.Message, stayConnected bool) (*message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureConnected(ctx); err != nil {
		return nil, err
	}
	_ = r.conn.SetWriteDeadline(time.Now().Add(r.timeout))
	if err := r.conn.WriteMessage(websocket.BinaryMessage, encodeFrame(msg)); err != nil {
		r.closeLocked(ctx)
		return nil, pdmerr.NewOutOfSync(ctx)
	}
	r.pktSeq = (r.pktSeq + 1) % 32

	_ = r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	_, raw, err := r.conn.ReadMessage()
	if err != nil {
		r.closeLocked(ctx)
		return nil, pdmerr.NewOutOfSync(ctx)
	}
	r.pktSeq = (r.pktSeq + 1) % 32

	contents, err := decodeFrame(raw)
	if err != nil {
		r.closeLocked(ctx)
		return nil, pdmerr.NewOutOfSync(ctx)
	}

	r.msgSeq = (msg.Sequence + 1) % 16
	if !stayConnected {
		r.closeLocked(ctx)
	}
	return message.NewResponse(msg.Address, msg.Sequence, contents), nil
}

// Disconnect implements Radio.
func (r *WSRadio) Disconnect(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked(ctx)
}

func (r *WSRadio) closeLocked(ctx context.Context) {
	if r.conn == nil {
		return
	}
	_ = r.conn.Close()
	plog.L(ctx).WithField("conn_id", r.connID).Debug("radio link closed")
	r.conn = nil
}

// MessageSequence implements Radio.
func (r *WSRadio) MessageSequence() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgSeq
}

// SetMessageSequence implements Radio.
func (r *WSRadio) SetMessageSequence(seq uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgSeq = seq
}

// PacketSequence implements Radio.
func (r *WSRadio) PacketSequence() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pktSeq
}
