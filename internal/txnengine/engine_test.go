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

package txnengine

import (
	"context"
	"testing"
	"time"

	"github.com/kaleido-io/omnipod-pdm/internal/pdmerr"
	"github.com/kaleido-io/omnipod-pdm/pkg/message"
	"github.com/kaleido-io/omnipod-pdm/pkg/nonce"
	"github.com/kaleido-io/omnipod-pdm/pkg/podstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRadio struct {
	mock.Mock
	msgSeq uint8
	pktSeq uint8
}

func (m *mockRadio) SendRequestGetResponse(ctx context.Context, msg *message.Message, stayConnected bool) (*message.Message, error) {
	args := m.Called(ctx, msg, stayConnected)
	if resp, ok := args.Get(0).(*message.Message); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRadio) Disconnect(ctx context.Context) { m.Called(ctx) }

func (m *mockRadio) MessageSequence() uint8     { return m.msgSeq }
func (m *mockRadio) SetMessageSequence(s uint8) { m.msgSeq = s }
func (m *mockRadio) PacketSequence() uint8      { return m.pktSeq }

type noopSleeper struct{ calls int }

func (s *noopSleeper) Sleep(ctx context.Context, d time.Duration) { s.calls++ }

func newTestEngine(r *mockRadio) (*Engine, *podstate.Record) {
	pod := &podstate.Record{}
	addr := uint32(0xCAFE)
	pod.Address = &addr
	n := nonce.New(1, 2, 0, 0)
	e := New(r, n, pod)
	e.Sleeper = &noopSleeper{}
	return e, pod
}

func statusResponse() *message.Message {
	payload := []byte{byte(podstate.ProgressRunning) << 4, 0x00, 0x00, 0x00, 0x00}
	return message.NewResponse(0xCAFE, 0, []message.Content{{Type: 0x1d, Payload: payload}})
}

func TestSendAppliesStatusResponse(t *testing.T) {
	r := &mockRadio{}
	e, pod := newTestEngine(r)
	msg := message.New(message.PDM, 0xCAFE, 0)
	msg.AddCommand(0x0e, []byte{0})

	r.On("SendRequestGetResponse", mock.Anything, msg, false).Return(statusResponse(), nil)

	err := e.Send(context.Background(), msg, false, false, "")
	require.NoError(t, err)
	assert.Equal(t, podstate.ProgressRunning, pod.Progress)
	r.AssertExpectations(t)
}

func TestSendStampsNonceWhenRequested(t *testing.T) {
	r := &mockRadio{}
	e, _ := newTestEngine(r)
	msg := message.New(message.PDM, 0xCAFE, 0)
	msg.AddCommand(0x1a, []byte{0, 0, 0, 0})
	msg.ReserveNonce()

	var captured *message.Message
	r.On("SendRequestGetResponse", mock.Anything, mock.Anything, false).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*message.Message)
		}).
		Return(message.NewResponse(0xCAFE, 0, nil), nil)

	err := e.Send(context.Background(), msg, true, false, "")
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.NotEqual(t, []byte{0, 0, 0, 0}, captured.Commands[0].Body, "nonce must be stamped into the body")
}

func TestBadNonceTriggersExactlyOneAdditionalSendPerRound(t *testing.T) {
	r := &mockRadio{}
	e, _ := newTestEngine(r)
	msg := message.New(message.PDM, 0xCAFE, 5)
	msg.AddCommand(0x1a, []byte{0, 0, 0, 0})
	msg.ReserveNonce()

	badNonceResp := message.NewResponse(0xCAFE, 5, []message.Content{
		{Type: 0x06, Payload: []byte{0x14, 0xAB, 0xCD}},
	})
	okResp := message.NewResponse(0xCAFE, 5, nil)

	calls := 0
	r.On("SendRequestGetResponse", mock.Anything, mock.Anything, false).
		Return(badNonceResp, nil).Once()
	r.On("SendRequestGetResponse", mock.Anything, mock.Anything, false).
		Run(func(mock.Arguments) { calls++ }).
		Return(okResp, nil).Once()

	err := e.Send(context.Background(), msg, true, false, "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	r.AssertNumberOfCalls(t, "SendRequestGetResponse", 2)
}

func TestBadNonceExceedingRetryBudgetFails(t *testing.T) {
	r := &mockRadio{}
	e, _ := newTestEngine(r)
	msg := message.New(message.PDM, 0xCAFE, 5)
	msg.AddCommand(0x1a, []byte{0, 0, 0, 0})
	msg.ReserveNonce()

	badNonceResp := message.NewResponse(0xCAFE, 5, []message.Content{
		{Type: 0x06, Payload: []byte{0x14, 0xAB, 0xCD}},
	})
	r.On("SendRequestGetResponse", mock.Anything, mock.Anything, false).Return(badNonceResp, nil)

	err := e.Send(context.Background(), msg, true, false, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nonce re-negotiation failed")
	r.AssertNumberOfCalls(t, "SendRequestGetResponse", 5)
}

func TestOutOfSyncRunsInterimResyncThenReplaysOnce(t *testing.T) {
	r := &mockRadio{}
	e, _ := newTestEngine(r)
	msg := message.New(message.PDM, 0xCAFE, 2)
	msg.AddCommand(0x0e, []byte{0})

	outOfSync := pdmerr.NewOutOfSync(context.Background())

	// first attempt at the original message fails out of sync
	r.On("SendRequestGetResponse", mock.Anything, msg, false).Return(nil, outOfSync).Once()
	// interim resync's bare status probe succeeds
	r.On("SendRequestGetResponse", mock.Anything, mock.MatchedBy(func(m *message.Message) bool {
		return len(m.Commands) == 1 && m.Commands[0].Type == 0x0e
	}), true).Return(message.NewResponse(0xCAFE, 0, nil), nil).Once()
	// replay of the original message succeeds
	r.On("SendRequestGetResponse", mock.Anything, msg, false).Return(message.NewResponse(0xCAFE, 2, nil), nil).Once()

	err := e.Send(context.Background(), msg, false, false, "")
	require.NoError(t, err)
	r.AssertNumberOfCalls(t, "SendRequestGetResponse", 3)
}

func TestSecondOutOfSyncSurfaces(t *testing.T) {
	r := &mockRadio{}
	e, _ := newTestEngine(r)
	msg := message.New(message.PDM, 0xCAFE, 2)
	msg.AddCommand(0x0e, []byte{0})

	outOfSync := pdmerr.NewOutOfSync(context.Background())
	r.On("SendRequestGetResponse", mock.Anything, msg, false).Return(nil, outOfSync).Once()
	r.On("SendRequestGetResponse", mock.Anything, mock.MatchedBy(func(m *message.Message) bool {
		return len(m.Commands) == 1 && m.Commands[0].Type == 0x0e
	}), true).Return(message.NewResponse(0xCAFE, 0, nil), nil).Once()
	r.On("SendRequestGetResponse", mock.Anything, msg, false).Return(nil, outOfSync).Once()

	err := e.Send(context.Background(), msg, false, false, "")
	require.Error(t, err)
	assert.True(t, pdmerr.AsOutOfSync(err))
}
