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
	"testing"
	"time"

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
func (m *mockRadio) Disconnect(ctx context.Context)    { m.Called(ctx) }
func (m *mockRadio) MessageSequence() uint8            { return m.msgSeq }
func (m *mockRadio) SetMessageSequence(seq uint8)      { m.msgSeq = seq }
func (m *mockRadio) PacketSequence() uint8             { return m.pktSeq }

type mockPersister struct {
	mock.Mock
	saved *podstate.Record
}

func (m *mockPersister) Save(ctx context.Context, r *podstate.Record) error {
	args := m.Called(ctx, r)
	m.saved = r
	return args.Error(0)
}

func okStatusResponse(bolusImmediate, tempBasal bool) *message.Message {
	var flags byte
	if bolusImmediate {
		flags |= 0x04
	}
	if tempBasal {
		flags |= 0x02
	}
	payload := []byte{byte(podstate.ProgressRunning)<<4 | flags, 0x03, 0xE8, 0x00, 0x00}
	return message.NewResponse(0xCAFE, 0, []message.Content{{Type: 0x1d, Payload: payload}})
}

func newTestPDM(t *testing.T) (*PDM, *podstate.Record, *mockRadio, *mockPersister) {
	addr := uint32(0xCAFE)
	pod := &podstate.Record{
		Lot:              1,
		TID:              2,
		Address:          &addr,
		Progress:         podstate.ProgressRunning,
		MaximumBolus:     30,
		MaximumTempBasal: 10,
		Reservoir:        50,
	}
	r := &mockRadio{}
	r.On("Disconnect", mock.Anything).Return()
	persister := &mockPersister{}
	persister.On("Save", mock.Anything, mock.Anything).Return(nil)
	n := nonce.New(pod.Lot, pod.TID, 0, 0)
	p := New(pod, r, n, persister)
	p.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
	return p, pod, r, persister
}

func TestUpdatePodStatusCachedHitSkipsRadio(t *testing.T) {
	p, pod, r, persister := newTestPDM(t)
	recent := p.now().Add(-30 * time.Second)
	pod.LastUpdated = &recent

	err := p.UpdatePodStatus(context.Background(), 0)
	require.NoError(t, err)
	r.AssertNotCalled(t, "SendRequestGetResponse", mock.Anything, mock.Anything, mock.Anything)
	persister.AssertCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestBolusExceedsMaximumRejectedWithoutRadio(t *testing.T) {
	p, pod, r, persister := newTestPDM(t)
	pod.MaximumBolus = 5.0

	err := p.Bolus(context.Background(), 6.0, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds defined maximum")
	r.AssertNotCalled(t, "SendRequestGetResponse", mock.Anything, mock.Anything, mock.Anything)
	persister.AssertCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestBolusHappyPathAssemblesExactBody(t *testing.T) {
	p, _, r, _ := newTestPDM(t)

	var captured *message.Message
	r.On("SendRequestGetResponse", mock.Anything, mock.Anything, false).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*message.Message)
		}).
		Return(okStatusResponse(true, false), nil)

	err := p.Bolus(context.Background(), 2.00, false)
	require.NoError(t, err)
	require.NotNil(t, captured)
	require.Len(t, captured.Commands, 2)

	primary := captured.Commands[0].Body
	require.Equal(t, byte(0x1a), captured.Commands[0].Type)
	// bytes 0-3 are the nonce placeholder (stamped by the engine before
	// transmission); bytes 4 onward are asserted here: subtype, additive
	// checksum 0x00D3 over the seven bytes that follow, then those bytes.
	assert.Equal(t, []byte{0x02, 0x00, 0xD3, 0x01, 0x02, 0x80, 0x00, 0x28, 0x00, 0x28}, primary[4:])

	assert.Equal(t, byte(0x17), captured.Commands[1].Type)
}

func TestSetBasalScheduleAssemblesExactBody(t *testing.T) {
	p, _, r, _ := newTestPDM(t)

	var captured *message.Message
	basalProgramResponse := message.NewResponse(0xCAFE, 0, []message.Content{
		{Type: 0x1d, Payload: []byte{byte(podstate.ProgressRunning)<<4 | 0x01, 0x03, 0xE8, 0x00, 0x00}},
	})
	r.On("SendRequestGetResponse", mock.Anything, mock.Anything, false).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*message.Message)
		}).
		Return(basalProgramResponse, nil)

	var schedule [podstate.ScheduleSlots]float64
	for i := range schedule {
		schedule[i] = 1.0
	}

	err := p.SetBasalSchedule(context.Background(), schedule)
	require.NoError(t, err)
	require.NotNil(t, captured)
	require.Len(t, captured.Commands, 2)

	primary := captured.Commands[0].Body
	require.Equal(t, byte(0x1a), captured.Commands[0].Type)
	// bytes 0-3 are the nonce placeholder; bytes 4 onward are the subtype
	// byte, body_for_checksum ([current_half_hour, seconds_until_half_hour*8,
	// pulses_remaining_current_hour], spec §4.5.7), then the compressed
	// insulin schedule table (one run: 20 pulses x48 half hours).
	assert.Equal(t, []byte{0x00, 0x18, 0x38, 0x40, 0x00, 0x14, 0x00, 0x14, 0x00, 0x30}, primary[4:])

	require.Equal(t, byte(0x13), captured.Commands[1].Type)
	extra := captured.Commands[1].Body
	require.GreaterOrEqual(t, len(extra), 2)
	assert.Equal(t, []byte{0x00, 0x00}, extra[:2], "reminders byte followed by the literal 0x00")
}

func TestAcknowledgeAlertsAssemblesExactBody(t *testing.T) {
	p, _, r, _ := newTestPDM(t)

	var captured *message.Message
	r.On("SendRequestGetResponse", mock.Anything, mock.Anything, true).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*message.Message)
		}).
		Return(message.NewResponse(0xCAFE, 0, nil), nil)

	err := p.AcknowledgeAlerts(context.Background(), 0x05)
	require.NoError(t, err)
	require.NotNil(t, captured)
	require.Len(t, captured.Commands, 1)
	require.Equal(t, byte(0x11), captured.Commands[0].Type)
	// bytes 0-3 are the nonce placeholder, byte 4 is the mask.
	assert.Equal(t, byte(0x05), captured.Commands[0].Body[4])
}

func TestGuardAcknowledgeAlertsMapping(t *testing.T) {
	cases := []struct {
		name     string
		progress podstate.Progress
		want     string
	}{
		{"not yet paired", podstate.ProgressInactive, "Pod not paired completely yet"},
		{"error shutting down", podstate.ProgressErrorShuttingDown, "Pod is shutting down, cannot acknowledge alerts"},
		{"alert expired shutting down", podstate.ProgressAlertExpiredShuttingDown, "Acknowledgement period expired, pod is shutting down"},
		{"beyond shutdown", podstate.ProgressInactive2, "Pod is not active"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, pod, r, _ := newTestPDM(t)
			pod.Progress = c.progress

			err := p.AcknowledgeAlerts(context.Background(), 0x01)
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
			r.AssertNotCalled(t, "SendRequestGetResponse", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestTempBasalWhileActiveCancelsFirst(t *testing.T) {
	p, pod, r, _ := newTestPDM(t)
	pod.BasalState = podstate.BasalTempBasal
	started := p.now().Add(-10 * time.Minute)
	pod.LastEnactedTempBasalAmount = 1.0
	pod.LastEnactedTempBasalStart = &started
	pod.LastEnactedTempBasalDurationHrs = 2.0

	var calls []byte
	r.On("SendRequestGetResponse", mock.Anything, mock.MatchedBy(func(m *message.Message) bool {
		return len(m.Commands) == 1 && m.Commands[0].Type == 0x1f
	}), true).Run(func(args mock.Arguments) {
		calls = append(calls, 0x1f)
	}).Return(okStatusResponse(false, false), nil).Once()

	r.On("SendRequestGetResponse", mock.Anything, mock.MatchedBy(func(m *message.Message) bool {
		return len(m.Commands) == 2 && m.Commands[0].Type == 0x1a
	}), false).Run(func(args mock.Arguments) {
		calls = append(calls, 0x1a)
	}).Return(okStatusResponse(false, true), nil).Once()

	err := p.SetTempBasal(context.Background(), 1.0, 2.0, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x1a}, calls)
}
