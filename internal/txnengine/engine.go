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

// Package txnengine implements the Transaction Engine (spec §4.4): the
// single entry point that ships a composed message through the Radio
// collaborator, classifies the response, and applies the bad-nonce and
// out-of-sync retry policies.
package txnengine

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/kaleido-io/omnipod-pdm/internal/msgs"
	"github.com/kaleido-io/omnipod-pdm/internal/pdmerr"
	"github.com/kaleido-io/omnipod-pdm/internal/plog"
	"github.com/kaleido-io/omnipod-pdm/internal/radio"
	"github.com/kaleido-io/omnipod-pdm/pkg/message"
	"github.com/kaleido-io/omnipod-pdm/pkg/nonce"
	"github.com/kaleido-io/omnipod-pdm/pkg/podstate"
)

// Response sub-frame types the engine classifies itself (spec §4.4); any
// other ctype is left for the pod record to have already consumed, or is
// silently ignored by this core.
const (
	ctypeStatus   = 0x1d
	ctypeInfo     = 0x02
	ctypeError    = 0x06
	errcodeBadNonce = 0x14
)

// maxNonceRetries is the bound on bad-nonce renegotiation rounds (spec §7,
// §8 property 5): nonce_retry ranges over {0,1,2,3}; the fifth attempt
// fails outright.
const maxNonceRetries = 3

const (
	interimResyncFirstSleep  = 15 * time.Second
	interimResyncSecondSleep = 5 * time.Second
)

// Engine ships messages for a single pod session. It is not safe for
// concurrent use - callers serialize access the same way they serialize
// access to the nonce generator and pod record (spec §5).
type Engine struct {
	Radio   radio.Radio
	Nonce   *nonce.Generator
	Pod     *podstate.Record
	Sleeper Sleeper
}

// New constructs an Engine over the given collaborators.
func New(r radio.Radio, n *nonce.Generator, pod *podstate.Record) *Engine {
	return &Engine{Radio: r, Nonce: n, Pod: pod, Sleeper: RealSleeper{}}
}

// Send ships msg, optionally stamping a fresh nonce, and resolves the
// pod's response - including any bad-nonce renegotiation or out-of-sync
// recovery - before returning (spec §4.4). requestTag is a caller-supplied
// correlation string for logging; an empty tag gets a generated one so log
// lines for a single logical request can always be joined on it.
func (e *Engine) Send(ctx context.Context, msg *message.Message, withNonce, stayConnected bool, requestTag string) error {
	if requestTag == "" {
		requestTag = uuid.NewString()
	}
	ctx = plog.WithField(ctx, "request_tag", requestTag)
	return e.send(ctx, msg, withNonce, stayConnected, requestTag, true)
}

func (e *Engine) send(ctx context.Context, msg *message.Message, withNonce, requestedStayConnected bool, requestTag string, resyncAllowed bool) error {
	nonceRetry := 0
	currentWithNonce := withNonce

	for {
		stayConnectedThisHop := requestedStayConnected
		if currentWithNonce {
			n := e.Nonce.Next()
			if n == nonce.FakeNonce {
				stayConnectedThisHop = true
			}
			msg.SetNonce(n)
		}

		resp, err := e.Radio.SendRequestGetResponse(ctx, msg, stayConnectedThisHop)
		if err != nil {
			if resyncAllowed && pdmerr.AsOutOfSync(err) {
				plog.L(ctx).Warn("transmission out of sync, running interim resync")
				if rerr := e.interimResync(ctx); rerr != nil {
					return rerr
				}
				resyncAllowed = false
				continue
			}
			return err
		}

		badNonce := false
		for _, c := range resp.Contents {
			switch c.Type {
			case ctypeStatus:
				e.Pod.HandleStatusResponse(c.Payload, requestTag)
			case ctypeInfo:
				e.Pod.HandleInformationResponse(c.Payload, requestTag)
			case ctypeError:
				if len(c.Payload) == 0 || c.Payload[0] != errcodeBadNonce {
					continue
				}
				if nonceRetry > maxNonceRetries {
					return pdmerr.New(ctx, msgs.MsgNonceRenegotiationFailed)
				}
				if len(c.Payload) < 3 {
					return pdmerr.New(ctx, msgs.MsgNonceRenegotiationFailed)
				}
				syncWord := binary.BigEndian.Uint16(c.Payload[1:3])
				e.Nonce.Sync(syncWord, msg.Sequence)
				e.Radio.SetMessageSequence(msg.Sequence)
				nonceRetry++
				currentWithNonce = true
				badNonce = true
			}
		}
		if badNonce {
			continue
		}
		return nil
	}
}

// interimResync runs the bounded recovery ritual (spec §4.4): sleep 15s,
// send a bare status request with the link held open, sleep 5s.
func (e *Engine) interimResync(ctx context.Context) error {
	e.Sleeper.Sleep(ctx, interimResyncFirstSleep)

	address := uint32(0)
	if e.Pod.Address != nil {
		address = *e.Pod.Address
	}
	statusMsg := message.New(message.PDM, address, e.Radio.MessageSequence())
	statusMsg.AddCommand(0x0e, []byte{0})

	if err := e.Send(ctx, statusMsg, false, true, "STATUS REQ 0"); err != nil {
		return err
	}

	e.Sleeper.Sleep(ctx, interimResyncSecondSleep)
	return nil
}
