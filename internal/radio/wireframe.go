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
	"encoding/binary"
	"fmt"

	"github.com/kaleido-io/omnipod-pdm/pkg/message"
)

// encodeFrame serialises a Message for the wire: type byte, 4-byte
// address, sequence byte, command count, then each command as
// [type][BE uint16 len][body].
func encodeFrame(msg *message.Message) []byte {
	frame := make([]byte, 0, 16)
	frame = append(frame, byte(msg.Type))
	addr := make([]byte, 4)
	binary.BigEndian.PutUint32(addr, msg.Address)
	frame = append(frame, addr...)
	frame = append(frame, msg.Sequence, byte(len(msg.Commands)))
	for _, c := range msg.Commands {
		ln := make([]byte, 2)
		binary.BigEndian.PutUint16(ln, uint16(len(c.Body)))
		frame = append(frame, c.Type)
		frame = append(frame, ln...)
		frame = append(frame, c.Body...)
	}
	return frame
}

// decodeFrame parses a response frame into its sequence of (type, payload)
// sub-frames (spec §3, "Response Content").
func decodeFrame(raw []byte) ([]message.Content, error) {
	if len(raw) < 6 {
		return nil, fmt.Errorf("response frame too short: %d bytes", len(raw))
	}
	count := int(raw[5])
	offset := 6
	contents := make([]message.Content, 0, count)
	for i := 0; i < count; i++ {
		if offset+3 > len(raw) {
			return nil, fmt.Errorf("truncated response frame at sub-frame %d", i)
		}
		ctype := raw[offset]
		ln := int(binary.BigEndian.Uint16(raw[offset+1 : offset+3]))
		offset += 3
		if offset+ln > len(raw) {
			return nil, fmt.Errorf("truncated response payload at sub-frame %d", i)
		}
		contents = append(contents, message.Content{Type: ctype, Payload: raw[offset : offset+ln]})
		offset += ln
	}
	return contents, nil
}
