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
	"time"

	"github.com/kaleido-io/omnipod-pdm/pkg/podstate"
)

// isBolusRunning implements spec §4.5.11's _is_bolus_running. It may issue
// a status refresh, which itself mutates the pod record.
func (p *PDM) isBolusRunning(ctx context.Context) bool {
	if p.pod.LastUpdated != nil && p.pod.BolusState != podstate.BolusImmediate {
		return false
	}
	if p.pod.LastEnactedBolusAmount < 0 || p.pod.LastEnactedBolusStart == nil {
		return false
	}

	start := *p.pod.LastEnactedBolusStart
	amount := p.pod.LastEnactedBolusAmount
	now := p.now()

	if now.After(start.Add(time.Duration(45*amount+10) * time.Second)) {
		return false
	}
	if now.Before(start.Add(time.Duration(35*amount) * time.Second)) {
		return true
	}

	_ = p.forceStatusRefresh(ctx)
	return p.pod.BolusState == podstate.BolusImmediate
}

// isTempBasalActive implements spec §4.5.11's _is_temp_basal_active, with
// the same shape as isBolusRunning but over the temp-basal window
// [start + duration*3600 - 60, start + duration*3660 + 60].
func (p *PDM) isTempBasalActive(ctx context.Context) bool {
	if p.pod.LastUpdated != nil && p.pod.BasalState != podstate.BasalTempBasal {
		return false
	}
	if p.pod.LastEnactedTempBasalAmount < 0 || p.pod.LastEnactedTempBasalStart == nil {
		return false
	}

	start := *p.pod.LastEnactedTempBasalStart
	hours := p.pod.LastEnactedTempBasalDurationHrs
	now := p.now()

	windowEnd := start.Add(time.Duration(hours*3660)*time.Second + 60*time.Second)
	windowStart := start.Add(time.Duration(hours*3600)*time.Second - 60*time.Second)

	if now.After(windowEnd) {
		return false
	}
	if now.Before(windowStart) {
		return true
	}

	_ = p.forceStatusRefresh(ctx)
	return p.pod.BasalState == podstate.BasalTempBasal
}

// isBasalScheduleActive implements spec §4.5.11's _is_basal_schedule_active.
func (p *PDM) isBasalScheduleActive(ctx context.Context) bool {
	if p.pod.LastUpdated != nil && p.pod.BasalState == podstate.BasalNotRunning {
		return false
	}
	_ = p.forceStatusRefresh(ctx)
	return p.pod.BasalState == podstate.BasalProgram
}
