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

// Package msgs registers the error message catalog for the pod command
// core, following the i18n registration convention used across Paladin's
// subsystems (one ffe() helper, one prefix, one block of message keys).
package msgs

import (
	"sync"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/text/language"
)

var registered sync.Once
var ffe = func(key, translation string, statusHint ...int) i18n.ErrorMessageKey {
	registered.Do(func() {
		i18n.RegisterPrefix("PD09", "Pod Command Core")
	})
	return i18n.FFE(language.AmericanEnglish, key, translation, statusHint...)
}

var (
	// Guards (PD0900xx)
	MsgNoPodAssigned           = ffe("PD090000", "No pod assigned")
	MsgAddressUnknown          = ffe("PD090001", "Radio address unknown")
	MsgLotNotDefined           = ffe("PD090002", "Lot number is not defined")
	MsgTIDNotDefined           = ffe("PD090003", "Pod serial number is not defined")
	MsgNotPaired               = ffe("PD090004", "Pod not paired completely yet")
	MsgShuttingDown            = ffe("PD090005", "Pod is shutting down, cannot acknowledge alerts")
	MsgAckExpired              = ffe("PD090006", "Acknowledgement period expired, pod is shutting down")
	MsgNotActive               = ffe("PD090007", "Pod is not active")
	MsgNotYetRunning           = ffe("PD090008", "Pod is not yet running")
	MsgPodStopped              = ffe("PD090009", "Pod has stopped")
	MsgPodFaulted              = ffe("PD090010", "Pod is faulted")
	MsgBolusBusy               = ffe("PD090011", "Pod is busy delivering a bolus")

	// Bolus (PD0901xx)
	MsgBolusExceedsMaximum     = ffe("PD090100", "Bolus of %.2fU exceeds defined maximum bolus of %.2fU")
	MsgZeroBolus               = ffe("PD090101", "Cannot do a zero bolus")
	MsgBolusTooLong            = ffe("PD090102", "Bolus would exceed the maximum time allowed for an immediate bolus")
	MsgBolusAlreadyRunning     = ffe("PD090103", "A previous bolus is already running")
	MsgBolusExceedsReservoir   = ffe("PD090104", "Cannot bolus %.2f units, reservoir capacity is at %.2f")
	MsgBolusNotConfirmed       = ffe("PD090105", "Pod did not confirm bolus")
	MsgBolusCancelFailed       = ffe("PD090107", "Failed to cancel bolus")

	// Temp basal / schedule (PD0902xx)
	MsgInvalidDuration         = ffe("PD090200", "Requested duration is not valid")
	MsgRateExceedsMaximum      = ffe("PD090201", "Requested rate exceeds maximum temp basal setting")
	MsgRateExceedsCapability   = ffe("PD090202", "Requested rate exceeds maximum temp basal capability")
	MsgTempBasalNotConfirmed   = ffe("PD090203", "Failed to set temp basal")
	MsgTempBasalCancelFailed   = ffe("PD090204", "Failed to cancel temp basal")
	MsgScheduleWhileTempBasal  = ffe("PD090205", "Cannot change basal schedule while a temp basal is active")
	MsgScheduleEntryTooLow     = ffe("PD090207", "A basal rate schedule entry cannot be less than 0.05U")
	MsgScheduleEntryTooHigh    = ffe("PD090208", "A basal rate schedule entry cannot be more than 30U")
	MsgScheduleNotConfirmed    = ffe("PD090209", "Failed to set basal schedule")

	// Transaction engine (PD0903xx)
	MsgNonceRenegotiationFailed = ffe("PD090300", "Nonce re-negotiation failed")
	MsgTransmissionOutOfSync    = ffe("PD090301", "Transmission out of sync with pod")
	MsgUnexpectedError          = ffe("PD090302", "Unexpected error")
	MsgPodNotSaved              = ffe("PD090303", "Pod status was not saved")
	MsgPdmBusy                  = ffe("PD090304", "PDM is busy processing another command")

	// Radio transport (PD0904xx)
	MsgRadioConnectFailed = ffe("PD090400", "Failed to establish radio link to %s")
)
