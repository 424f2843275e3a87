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

// Package pdmerr defines the OmnipyError family from spec §7: domain
// errors that propagate untouched out of every command, and the single
// wrapper variant that every other failure is folded into.
package pdmerr

import (
	"context"
	"errors"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/omnipod-pdm/internal/msgs"
)

// OmnipyError is the marker interface implemented by every domain error in
// this package, so callers can distinguish "the pod/radio told us no" from
// an unexpected internal failure.
type OmnipyError interface {
	error
	omnipyError()
}

// PdmError is a precondition, post-condition or protocol-level failure with
// a human-readable reason. It always wraps an i18n-coded message.
type PdmError struct {
	cause error
}

func (e *PdmError) omnipyError() {}

func (e *PdmError) Error() string {
	return e.cause.Error()
}

func (e *PdmError) Unwrap() error {
	return e.cause
}

// New builds a PdmError from a registered message key.
func New(ctx context.Context, key i18n.ErrorMessageKey, args ...interface{}) *PdmError {
	return &PdmError{cause: i18n.NewError(ctx, key, args...)}
}

// Wrap builds a PdmError preserving an underlying cause.
func Wrap(ctx context.Context, err error, key i18n.ErrorMessageKey, args ...interface{}) *PdmError {
	return &PdmError{cause: i18n.WrapError(ctx, err, key, args...)}
}

// PdmBusyError signals lock contention on the process-wide mutex (§4.6).
type PdmBusyError struct {
	cause error
}

func (e *PdmBusyError) omnipyError() {}
func (e *PdmBusyError) Error() string { return e.cause.Error() }
func (e *PdmBusyError) Unwrap() error { return e.cause }

func NewBusy(ctx context.Context) *PdmBusyError {
	return &PdmBusyError{cause: i18n.NewError(ctx, msgs.MsgPdmBusy)}
}

// TransmissionOutOfSyncError signals the radio link desynchronised from the
// pod's view of the packet/message sequence (§6).
type TransmissionOutOfSyncError struct {
	cause error
}

func (e *TransmissionOutOfSyncError) omnipyError() {}
func (e *TransmissionOutOfSyncError) Error() string { return e.cause.Error() }
func (e *TransmissionOutOfSyncError) Unwrap() error { return e.cause }

func NewOutOfSync(ctx context.Context) *TransmissionOutOfSyncError {
	return &TransmissionOutOfSyncError{cause: i18n.NewError(ctx, msgs.MsgTransmissionOutOfSync)}
}

// AsOutOfSync reports whether err (or anything it wraps) is a
// TransmissionOutOfSyncError.
func AsOutOfSync(err error) bool {
	var oos *TransmissionOutOfSyncError
	return errors.As(err, &oos)
}

// WrapUnexpected folds any non-OmnipyError failure into a generic PdmError,
// preserving the original cause, per spec §7's "Unexpected errors" rule.
// An existing OmnipyError is returned untouched.
func WrapUnexpected(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var oe OmnipyError
	if errors.As(err, &oe) {
		return err
	}
	return Wrap(ctx, err, msgs.MsgUnexpectedError)
}
