// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package api

import (
	"errors"
	"net/http"

	"github.com/cryodaq/cryodaq/internal/instrument"
	"github.com/cryodaq/cryodaq/internal/logging"
	"github.com/cryodaq/cryodaq/internal/measure"
	"github.com/cryodaq/cryodaq/internal/record"
	"github.com/cryodaq/cryodaq/internal/store"
)

// domainError maps one sentinel to its HTTP status and error code.
type domainError struct {
	sentinel error
	status   int
	code     string
}

// domainErrors is checked in order; first match wins.
var domainErrors = []domainError{
	{record.ErrShapeMismatch, http.StatusBadRequest, ErrCodeShapeMismatch},
	{record.ErrIncompatibleSchema, http.StatusConflict, ErrCodeIncompatibleSchema},
	{record.ErrUnknownField, http.StatusBadRequest, ErrCodeUnknownField},
	{store.ErrInvalidPath, http.StatusBadRequest, ErrCodeInvalidPath},
	{store.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{store.ErrNotADataset, http.StatusBadRequest, ErrCodeNotADataset},
	{store.ErrNotAGroup, http.StatusBadRequest, ErrCodeNotAGroup},
	{store.ErrClosed, http.StatusServiceUnavailable, ErrCodeStoreClosed},
	{instrument.ErrCapabilityMissing, http.StatusBadRequest, ErrCodeCapabilityMissing},
	{instrument.ErrUnknownDevice, http.StatusNotFound, ErrCodeUnknownDevice},
	{measure.ErrRunExists, http.StatusConflict, ErrCodeRunExists},
	{measure.ErrRunNotFound, http.StatusNotFound, ErrCodeRunNotFound},
}

// WriteDomainError maps a store/record/instrument/measure error to its
// HTTP status and stable code. Unrecognized errors become opaque 500s;
// the detail goes to the log, not to the client.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, de := range domainErrors {
		if errors.Is(err, de.sentinel) {
			WriteError(w, r, de.status, de.code, err.Error())
			return
		}
	}
	logging.Error().Err(err).Str("path", r.URL.Path).Msg("unclassified handler error")
	NewResponseWriter(w, r).InternalError("internal error")
}

// CodeForError returns the stable error code for err, or
// ErrCodeInternalError when it matches no sentinel. The gateway client
// uses the reverse of this mapping to rebuild sentinels.
func CodeForError(err error) string {
	for _, de := range domainErrors {
		if errors.Is(err, de.sentinel) {
			return de.code
		}
	}
	return ErrCodeInternalError
}

// SentinelForCode maps a stable error code back to the package sentinel.
// Returns nil for codes without one.
func SentinelForCode(code string) error {
	for _, de := range domainErrors {
		if de.code == code {
			return de.sentinel
		}
	}
	return nil
}
