/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pldm

import (
	"errors"
	"fmt"
)

var (
	ErrShortBuffer          = errors.New("pldm: message too short")
	ErrTrailingData         = errors.New("pldm: unexpected trailing data")
	ErrInvalidHeader        = errors.New("pldm: invalid message header")
	ErrNotRequest           = errors.New("pldm: message is not a request")
	ErrNotResponse          = errors.New("pldm: message is not a response")
	ErrInvalidTransferFlag  = errors.New("pldm: invalid transfer flag")
	ErrCRCMismatch          = errors.New("pldm: transfer CRC mismatch")
	ErrInvalidEventFormat   = errors.New("pldm: invalid event data format")
	ErrInvalidOperation     = errors.New("pldm: invalid change record operation")
	ErrTooManyStates        = errors.New("pldm: too many composite sensor states")
	ErrInstanceIDExhausted  = errors.New("pldm: no free instance id for endpoint")
	ErrInstanceIDNotInUse   = errors.New("pldm: instance id not allocated")
	ErrInvalidInstanceID    = errors.New("pldm: instance id out of range")
	ErrUnsupportedEventType = errors.New("pldm: unsupported sensor event class")
)

// CompletionError is returned by response decoders when the responder
// reported a non-success completion code.
type CompletionError struct {
	Code CompletionCode
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("pldm: completion code %s", e.Code)
}

// IsCompletionCode reports whether err carries the given completion code.
func IsCompletionCode(err error, code CompletionCode) bool {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Code == code
	}

	return false
}
