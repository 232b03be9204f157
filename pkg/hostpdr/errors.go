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

package hostpdr

import "errors"

var (
	ErrConfigNil           = errors.New("hostpdr: config is required")
	ErrHostEIDRequired     = errors.New("hostpdr: host EID is required")
	ErrBMCTIDReserved      = errors.New("hostpdr: BMC TID must not be the wildcard TID")
	ErrMissingDependency   = errors.New("hostpdr: missing dependency")
	ErrUnexpectedTransfer  = errors.New("hostpdr: unexpected transfer flag")
	ErrCRCMismatch         = errors.New("hostpdr: record CRC mismatch")
	ErrOffsetOutOfRange    = errors.New("hostpdr: sensor offset out of range")
	ErrStateOutOfRange     = errors.New("hostpdr: sensor state not in possible states")
	ErrUnknownEventClass   = errors.New("hostpdr: unsupported platform event class")
	ErrUnknownHostState    = errors.New("hostpdr: unknown host state")
	ErrEventStatusRejected = errors.New("hostpdr: host rejected repository change event")
)

// Error types reported through the ErrorReporter.
const (
	ErrorTypePDRExchangeFailure = "xyz.openbmc_project.PLDM.Error.GetPDR.PDRExchangeFailure"
	ErrorTypeInternalFailure    = "xyz.openbmc_project.bmc.pldm.InternalFailure"
)
