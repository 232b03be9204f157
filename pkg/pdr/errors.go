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

package pdr

import "errors"

var (
	ErrShortRecord       = errors.New("pdr: record too short")
	ErrLengthMismatch    = errors.New("pdr: header length does not match record size")
	ErrUnexpectedType    = errors.New("pdr: unexpected record type")
	ErrRecordNotFound    = errors.New("pdr: record not found")
	ErrRepositoryFull    = errors.New("pdr: repository at capacity")
	ErrInvalidHandle     = errors.New("pdr: record handle 0 is reserved")
	ErrTooManyChildren   = errors.New("pdr: too many contained entities")
	ErrNoEntityFields    = errors.New("pdr: record type carries no entity")
	ErrStateSetTruncated = errors.New("pdr: possible states truncated")
)
