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

package requester

import "errors"

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrRequestPending   = errors.New("request with this instance id already pending")
	ErrNilHandler       = errors.New("response handler cannot be nil")
	ErrTransportNil     = errors.New("transport cannot be nil")
	ErrLoopNil          = errors.New("event loop cannot be nil")
	ErrUnexpectedHeader = errors.New("unexpected message header")
)
