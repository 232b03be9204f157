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

import (
	"fmt"
	"strings"

	"github.com/carverauto/pldmd/pkg/terminus"
)

const defaultRequestCount uint16 = 0xFFFF

// Config identifies the termini taking part in the exchange and names the
// entity types that get inventory objects.
type Config struct {
	HostEID            uint8
	BMCEID             uint8
	BMCTID             uint8
	BMCTerminusHandle  uint16
	HostTerminusHandle uint16
	// RequestCount is the largest record part requested per GetPDR.
	RequestCount uint16
	// EntityNames maps an entity type to its inventory name. Types missing
	// from the table are structural and get no object path.
	EntityNames map[uint16]string
}

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	if c.HostEID == 0 {
		return ErrHostEIDRequired
	}

	if c.BMCTID == terminus.WildcardTID {
		return ErrBMCTIDReserved
	}

	if c.RequestCount == 0 {
		c.RequestCount = defaultRequestCount
	}

	if c.EntityNames == nil {
		c.EntityNames = make(map[uint16]string)
	}

	return nil
}

// HostState is the host power state as reported by the host state manager.
type HostState string

const (
	HostOff           HostState = "off"
	HostTransitioning HostState = "transitioning"
	HostRunning       HostState = "running"
)

// ParseHostState converts a host state notification into a HostState.
func ParseHostState(s string) (HostState, error) {
	switch HostState(strings.ToLower(strings.TrimSpace(s))) {
	case HostOff:
		return HostOff, nil
	case HostTransitioning:
		return HostTransitioning, nil
	case HostRunning:
		return HostRunning, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownHostState, s)
	}
}

// Phase is the synchronization state machine position.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseAwaitingFetch     Phase = "awaiting_fetch"
	PhaseFetchingRecord    Phase = "fetching_record"
	PhaseClassifyingRecord Phase = "classifying_record"
	PhaseResolving         Phase = "resolving"
	PhaseDispatching       Phase = "dispatching"
)
