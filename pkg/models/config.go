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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/carverauto/pldmd/pkg/logger"
	"github.com/carverauto/pldmd/pkg/metrics"
)

// Duration is a time.Duration that unmarshals from "5s" style strings or
// nanosecond numbers.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

const (
	wildcardTID = 0xFF

	defaultTxSubject        = "pldm.tx"
	defaultRxSubject        = "pldm.rx"
	defaultHostStateSubject = "host.state"
)

var (
	errInvalidDuration      = errors.New("invalid duration")
	errNATSRequired         = errors.New("nats configuration is required")
	errHostEIDRequired      = errors.New("terminus.host_eid is required")
	errBMCTIDReserved       = errors.New("terminus.bmc_tid must not be the wildcard tid 0xff")
	errEntityNameKey        = errors.New("entity_names keys must be decimal entity types")
	errEntityIDRequired     = errors.New("entities[].id is required")
	errDuplicateEntityID    = errors.New("duplicate entity id")
	errUnknownEntityParent  = errors.New("entity parent must be declared before its children")
	errNegativeResponseTime = errors.New("response_timeout must be non-negative")
)

// TransportConfig names the NATS subjects the daemon bridges PLDM over.
// Outbound messages go to "<tx_subject>.<eid>"; inbound ones arrive on
// "<rx_subject>.<eid>".
type TransportConfig struct {
	TxSubject        string `json:"tx_subject"`
	RxSubject        string `json:"rx_subject"`
	HostStateSubject string `json:"host_state_subject"`
}

// TerminusConfig identifies the local and remote PLDM termini.
type TerminusConfig struct {
	BMCTerminusHandle  uint16 `json:"bmc_terminus_handle"`
	BMCTID             uint8  `json:"bmc_tid"`
	BMCEID             uint8  `json:"bmc_eid"`
	HostEID            uint8  `json:"host_eid"`
	HostTerminusHandle uint16 `json:"host_terminus_handle"`
}

// AssociationName labels the inventory association published between a
// parent and a child of the given entity types.
type AssociationName struct {
	ParentType uint16 `json:"parent_type"`
	ChildType  uint16 `json:"child_type"`
	Forward    string `json:"forward"`
	Reverse    string `json:"reverse"`
}

// EntityDefinition declares one node of the BMC-local entity tree. Parent
// refers to the ID of an earlier definition; empty means root.
type EntityDefinition struct {
	ID          string `json:"id"`
	Type        uint16 `json:"entity_type"`
	Instance    uint16 `json:"entity_instance"`
	Parent      string `json:"parent,omitempty"`
	Association uint8  `json:"association,omitempty"`
}

// PLDMDConfig is the pldmd service configuration.
type PLDMDConfig struct {
	Logging         *logger.Config     `json:"logging,omitempty"`
	Metrics         *metrics.Config    `json:"metrics,omitempty"`
	NATS            *NATSConfig        `json:"nats"`
	Events          *EventsConfig      `json:"events,omitempty"`
	Transport       TransportConfig    `json:"transport"`
	Terminus        TerminusConfig     `json:"terminus"`
	ResponseTimeout Duration           `json:"response_timeout"`
	QueueSize       int                `json:"queue_size,omitempty"`
	MaxRecords      int                `json:"max_records,omitempty"`
	RequestCount    uint16             `json:"request_count,omitempty"`
	SnapshotPath    string             `json:"snapshot_path,omitempty"`
	SnapshotBucket  string             `json:"snapshot_bucket,omitempty"`
	EntityNames     map[string]string  `json:"entity_names"`
	Associations    []AssociationName  `json:"associations,omitempty"`
	Entities        []EntityDefinition `json:"entities"`
}

// Validate fills defaults and checks the pldmd configuration.
func (c *PLDMDConfig) Validate() error {
	if c.NATS == nil {
		return errNATSRequired
	}

	if err := c.NATS.Validate(); err != nil {
		return err
	}

	if c.Events == nil {
		c.Events = &EventsConfig{Enabled: true}
	}

	if err := c.Events.Validate(); err != nil {
		return err
	}

	if c.Transport.TxSubject == "" {
		c.Transport.TxSubject = defaultTxSubject
	}

	if c.Transport.RxSubject == "" {
		c.Transport.RxSubject = defaultRxSubject
	}

	if c.Transport.HostStateSubject == "" {
		c.Transport.HostStateSubject = defaultHostStateSubject
	}

	if c.Terminus.HostEID == 0 {
		return errHostEIDRequired
	}

	if c.Terminus.BMCTID == wildcardTID {
		return errBMCTIDReserved
	}

	if c.ResponseTimeout < 0 {
		return errNegativeResponseTime
	}

	if _, err := c.EntityNameTable(); err != nil {
		return err
	}

	return c.validateEntities()
}

// EntityNameTable returns the entity-type to name table keyed by type.
func (c *PLDMDConfig) EntityNameTable() (map[uint16]string, error) {
	names := make(map[uint16]string, len(c.EntityNames))

	for key, name := range c.EntityNames {
		t, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errEntityNameKey, key)
		}

		names[uint16(t)] = name
	}

	return names, nil
}

func (c *PLDMDConfig) validateEntities() error {
	seen := make(map[string]struct{}, len(c.Entities))

	for _, def := range c.Entities {
		if def.ID == "" {
			return errEntityIDRequired
		}

		if _, dup := seen[def.ID]; dup {
			return fmt.Errorf("%w: %s", errDuplicateEntityID, def.ID)
		}

		if def.Parent != "" {
			if _, ok := seen[def.Parent]; !ok {
				return fmt.Errorf("%w: %s -> %s", errUnknownEntityParent, def.ID, def.Parent)
			}
		}

		seen[def.ID] = struct{}{}
	}

	return nil
}
