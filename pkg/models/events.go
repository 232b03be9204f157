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
	"errors"
	"time"
)

var errNATSURLRequired = errors.New("nats url is required")

// NATSConfig configures NATS connectivity.
type NATSConfig struct {
	URL      string          `json:"url"`
	Domain   string          `json:"domain,omitempty"`
	Security *SecurityConfig `json:"security,omitempty"`
}

// Validate ensures the NATS configuration is valid.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return errNATSURLRequired
	}

	return nil
}

// EventsConfig configures the event publishing system.
type EventsConfig struct {
	Enabled       bool     `json:"enabled"`
	StreamName    string   `json:"stream_name"`
	Subjects      []string `json:"subjects"`
	SubjectPrefix string   `json:"subject_prefix"`
	Source        string   `json:"source"`
}

// Validate fills defaults and checks the events configuration.
func (c *EventsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.StreamName == "" {
		c.StreamName = "events"
	}

	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "events.pldm"
	}

	if c.Source == "" {
		c.Source = "pldmd/hostpdr"
	}

	if len(c.Subjects) == 0 {
		c.Subjects = []string{c.SubjectPrefix + ".>"}
	}

	return nil
}

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// EntityRef identifies a PLDM entity inside event payloads.
type EntityRef struct {
	Type        uint16 `json:"entity_type"`
	Instance    uint16 `json:"entity_instance"`
	ContainerID uint16 `json:"container_id"`
}

// AssociationRef links an inventory object to another one.
type AssociationRef struct {
	Forward  string `json:"forward"`
	Reverse  string `json:"reverse"`
	Endpoint string `json:"endpoint"`
}

// InventoryEventData is the payload of every host inventory event.
type InventoryEventData struct {
	Path         string           `json:"path"`
	ParentPath   string           `json:"parent_path,omitempty"`
	Entity       *EntityRef       `json:"entity,omitempty"`
	Property     string           `json:"property"`
	Value        any              `json:"value,omitempty"`
	StateSetID   uint16           `json:"state_set_id,omitempty"`
	Associations []AssociationRef `json:"associations,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// ErrorEventData is the payload of an error log entry.
type ErrorEventData struct {
	ErrorType string            `json:"error_type"`
	Severity  string            `json:"severity"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
