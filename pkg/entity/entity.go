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

// Package entity models PLDM entities and the entity association tree the
// BMC keeps for itself and for the host it mirrors.
package entity

import "fmt"

// RemoteContainerBit marks a container id as belonging to a remote or
// logical containment context.
const RemoteContainerBit uint16 = 0x8000

// Well-known entity types (DSP0249).
const (
	TypeSystemChassis   uint16 = 45
	TypeSystemBoard     uint16 = 64
	TypeMemoryModule    uint16 = 66
	TypeProcessorModule uint16 = 67
	TypeProcessor       uint16 = 135
)

// Entity identifies one platform component.
type Entity struct {
	Type        uint16 `json:"entity_type"`
	Instance    uint16 `json:"entity_instance"`
	ContainerID uint16 `json:"container_id"`
}

// Same reports identity equality: type, instance and container id with the
// remote bit masked off.
func (e Entity) Same(o Entity) bool {
	return e.Type == o.Type &&
		e.Instance == o.Instance &&
		MaskContainer(e.ContainerID) == MaskContainer(o.ContainerID)
}

// RemoteContainer reports whether the container id carries the remote bit.
func (e Entity) RemoteContainer() bool {
	return e.ContainerID&RemoteContainerBit != 0
}

func (e Entity) String() string {
	return fmt.Sprintf("%d:%d:%d", e.Type, e.Instance, e.ContainerID)
}

// MaskContainer strips the remote bit from a container id.
func MaskContainer(id uint16) uint16 {
	return id &^ RemoteContainerBit
}

// AssociationType is the kind of containment an association describes.
type AssociationType uint8

const (
	Physical AssociationType = 0
	Logical  AssociationType = 1
)

func (a AssociationType) String() string {
	if a == Logical {
		return "logical"
	}

	return "physical"
}
