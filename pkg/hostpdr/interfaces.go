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

// Package hostpdr keeps the BMC's PDR repository and entity tree in step
// with the host's, and routes host sensor state into the inventory.
package hostpdr

//go:generate mockgen -destination=mock_hostpdr.go -package=hostpdr github.com/carverauto/pldmd/pkg/hostpdr Inventory,Requester,ErrorReporter

import (
	"context"

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/pldm"
	"github.com/carverauto/pldmd/pkg/requester"
)

// Inventory resolves entities to object paths and publishes their state.
type Inventory interface {
	// ResolvePath returns the object path for e below parentPath, creating
	// the object if needed. An empty parentPath means the inventory root.
	ResolvePath(ctx context.Context, e entity.Entity, name, parentPath string) (string, error)

	// PublishAvailability sets whether the object at path is available.
	PublishAvailability(ctx context.Context, path string, available bool) error

	// PublishFunctional sets the operational status of path.
	PublishFunctional(ctx context.Context, path string, functional bool, parentPath string) error

	// PublishIdentifyState sets the identify LED state of path.
	PublishIdentifyState(ctx context.Context, path string, e entity.Entity, asserted bool) error

	// PublishVersionChanged signals a firmware version change on path.
	PublishVersionChanged(ctx context.Context, path string, e entity.Entity) error

	// PublishState records a state from a set without dedicated handling.
	PublishState(ctx context.Context, path string, stateSetID uint16, state uint8) error
}

// Requester sends PLDM requests and correlates their responses.
type Requester interface {
	NextInstanceID(eid uint8) (uint8, error)
	RegisterRequest(eid, instanceID uint8, msgType pldm.MessageType, command uint8,
		payload []byte, onResponse requester.ResponseHandler) error
}

// ErrorReporter raises platform error records.
type ErrorReporter interface {
	ReportError(ctx context.Context, errorType string, fields map[string]string) error
}
