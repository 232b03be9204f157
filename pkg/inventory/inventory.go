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


// Package inventory publishes host inventory objects and their state as
// CloudEvents. Object paths are built from the entity-name table as
// "<parent>/<name><instance>" under a fixed root.
package inventory

//go:generate mockgen -destination=mock_inventory.go -package=inventory github.com/carverauto/pldmd/pkg/inventory Publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/logger"
	"github.com/carverauto/pldmd/pkg/models"
)

// RootPath is the parent of every top-level inventory object.
const RootPath = "/xyz/openbmc_project/inventory/system"

const eventTypePrefix = "com.carverauto.pldmd.inventory."

// Publisher publishes an event payload on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject, eventType string, data any) error
}

type associationKey struct {
	parent uint16
	child  uint16
}

// Service maps entities onto inventory object paths and publishes their
// properties. It is used from the event loop only.
type Service struct {
	pub          Publisher
	prefix       string
	associations map[associationKey]models.AssociationName
	entities     map[string]entity.Entity
	logger       logger.Logger
}

// NewService creates a Service publishing under subjectPrefix.
func NewService(pub Publisher, subjectPrefix string, associations []models.AssociationName, log logger.Logger) (*Service, error) {
	if pub == nil {
		return nil, ErrPublisherNil
	}

	assoc := make(map[associationKey]models.AssociationName, len(associations))
	for _, a := range associations {
		assoc[associationKey{parent: a.ParentType, child: a.ChildType}] = a
	}

	return &Service{
		pub:          pub,
		prefix:       subjectPrefix,
		associations: assoc,
		entities:     make(map[string]entity.Entity),
		logger:       log,
	}, nil
}

func entityRef(e entity.Entity) *models.EntityRef {
	return &models.EntityRef{Type: e.Type, Instance: e.Instance, ContainerID: e.ContainerID}
}

func (s *Service) publish(ctx context.Context, kind string, data *models.InventoryEventData) error {
	data.Timestamp = time.Now()

	return s.pub.Publish(ctx, s.prefix+"."+kind, eventTypePrefix+kind, data)
}

// ResolvePath returns the object path of e below parentPath, announcing the
// object the first time the path is seen. An empty parentPath means the
// inventory root.
func (s *Service) ResolvePath(ctx context.Context, e entity.Entity, name, parentPath string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyName, e)
	}

	parent := parentPath
	if parent == "" {
		parent = RootPath
	}

	path := fmt.Sprintf("%s/%s%d", parent, name, e.Instance)

	if known, ok := s.entities[path]; ok && known == e {
		return path, nil
	}

	s.entities[path] = e

	data := &models.InventoryEventData{
		Path:       path,
		ParentPath: parentPath,
		Entity:     entityRef(e),
		Property:   "Added",
	}

	if parentPath != "" {
		parentEntity, ok := s.entities[parentPath]
		if !ok {
			s.logger.Debug().Str("path", path).Str("parent", parentPath).Msg("Parent not announced")
		} else if a, ok := s.associations[associationKey{parent: parentEntity.Type, child: e.Type}]; ok {
			data.Associations = []models.AssociationRef{{Forward: a.Forward, Reverse: a.Reverse, Endpoint: parentPath}}
		}
	}

	if err := s.publish(ctx, "added", data); err != nil {
		delete(s.entities, path)

		return "", err
	}

	return path, nil
}

// PublishAvailability sets the Available property of path.
func (s *Service) PublishAvailability(ctx context.Context, path string, available bool) error {
	return s.publish(ctx, "availability", &models.InventoryEventData{
		Path:     path,
		Property: "Available",
		Value:    available,
	})
}

// PublishFunctional sets the Functional property of path. The parent path is
// carried so consumers can roll the status up.
func (s *Service) PublishFunctional(ctx context.Context, path string, functional bool, parentPath string) error {
	return s.publish(ctx, "functional", &models.InventoryEventData{
		Path:       path,
		ParentPath: parentPath,
		Property:   "Functional",
		Value:      functional,
	})
}

// PublishIdentifyState sets the identify LED group state of path.
func (s *Service) PublishIdentifyState(ctx context.Context, path string, e entity.Entity, asserted bool) error {
	return s.publish(ctx, "identify", &models.InventoryEventData{
		Path:     path,
		Entity:   entityRef(e),
		Property: "Asserted",
		Value:    asserted,
	})
}

// PublishVersionChanged signals that the firmware version of path must be re-read.
func (s *Service) PublishVersionChanged(ctx context.Context, path string, e entity.Entity) error {
	return s.publish(ctx, "version", &models.InventoryEventData{
		Path:     path,
		Entity:   entityRef(e),
		Property: "Version",
	})
}

// PublishState records a raw state for state sets without a dedicated property.
func (s *Service) PublishState(ctx context.Context, path string, stateSetID uint16, state uint8) error {
	return s.publish(ctx, "state", &models.InventoryEventData{
		Path:       path,
		Property:   "State",
		Value:      state,
		StateSetID: stateSetID,
	})
}
