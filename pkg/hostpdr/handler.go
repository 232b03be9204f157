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
	"context"
	"fmt"
	"time"

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/eventloop"
	"github.com/carverauto/pldmd/pkg/logger"
	"github.com/carverauto/pldmd/pkg/pdr"
	"github.com/carverauto/pldmd/pkg/terminus"
)

// Deps are the collaborators a Handler drives.
type Deps struct {
	Loop       *eventloop.Loop
	Requester  Requester
	Inventory  Inventory
	Reporter   ErrorReporter
	Repository *pdr.Repository
	// Tree holds the BMC-owned entities. The handler snapshots it at
	// construction and restores the snapshot whenever the host goes away.
	Tree *entity.Tree
}

// transfer tracks the GetPDR exchange in flight.
type transfer struct {
	recordHandle uint32
	modified     bool
	buf          []byte
}

// Handler synchronizes the host's PDRs into the local repository and entity
// tree. Every method must run on the event loop goroutine.
type Handler struct {
	ctx      context.Context
	cfg      Config
	loop     *eventloop.Loop
	req      Requester
	inv      Inventory
	reporter ErrorReporter
	logger   logger.Logger

	repo     *pdr.Repository
	tree     *entity.Tree
	bmcTree  *entity.Tree
	locators *terminus.Table
	sensors  *terminus.SensorTable

	phase     Phase
	hostState HostState
	// epoch invalidates callbacks registered before the last teardown.
	epoch uint64

	fetch         *eventloop.Deferred
	inFlight      bool
	sequential    bool
	restartScan   bool
	plainQueue    []uint32
	modifiedQueue []uint32
	modifiedCount int
	transfer      transfer
	cycleStart    time.Time
	cycleRecords  int

	hostTerminusHandle uint16
	// hostHandles maps host record handles to the local handles they were
	// stored under.
	hostHandles       map[uint32]uint32
	mergedHostParents bool
	// pendingMerges hold associations whose container is not in the tree yet.
	pendingMerges []*pdr.EntityAssociation
	announce      []uint32
	stateSensors  []*pdr.StateSensor
	frus          []*pdr.FRURecordSet

	objectPaths map[string]entity.Entity
	available   map[string]bool
	fruPaths    map[uint16]string
	// entityTermini maps merged host entities to the terminus handle they
	// were learned from.
	entityTermini map[entity.Entity]uint16

	walk          sensorWalk
	stateHandlers map[uint16]stateHandler
}

// New builds a Handler. The host is assumed off until HostStateChanged says
// otherwise.
func New(ctx context.Context, cfg *Config, deps Deps, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch {
	case deps.Loop == nil:
		return nil, fmt.Errorf("%w: event loop", ErrMissingDependency)
	case deps.Requester == nil:
		return nil, fmt.Errorf("%w: requester", ErrMissingDependency)
	case deps.Inventory == nil:
		return nil, fmt.Errorf("%w: inventory", ErrMissingDependency)
	case deps.Reporter == nil:
		return nil, fmt.Errorf("%w: error reporter", ErrMissingDependency)
	case deps.Repository == nil:
		return nil, fmt.Errorf("%w: repository", ErrMissingDependency)
	}

	tree := deps.Tree
	if tree == nil {
		tree = entity.NewTree()
	}

	h := &Handler{
		ctx:                ctx,
		cfg:                *cfg,
		loop:               deps.Loop,
		req:                deps.Requester,
		inv:                deps.Inventory,
		reporter:           deps.Reporter,
		logger:             log,
		repo:               deps.Repository,
		tree:               tree,
		bmcTree:            tree.Clone(),
		locators:           terminus.NewTable(),
		sensors:            terminus.NewSensorTable(),
		phase:              PhaseIdle,
		hostState:          HostOff,
		hostTerminusHandle: cfg.HostTerminusHandle,
		hostHandles:        make(map[uint32]uint32),
		objectPaths:        make(map[string]entity.Entity),
		available:          make(map[string]bool),
		fruPaths:           make(map[uint16]string),
		entityTermini:      make(map[entity.Entity]uint16),
	}

	h.fetch = h.loop.NewDeferred(h.runFetch)
	h.stateHandlers = h.defaultStateHandlers()

	h.locators.Update(cfg.BMCTerminusHandle, terminus.Locator{TID: cfg.BMCTID, EID: cfg.BMCEID, Valid: true})

	return h, nil
}

// Phase returns the current state machine phase.
func (h *Handler) Phase() Phase { return h.phase }

// HostUp reports whether the host is running.
func (h *Handler) HostUp() bool { return h.hostState == HostRunning }

// Repository returns the repository the handler maintains.
func (h *Handler) Repository() *pdr.Repository { return h.repo }

// Tree returns the merged entity tree.
func (h *Handler) Tree() *entity.Tree { return h.tree }

// Sensors returns the state sensor table.
func (h *Handler) Sensors() *terminus.SensorTable { return h.sensors }

// ObjectPaths returns a copy of the object path to entity map.
func (h *Handler) ObjectPaths() map[string]entity.Entity {
	out := make(map[string]entity.Entity, len(h.objectPaths))
	for p, e := range h.objectPaths {
		out[p] = e
	}

	return out
}

// Available reports the availability last published for path.
func (h *Handler) Available(path string) bool { return h.available[path] }

// FRUPath returns the object path of the entity behind a FRU record set.
func (h *Handler) FRUPath(recordSetID uint16) (string, bool) {
	p, ok := h.fruPaths[recordSetID]

	return p, ok
}

func (h *Handler) pathOf(e entity.Entity) (string, bool) {
	return pathIn(h.objectPaths, e)
}

func pathIn(paths map[string]entity.Entity, e entity.Entity) (string, bool) {
	for p, known := range paths {
		if known == e {
			return p, true
		}
	}

	return "", false
}
