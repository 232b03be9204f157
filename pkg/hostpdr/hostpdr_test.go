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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/eventloop"
	"github.com/carverauto/pldmd/pkg/logger"
	"github.com/carverauto/pldmd/pkg/pdr"
	"github.com/carverauto/pldmd/pkg/pldm"
	"github.com/carverauto/pldmd/pkg/requester"
	"github.com/carverauto/pldmd/pkg/terminus"
)

const (
	testHostEID = 9
	testHostTID = 2
	testHostTH  = 2
	testBMCTH   = 1
	testBMCTID  = 1
)

//nolint:gochecknoglobals // shared fixtures
var (
	board = entity.Entity{Type: 1, Instance: 0, ContainerID: 1}
	cpu   = entity.Entity{Type: 2, Instance: 0, ContainerID: 2}
)

type sentRequest struct {
	eid        uint8
	command    uint8
	payload    []byte
	onResponse requester.ResponseHandler
}

type harness struct {
	t        *testing.T
	loop     *eventloop.Loop
	req      *MockRequester
	inv      *MockInventory
	reporter *MockErrorReporter
	bmc      *entity.Tree
	h        *Handler
	sent     []sentRequest
}

// bmcTree is a chassis root holding a board; the board gets container id 1.
func bmcTree() *entity.Tree {
	tree := entity.NewTree()
	chassis := tree.AddEntity(entity.Entity{Type: entity.TypeSystemChassis}, nil, entity.Physical, entity.AddOptions{})
	tree.AddEntity(entity.Entity{Type: 1}, chassis, entity.Physical, entity.AddOptions{})

	return tree
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)
	hs := &harness{
		t:        t,
		loop:     eventloop.New(64, logger.NewTestLogger()),
		req:      NewMockRequester(ctrl),
		inv:      NewMockInventory(ctrl),
		reporter: NewMockErrorReporter(ctrl),
		bmc:      bmcTree(),
	}

	hs.req.EXPECT().NextInstanceID(gomock.Any()).Return(uint8(0), nil).AnyTimes()
	hs.req.EXPECT().RegisterRequest(gomock.Any(), gomock.Any(), pldm.TypePlatform, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(eid, _ uint8, _ pldm.MessageType, command uint8, payload []byte, onResponse requester.ResponseHandler) error {
			hs.sent = append(hs.sent, sentRequest{eid: eid, command: command, payload: payload, onResponse: onResponse})
			return nil
		}).AnyTimes()

	h, err := New(context.Background(), &Config{
		HostEID:            testHostEID,
		BMCEID:             8,
		BMCTID:             testBMCTID,
		BMCTerminusHandle:  testBMCTH,
		HostTerminusHandle: testHostTH,
		EntityNames:        map[uint16]string{entity.TypeSystemChassis: "chassis", 2: "cpu"},
	}, Deps{
		Loop:       hs.loop,
		Requester:  hs.req,
		Inventory:  hs.inv,
		Reporter:   hs.reporter,
		Repository: pdr.NewRepository(),
		Tree:       hs.bmc.Clone(),
	}, logger.NewTestLogger())
	require.NoError(t, err)

	hs.h = h

	return hs
}

// allowInventory accepts path resolution and availability updates and
// returns the last availability published per path.
func (hs *harness) allowInventory() map[string]bool {
	avail := make(map[string]bool)

	hs.inv.EXPECT().ResolvePath(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e entity.Entity, name, parent string) (string, error) {
			if parent == "" {
				parent = "/inventory"
			}

			return fmt.Sprintf("%s/%s%d", parent, name, e.Instance), nil
		}).AnyTimes()
	hs.inv.EXPECT().PublishAvailability(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p string, v bool) error {
			avail[p] = v
			return nil
		}).AnyTimes()

	return avail
}

func (hs *harness) respond(i int, payload []byte) {
	hs.t.Helper()
	require.Greater(hs.t, len(hs.sent), i)

	hs.sent[i].onResponse(hs.sent[i].eid, payload, nil)
	hs.loop.Drain()
}

func (hs *harness) requestedHandle(i int) uint32 {
	hs.t.Helper()
	require.Equal(hs.t, pldm.CmdGetPDR, hs.sent[i].command)

	req, err := pldm.DecodeGetPDRRequest(hs.sent[i].payload)
	require.NoError(hs.t, err)

	return req.RecordHandle
}

func (hs *harness) postChange(records ...pldm.ChangeRecord) []byte {
	hs.t.Helper()

	msg := &pldm.PlatformEventMessage{
		FormatVersion: pldm.EventFormatVersion,
		TID:           testHostTID,
		EventClass:    pldm.EventClassPDRRepositoryChange,
		EventData:     changeEvent(hs.t, records...),
	}

	return hs.h.HandlePlatformEvent(testHostEID, pldm.Header{}, msg.Marshal())
}

func changeEvent(t *testing.T, records ...pldm.ChangeRecord) []byte {
	t.Helper()

	data, err := (&pldm.RepositoryChangeEvent{Format: pldm.FormatIsPDRHandles, Records: records}).Marshal()
	require.NoError(t, err)

	return data
}

func getPDRResponse(record []byte, next uint32) []byte {
	return (&pldm.GetPDRResponse{
		CompletionCode:   pldm.Success,
		NextRecordHandle: next,
		TransferFlag:     pldm.TransferStartAndEnd,
		RecordData:       record,
	}).Marshal()
}

func associationRecord(t *testing.T, handle uint32, container entity.Entity, children ...entity.Entity) []byte {
	t.Helper()

	ea, err := pdr.NewEntityAssociation(container, entity.Physical, children)
	require.NoError(t, err)

	ea.Hdr.RecordHandle = handle

	return ea.Marshal()
}

func stateSensorRecord(handle uint32, sensorID uint16, e entity.Entity, sets ...pdr.PossibleStates) []byte {
	return (&pdr.StateSensor{
		Hdr:            pdr.Header{RecordHandle: handle},
		TerminusHandle: testHostTH,
		SensorID:       sensorID,
		Entity:         e,
		States:         sets,
	}).Marshal()
}

func locatorRecord(handle uint32, valid bool) []byte {
	return (&pdr.TerminusLocator{
		Hdr:            pdr.Header{RecordHandle: handle},
		TerminusHandle: testHostTH,
		Valid:          valid,
		TID:            testHostTID,
		LocatorType:    pdr.LocatorMCTPEID,
		LocatorValue:   []byte{testHostEID},
	}).Marshal()
}

func added(handles ...uint32) pldm.ChangeRecord {
	return pldm.ChangeRecord{Operation: pldm.RecordsAdded, Entries: handles}
}

func TestNewValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	loop := eventloop.New(1, logger.NewTestLogger())

	deps := Deps{
		Loop:       loop,
		Requester:  NewMockRequester(ctrl),
		Inventory:  NewMockInventory(ctrl),
		Reporter:   NewMockErrorReporter(ctrl),
		Repository: pdr.NewRepository(),
	}

	_, err := New(context.Background(), nil, deps, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrConfigNil)

	_, err = New(context.Background(), &Config{}, deps, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrHostEIDRequired)

	_, err = New(context.Background(), &Config{HostEID: 9, BMCTID: terminus.WildcardTID}, deps, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrBMCTIDReserved)

	noRepo := deps
	noRepo.Repository = nil
	_, err = New(context.Background(), &Config{HostEID: 9}, noRepo, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrMissingDependency)

	h, err := New(context.Background(), &Config{HostEID: 9}, deps, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, h.Phase())
	assert.False(t, h.HostUp())
	assert.Equal(t, defaultRequestCount, h.cfg.RequestCount)
}

func TestParseHostState(t *testing.T) {
	tests := []struct {
		in      string
		want    HostState
		wantErr bool
	}{
		{in: "running", want: HostRunning},
		{in: " Off ", want: HostOff},
		{in: "TRANSITIONING", want: HostTransitioning},
		{in: "quiesced", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHostState(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownHostState)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	hs := newHarness(t)
	h := hs.h

	record, err := pdr.Decode(associationRecord(t, 10, board, cpu))
	require.NoError(t, err)

	ea, ok := record.(*pdr.EntityAssociation)
	require.True(t, ok)

	require.True(t, h.merge(ea))
	require.True(t, h.merge(ea))

	parent := h.Tree().Find(board)
	require.NotNil(t, parent)
	assert.Len(t, parent.Children(), 1)
	assert.Equal(t, hs.bmc.Len()+1, h.Tree().Len())

	assert.Len(t, h.Repository().HandlesByType(pdr.TypeEntityAssociation), 1)
	assert.Len(t, h.announce, 1)
}

func TestMergeWaitsForContainer(t *testing.T) {
	hs := newHarness(t)
	h := hs.h

	dimm := entity.Entity{Type: 3, Instance: 0, ContainerID: 3}

	assert.False(t, h.classify(associationRecord(t, 11, cpu, dimm), false))
	require.Len(t, h.pendingMerges, 1)
	assert.Equal(t, hs.bmc.Len(), h.Tree().Len())

	assert.False(t, h.classify(associationRecord(t, 10, board, cpu), false))
	h.retryPendingMerges()

	assert.Empty(t, h.pendingMerges)
	assert.Equal(t, hs.bmc.Len()+2, h.Tree().Len())
	assert.NotNil(t, h.Tree().FindWithLocality(dimm, true))
}

func TestRepositoryChangeScenario(t *testing.T) {
	hs := newHarness(t)
	hs.allowInventory()

	h := hs.h

	h.complete()
	before := h.ObjectPaths()
	require.Len(t, before, 1)

	resp := hs.postChange(added(10, 11))
	assert.Equal(t, pldm.EncodePlatformEventResponse(pldm.Success, pldm.EventNoLogging), resp)
	assert.Empty(t, hs.sent, "fetch must wait for a later loop turn")
	assert.Equal(t, PhaseAwaitingFetch, h.Phase())

	hs.loop.Drain()
	require.Len(t, hs.sent, 1)
	assert.Equal(t, uint32(10), hs.requestedHandle(0))

	hs.respond(0, getPDRResponse(associationRecord(t, 10, board, cpu), 11))
	require.Len(t, hs.sent, 2)
	assert.Equal(t, uint32(11), hs.requestedHandle(1))

	hs.respond(1, getPDRResponse(stateSensorRecord(11, 7, cpu, pdr.NewPossibleStates(pldm.StateSetHealthState, 1, 2)), 0))

	paths := h.ObjectPaths()
	require.Len(t, paths, len(before)+1)

	var newPath string

	for p := range paths {
		if _, ok := before[p]; !ok {
			newPath = p
		}
	}

	assert.Equal(t, "/inventory/chassis0/cpu0", newPath)

	require.Equal(t, 1, h.Sensors().Len())
	info, _, ok := h.Sensors().Lookup(testHostTID, 7)
	require.True(t, ok)
	assert.Equal(t, paths[newPath], info.Entity)

	require.Len(t, hs.sent, 3)
	assert.Equal(t, pldm.CmdPlatformEventMessage, hs.sent[2].command)

	msg, err := pldm.DecodePlatformEventMessage(hs.sent[2].payload)
	require.NoError(t, err)
	assert.Equal(t, uint8(testBMCTID), msg.TID)

	ev, err := pldm.DecodeRepositoryChangeEvent(msg.EventData)
	require.NoError(t, err)
	require.Len(t, ev.Records, 1)
	assert.Equal(t, pldm.RecordsAdded, ev.Records[0].Operation)
	assert.Equal(t, h.Repository().HandlesByType(pdr.TypeEntityAssociation), ev.Records[0].Entries)

	assert.Equal(t, PhaseIdle, h.Phase())
}

func TestInvalidLocatorTruncatesScanWhileHostDown(t *testing.T) {
	tests := []struct {
		name         string
		hostUp       bool
		wantRequests int
	}{
		{name: "host down", hostUp: false, wantRequests: 1},
		{name: "host up", hostUp: true, wantRequests: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness(t)
			hs.allowInventory()

			h := hs.h
			if tt.hostUp {
				h.hostState = HostRunning
			}

			hs.postChange(added(5, 6))
			hs.loop.Drain()
			require.Len(t, hs.sent, 1)

			hs.respond(0, getPDRResponse(locatorRecord(5, false), 6))
			assert.Len(t, hs.sent, tt.wantRequests)

			rec, err := h.Repository().Get(5)
			require.NoError(t, err)
			assert.Equal(t, pdr.TypeTerminusLocator, rec.Type)

			loc, ok := h.locators.Lookup(testHostTH)
			require.True(t, ok)
			assert.False(t, loc.Valid)

			if !tt.hostUp {
				assert.Empty(t, h.plainQueue)
				assert.Equal(t, PhaseIdle, h.Phase())
			}
		})
	}
}

func TestInvalidLocatorMarksHostEntitiesUnavailable(t *testing.T) {
	hs := newHarness(t)
	avail := hs.allowInventory()

	h := hs.h
	cpuPath := "/inventory/chassis0/cpu0"

	hs.postChange(added(10))
	hs.loop.Drain()
	hs.respond(0, getPDRResponse(associationRecord(t, 10, board, cpu), 0))
	require.True(t, avail[cpuPath])
	require.Len(t, hs.sent, 2)

	hs.postChange(added(20))
	hs.loop.Drain()
	require.Len(t, hs.sent, 3)
	assert.Equal(t, uint32(20), hs.requestedHandle(2))

	hs.respond(2, getPDRResponse(locatorRecord(20, false), 0))

	assert.False(t, avail[cpuPath])
	assert.False(t, h.Available(cpuPath))
	assert.Contains(t, h.ObjectPaths(), cpuPath)
	assert.True(t, avail["/inventory/chassis0"], "BMC entities keep their availability")

	hs.postChange(added(21))
	hs.loop.Drain()
	require.Len(t, hs.sent, 4)

	hs.respond(3, getPDRResponse(locatorRecord(21, true), 0))

	assert.True(t, avail[cpuPath])
	assert.True(t, h.Available(cpuPath))
}

func TestRefreshRebuildsObjectPaths(t *testing.T) {
	hs := newHarness(t)
	avail := hs.allowInventory()

	h := hs.h
	cpuPath := "/inventory/chassis0/cpu0"

	hs.postChange(added(10))
	hs.loop.Drain()
	hs.respond(0, getPDRResponse(associationRecord(t, 10, board, cpu), 0))
	require.True(t, avail[cpuPath])
	require.Contains(t, h.ObjectPaths(), cpuPath)
	require.Len(t, hs.sent, 2)

	refresh, err := (&pldm.RepositoryChangeEvent{Format: pldm.RefreshEntireRepository}).Marshal()
	require.NoError(t, err)
	require.NoError(t, h.HandleRepositoryChange(testHostTID, refresh))

	hs.loop.Drain()
	require.Len(t, hs.sent, 3)
	assert.Zero(t, hs.requestedHandle(2))

	hs.respond(2, getPDRResponse(locatorRecord(1, true), 0))

	assert.Nil(t, h.Tree().FindWithLocality(cpu, true))
	assert.NotContains(t, h.ObjectPaths(), cpuPath)
	assert.Contains(t, h.ObjectPaths(), "/inventory/chassis0")
	assert.False(t, avail[cpuPath])
	assert.False(t, h.Available(cpuPath))
	assert.True(t, avail["/inventory/chassis0"])
	assert.Equal(t, PhaseIdle, h.Phase())
}

func TestClassifyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		typ    pdr.Type
		record []byte
	}{
		{
			name:   "terminus locator",
			typ:    pdr.TypeTerminusLocator,
			record: locatorRecord(21, true),
		},
		{
			name: "state sensor",
			typ:  pdr.TypeStateSensor,
			record: stateSensorRecord(22, 4, entity.Entity{Type: 3, Instance: 1, ContainerID: 9},
				pdr.NewPossibleStates(pldm.StateSetPresence, 1, 2)),
		},
		{
			name: "fru record set",
			typ:  pdr.TypeFRURecordSet,
			record: (&pdr.FRURecordSet{
				Hdr:            pdr.Header{RecordHandle: 23},
				TerminusHandle: testHostTH,
				RecordSetID:    5,
				Entity:         entity.Entity{Type: 4, Instance: 1, ContainerID: 9},
			}).Marshal(),
		},
		{
			name: "numeric effecter",
			typ:  pdr.TypeNumericEffecter,
			record: (&pdr.NumericEffecter{
				Hdr:            pdr.Header{RecordHandle: 24},
				TerminusHandle: testHostTH,
				EffecterID:     2,
				Entity:         entity.Entity{Type: 5, Instance: 1, ContainerID: 9},
				Tail:           []byte{1, 2, 3},
			}).Marshal(),
		},
		{
			name:   "entity association",
			typ:    pdr.TypeEntityAssociation,
			record: associationRecord(t, 25, board, cpu),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness(t)
			h := hs.h

			nodes := h.Tree().Len()

			assert.False(t, h.classify(append([]byte(nil), tt.record...), false))

			handles := h.Repository().HandlesByType(tt.typ)
			require.Len(t, handles, 1)

			rec, err := h.Repository().Get(handles[0])
			require.NoError(t, err)
			assert.True(t, rec.Remote)

			if tt.typ == pdr.TypeEntityAssociation {
				assert.Equal(t, nodes+1, h.Tree().Len())
				return
			}

			assert.Equal(t, tt.record, rec.Data)
			assert.Equal(t, nodes, h.Tree().Len())
		})
	}
}

func TestHostOffResetsEverything(t *testing.T) {
	hs := newHarness(t)
	avail := hs.allowInventory()

	h := hs.h
	h.HostStateChanged(HostTransitioning)

	hs.postChange(added(10, 11))
	hs.loop.Drain()
	hs.respond(0, getPDRResponse(associationRecord(t, 10, board, cpu), 11))
	hs.respond(1, getPDRResponse(stateSensorRecord(11, 7, cpu, pdr.NewPossibleStates(pldm.StateSetHealthState, 1, 2)), 0))

	var previously []string

	for p, v := range avail {
		if v {
			previously = append(previously, p)
		}
	}

	require.Len(t, previously, 2)
	require.False(t, entity.Equal(hs.bmc, h.Tree()))

	h.HostStateChanged(HostOff)

	for _, p := range previously {
		assert.False(t, h.Available(p), p)
		assert.False(t, avail[p], p)
	}

	for _, rec := range h.Repository().Records() {
		assert.False(t, rec.Remote, "record %d", rec.Handle)
	}

	assert.True(t, entity.Equal(hs.bmc, h.Tree()))
	assert.Zero(t, h.Sensors().Len())
	assert.Empty(t, h.hostHandles)
	assert.False(t, h.mergedHostParents)
	assert.Equal(t, PhaseIdle, h.Phase())

	_, ok := h.locators.Lookup(testHostTH)
	assert.False(t, ok)
}

func TestLateResponseAfterHostOffIsDropped(t *testing.T) {
	hs := newHarness(t)
	hs.allowInventory()

	h := hs.h
	h.HostStateChanged(HostTransitioning)

	hs.postChange(added(10))
	hs.loop.Drain()
	require.Len(t, hs.sent, 1)

	h.HostStateChanged(HostOff)
	hs.respond(0, getPDRResponse(stateSensorRecord(10, 7, cpu, pdr.NewPossibleStates(pldm.StateSetHealthState, 1)), 0))

	assert.Zero(t, h.Repository().Len())
	assert.Len(t, hs.sent, 1)
	assert.Equal(t, PhaseIdle, h.Phase())
}

func TestHostRunningStartsFullScan(t *testing.T) {
	hs := newHarness(t)
	hs.allowInventory()

	h := hs.h
	h.HostStateChanged(HostRunning)
	assert.True(t, h.HostUp())

	hs.loop.Drain()
	require.Len(t, hs.sent, 1)
	assert.Equal(t, uint32(0), hs.requestedHandle(0))

	hs.respond(0, getPDRResponse(locatorRecord(1, true), 2))
	require.Len(t, hs.sent, 2)
	assert.Equal(t, uint32(2), hs.requestedHandle(1))

	hs.respond(1, getPDRResponse(associationRecord(t, 2, board, cpu), 0))

	assert.Equal(t, PhaseIdle, h.Phase())
	assert.Equal(t, hs.bmc.Len()+1, h.Tree().Len())
}

func TestMultipartTransfer(t *testing.T) {
	record := stateSensorRecord(20, 6, entity.Entity{Type: 5, Instance: 0, ContainerID: 9},
		pdr.NewPossibleStates(pldm.StateSetHealthState, 1, 2))

	start := (&pldm.GetPDRResponse{
		NextDataTransferHandle: 77,
		TransferFlag:           pldm.TransferStart,
		RecordData:             record[:8],
	}).Marshal()

	t.Run("crc matches", func(t *testing.T) {
		hs := newHarness(t)
		hs.allowInventory()

		hs.postChange(added(20))
		hs.loop.Drain()
		hs.respond(0, start)

		require.Len(t, hs.sent, 2)

		req, err := pldm.DecodeGetPDRRequest(hs.sent[1].payload)
		require.NoError(t, err)
		assert.Equal(t, uint32(20), req.RecordHandle)
		assert.Equal(t, uint32(77), req.DataTransferHandle)
		assert.Equal(t, pldm.GetNextPart, req.TransferOpFlag)

		hs.respond(1, (&pldm.GetPDRResponse{
			TransferFlag: pldm.TransferEnd,
			RecordData:   record[8:],
			TransferCRC:  pldm.CRC8(record),
		}).Marshal())

		rec, err := hs.h.Repository().Get(20)
		require.NoError(t, err)
		assert.Equal(t, record, rec.Data)
	})

	t.Run("crc mismatch", func(t *testing.T) {
		hs := newHarness(t)

		hs.reporter.EXPECT().ReportError(gomock.Any(), ErrorTypePDRExchangeFailure,
			map[string]string{"record_handle": "20", "reason": "transfer"}).Return(nil)

		hs.postChange(added(20))
		hs.loop.Drain()
		hs.respond(0, start)
		hs.respond(1, (&pldm.GetPDRResponse{
			TransferFlag: pldm.TransferEnd,
			RecordData:   record[8:],
			TransferCRC:  pldm.CRC8(record) + 1,
		}).Marshal())

		assert.Zero(t, hs.h.Repository().Len())
		assert.Equal(t, PhaseIdle, hs.h.Phase())
		assert.Len(t, hs.sent, 2)
	})
}

func TestFetchTimeoutIsReported(t *testing.T) {
	hs := newHarness(t)

	hs.reporter.EXPECT().ReportError(gomock.Any(), ErrorTypePDRExchangeFailure,
		map[string]string{"record_handle": "10", "reason": "timeout"}).Return(nil)

	hs.postChange(added(10, 11))
	hs.loop.Drain()
	require.Len(t, hs.sent, 1)

	hs.sent[0].onResponse(testHostEID, nil, requester.ErrRequestTimeout)

	assert.Equal(t, PhaseIdle, hs.h.Phase())
	assert.False(t, hs.h.inFlight)
	assert.Len(t, hs.sent, 1, "failed exchanges are not retried")
	assert.Equal(t, []uint32{11}, hs.h.plainQueue)
}

func TestDeletedAndModifiedRecords(t *testing.T) {
	hs := newHarness(t)
	h := hs.h

	require.False(t, h.classify(stateSensorRecord(30, 1, entity.Entity{Type: 5, ContainerID: 9},
		pdr.NewPossibleStates(pldm.StateSetHealthState, 1)), false))
	require.Equal(t, 1, h.Repository().Len())

	require.NoError(t, h.HandleRepositoryChange(testHostTID, changeEvent(t,
		pldm.ChangeRecord{Operation: pldm.RecordsDeleted, Entries: []uint32{30}})))
	assert.Zero(t, h.Repository().Len())
	assert.Empty(t, h.hostHandles)

	require.NoError(t, h.HandleRepositoryChange(testHostTID, changeEvent(t,
		added(40, 41),
		pldm.ChangeRecord{Operation: pldm.RecordsModified, Entries: []uint32{41}})))

	assert.Equal(t, []uint32{40}, h.plainQueue)
	assert.Equal(t, []uint32{41}, h.modifiedQueue)
	assert.Equal(t, 1, h.modifiedCount)

	handle, modified, ok := h.nextRequest(0)
	require.True(t, ok)
	assert.Equal(t, uint32(41), handle)
	assert.True(t, modified)

	handle, modified, ok = h.nextRequest(0)
	require.True(t, ok)
	assert.Equal(t, uint32(40), handle)
	assert.False(t, modified)
}

func TestDeletedRecordsDropSensorAndFRU(t *testing.T) {
	hs := newHarness(t)
	h := hs.h

	e := entity.Entity{Type: 5, ContainerID: 9}

	require.False(t, h.classify(stateSensorRecord(30, 1, e, pdr.NewPossibleStates(pldm.StateSetHealthState, 1)), false))
	require.False(t, h.classify((&pdr.FRURecordSet{
		Hdr:            pdr.Header{RecordHandle: 31},
		TerminusHandle: testHostTH,
		RecordSetID:    5,
		Entity:         e,
	}).Marshal(), false))

	h.buildSensorTable()
	h.fruPaths[5] = "/inventory/chassis0/dimm0"
	require.Equal(t, 1, h.Sensors().Len())

	require.NoError(t, h.HandleRepositoryChange(testHostTID, changeEvent(t,
		pldm.ChangeRecord{Operation: pldm.RecordsDeleted, Entries: []uint32{30, 31}})))

	assert.Zero(t, h.Repository().Len())
	assert.Zero(t, h.Sensors().Len())

	_, ok := h.FRUPath(5)
	assert.False(t, ok)
}

func TestPDRTypeChangeIgnoresOutOfRangeTypes(t *testing.T) {
	hs := newHarness(t)
	h := hs.h

	require.False(t, h.classify(stateSensorRecord(30, 1, entity.Entity{Type: 5, ContainerID: 9},
		pdr.NewPossibleStates(pldm.StateSetHealthState, 1)), false))

	data, err := (&pldm.RepositoryChangeEvent{
		Format: pldm.FormatIsPDRTypes,
		// 0x104 would alias the state sensor type if truncated.
		Records: []pldm.ChangeRecord{{Operation: pldm.RecordsAdded, Entries: []uint32{0x104}}},
	}).Marshal()
	require.NoError(t, err)
	require.NoError(t, h.HandleRepositoryChange(testHostTID, data))

	assert.Len(t, h.Repository().HandlesByType(pdr.TypeStateSensor), 1)
}

func TestModifiedReplacesStoredRecord(t *testing.T) {
	hs := newHarness(t)
	h := hs.h

	e := entity.Entity{Type: 5, ContainerID: 9}

	require.False(t, h.classify(stateSensorRecord(30, 1, e, pdr.NewPossibleStates(pldm.StateSetHealthState, 1)), false))

	updated := stateSensorRecord(30, 1, e, pdr.NewPossibleStates(pldm.StateSetHealthState, 1, 2))
	require.False(t, h.classify(updated, true))

	require.Equal(t, 1, h.Repository().Len())

	rec, err := h.Repository().Get(30)
	require.NoError(t, err)
	assert.Equal(t, updated, rec.Data)
}

func TestModifiedCounterDesyncIsResynchronized(t *testing.T) {
	hs := newHarness(t)
	h := hs.h

	require.NoError(t, h.HandleRepositoryChange(testHostTID, changeEvent(t,
		pldm.ChangeRecord{Operation: pldm.RecordsModified, Entries: []uint32{41}},
		pldm.ChangeRecord{Operation: pldm.RecordsModified, Entries: []uint32{41}})))

	require.Equal(t, []uint32{41}, h.modifiedQueue)
	require.Equal(t, 2, h.modifiedCount)

	handle, modified, ok := h.nextRequest(0)
	require.True(t, ok)
	assert.Equal(t, uint32(41), handle)
	assert.True(t, modified)
	assert.Zero(t, h.modifiedCount)
}

func rangeFixture(t *testing.T) (*harness, string) {
	t.Helper()

	hs := newHarness(t)
	p := "/inventory/board0"

	hs.h.objectPaths[p] = board
	hs.h.sensors.Add(terminus.SensorKey{TID: 3, SensorID: 12}, terminus.SensorInfo{
		Entity: board,
		StateSets: []pdr.PossibleStates{
			pdr.NewPossibleStates(pldm.StateSetHealthState, 1, 2),
			pdr.NewPossibleStates(pldm.StateSetIdentifyState, 1, 2),
			pdr.NewPossibleStates(pldm.StateSetVersion, 1),
		},
	})
	hs.h.sensors.Add(terminus.SensorKey{TID: terminus.WildcardTID, SensorID: 13}, terminus.SensorInfo{
		Entity: board,
		StateSets: []pdr.PossibleStates{
			pdr.NewPossibleStates(pldm.StateSetPresence, 1, 2),
			pdr.NewPossibleStates(100, 3),
		},
	})

	return hs, p
}

func TestSensorEventRangeSafety(t *testing.T) {
	hs, _ := rangeFixture(t)
	h := hs.h

	// No inventory expectations: any publish fails the test.
	err := h.HandleStateSensorEvent(3, 12, 5, 1, 1)
	require.ErrorIs(t, err, ErrOffsetOutOfRange)

	err = h.HandleStateSensorEvent(3, 12, 0, 7, 1)
	require.ErrorIs(t, err, ErrStateOutOfRange)

	require.NoError(t, h.HandleStateSensorEvent(3, 99, 0, 1, 1))

	ev := &pldm.StateSensorEvent{SensorID: 12, SensorOffset: 5, EventState: 1}
	msg := &pldm.PlatformEventMessage{
		FormatVersion: pldm.EventFormatVersion,
		TID:           3,
		EventClass:    pldm.EventClassSensor,
		EventData:     ev.Marshal(),
	}

	resp := h.HandlePlatformEvent(testHostEID, pldm.Header{}, msg.Marshal())
	assert.Equal(t, pldm.EncodePlatformEventResponse(pldm.Success, pldm.EventNoLogging), resp)
}

func TestSensorEventDispatch(t *testing.T) {
	hs, p := rangeFixture(t)
	h := hs.h

	gomock.InOrder(
		hs.inv.EXPECT().PublishFunctional(gomock.Any(), p, false, "/inventory").Return(nil),
		hs.inv.EXPECT().PublishIdentifyState(gomock.Any(), p, board, true).Return(nil),
		hs.inv.EXPECT().PublishVersionChanged(gomock.Any(), p, board).Return(nil),
		hs.inv.EXPECT().PublishAvailability(gomock.Any(), p, false).Return(nil),
		hs.inv.EXPECT().PublishState(gomock.Any(), p, uint16(100), uint8(3)).Return(nil),
	)

	require.NoError(t, h.HandleStateSensorEvent(3, 12, 0, 2, 1))
	require.NoError(t, h.HandleStateSensorEvent(3, 12, 1, pldm.IdentifyAsserted, pldm.IdentifyUnasserted))
	require.NoError(t, h.HandleStateSensorEvent(3, 12, 2, 1, 1))

	// Registered under the wildcard terminus, so any tid resolves it.
	require.NoError(t, h.HandleStateSensorEvent(7, 13, 0, 2, 1))
	require.NoError(t, h.HandleStateSensorEvent(7, 13, 1, 3, 0))

	assert.False(t, h.Available(p))
}

func TestPlatformEventRejectsUnknownClass(t *testing.T) {
	hs := newHarness(t)

	msg := &pldm.PlatformEventMessage{
		FormatVersion: pldm.EventFormatVersion,
		TID:           testHostTID,
		EventClass:    pldm.EventClassHeartbeatTimerElapse,
	}

	resp := hs.h.HandlePlatformEvent(testHostEID, pldm.Header{}, msg.Marshal())
	assert.Equal(t, pldm.EncodePlatformEventResponse(pldm.ErrorInvalidData, 0), resp)

	resp = hs.h.HandlePlatformEvent(testHostEID, pldm.Header{}, []byte{1})
	assert.Equal(t, pldm.EncodePlatformEventResponse(pldm.ErrorInvalidLength, 0), resp)
}

func TestSensorWalkReadsStates(t *testing.T) {
	hs, p := rangeFixture(t)
	h := hs.h

	h.hostState = HostRunning
	h.phase = PhaseDispatching

	hs.inv.EXPECT().PublishFunctional(gomock.Any(), p, true, "/inventory").Return(nil)
	hs.inv.EXPECT().PublishIdentifyState(gomock.Any(), p, board, false).Return(nil)
	hs.inv.EXPECT().PublishVersionChanged(gomock.Any(), p, board).Return(nil)
	hs.inv.EXPECT().PublishAvailability(gomock.Any(), p, true).Return(nil)
	hs.inv.EXPECT().PublishState(gomock.Any(), p, uint16(100), uint8(3)).Return(nil)

	h.startWalk()

	require.Len(t, hs.sent, 1)
	assert.Equal(t, pldm.CmdGetStateSensorReadings, hs.sent[0].command)

	first, err := pldm.DecodeGetStateSensorReadingsRequest(hs.sent[0].payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(12), first.SensorID)
	assert.Equal(t, uint8(testHostEID), hs.sent[0].eid)

	readings, err := (&pldm.GetStateSensorReadingsResponse{Fields: []pldm.SensorStateField{
		{PresentState: pldm.HealthNormal},
		{PresentState: pldm.IdentifyUnasserted},
		{PresentState: 1},
	}}).Marshal()
	require.NoError(t, err)
	hs.respond(0, readings)

	require.Len(t, hs.sent, 2)

	second, err := pldm.DecodeGetStateSensorReadingsRequest(hs.sent[1].payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(13), second.SensorID)

	readings, err = (&pldm.GetStateSensorReadingsResponse{Fields: []pldm.SensorStateField{
		{PresentState: pldm.PresencePresent},
		{PresentState: 3},
	}}).Marshal()
	require.NoError(t, err)
	hs.respond(1, readings)

	assert.Equal(t, PhaseIdle, h.Phase())
	assert.False(t, h.walk.active)
	assert.True(t, h.Available(p))
}
