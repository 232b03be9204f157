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

package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/logger"
	"github.com/carverauto/pldmd/pkg/models"
)

var errBrokerDown = errors.New("broker down")

func TestResolvePathAnnouncesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockPublisher(ctrl)

	svc, err := NewService(pub, "events.pldm", []models.AssociationName{
		{ParentType: entity.TypeSystemBoard, ChildType: entity.TypeProcessorModule, Forward: "containing", Reverse: "contained_by"},
	}, logger.NewTestLogger())
	require.NoError(t, err)

	board := entity.Entity{Type: entity.TypeSystemBoard, Instance: 0, ContainerID: 1}
	cpu := entity.Entity{Type: entity.TypeProcessorModule, Instance: 1, ContainerID: 2}

	var announced []*models.InventoryEventData

	pub.EXPECT().Publish(gomock.Any(), "events.pldm.added", "com.carverauto.pldmd.inventory.added", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, data any) error {
			announced = append(announced, data.(*models.InventoryEventData))
			return nil
		}).Times(2)

	ctx := context.Background()

	boardPath, err := svc.ResolvePath(ctx, board, "motherboard", "")
	require.NoError(t, err)
	assert.Equal(t, RootPath+"/motherboard0", boardPath)

	cpuPath, err := svc.ResolvePath(ctx, cpu, "cpu", boardPath)
	require.NoError(t, err)
	assert.Equal(t, boardPath+"/cpu1", cpuPath)

	again, err := svc.ResolvePath(ctx, cpu, "cpu", boardPath)
	require.NoError(t, err)
	assert.Equal(t, cpuPath, again)

	require.Len(t, announced, 2)
	assert.Empty(t, announced[0].Associations)
	require.Len(t, announced[1].Associations, 1)
	assert.Equal(t, "containing", announced[1].Associations[0].Forward)
	assert.Equal(t, boardPath, announced[1].Associations[0].Endpoint)
}

func TestResolvePathFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockPublisher(ctrl)

	svc, err := NewService(pub, "events.pldm", nil, logger.NewTestLogger())
	require.NoError(t, err)

	_, err = svc.ResolvePath(context.Background(), entity.Entity{Type: 1}, "", "")
	require.ErrorIs(t, err, ErrEmptyName)

	pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errBrokerDown)

	_, err = svc.ResolvePath(context.Background(), entity.Entity{Type: 1}, "thing", "")
	require.ErrorIs(t, err, errBrokerDown)

	// a failed announcement is retried on the next resolution
	pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	_, err = svc.ResolvePath(context.Background(), entity.Entity{Type: 1}, "thing", "")
	require.NoError(t, err)
}

func TestPropertyEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockPublisher(ctrl)

	svc, err := NewService(pub, "events.pldm", nil, logger.NewTestLogger())
	require.NoError(t, err)

	ctx := context.Background()
	path := RootPath + "/cpu0"
	cpu := entity.Entity{Type: entity.TypeProcessorModule}

	expect := func(kind string, check func(d *models.InventoryEventData)) {
		pub.EXPECT().Publish(gomock.Any(), "events.pldm."+kind, eventTypePrefix+kind, gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, data any) error {
				d := data.(*models.InventoryEventData)
				assert.Equal(t, path, d.Path)
				check(d)
				return nil
			})
	}

	expect("availability", func(d *models.InventoryEventData) { assert.Equal(t, false, d.Value) })
	expect("functional", func(d *models.InventoryEventData) {
		assert.Equal(t, true, d.Value)
		assert.Equal(t, RootPath, d.ParentPath)
	})
	expect("identify", func(d *models.InventoryEventData) { assert.Equal(t, true, d.Value) })
	expect("version", func(d *models.InventoryEventData) { assert.Equal(t, "Version", d.Property) })
	expect("state", func(d *models.InventoryEventData) {
		assert.Equal(t, uint16(99), d.StateSetID)
		assert.Equal(t, uint8(3), d.Value)
	})

	require.NoError(t, svc.PublishAvailability(ctx, path, false))
	require.NoError(t, svc.PublishFunctional(ctx, path, true, RootPath))
	require.NoError(t, svc.PublishIdentifyState(ctx, path, cpu, true))
	require.NoError(t, svc.PublishVersionChanged(ctx, path, cpu))
	require.NoError(t, svc.PublishState(ctx, path, 99, 3))
}

func TestErrorReporterSeverity(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockPublisher(ctrl)

	r, err := NewErrorReporter(pub, "events.pldm", logger.NewTestLogger())
	require.NoError(t, err)

	var got []*models.ErrorEventData

	pub.EXPECT().Publish(gomock.Any(), "events.pldm.error", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, data any) error {
			got = append(got, data.(*models.ErrorEventData))
			return nil
		}).Times(2)

	ctx := context.Background()
	require.NoError(t, r.ReportError(ctx, "xyz.openbmc_project.PLDM.Error.GetPDR.PDRExchangeFailure",
		map[string]string{"record_handle": "10"}))
	require.NoError(t, r.ReportError(ctx, internalFailure, nil))

	require.Len(t, got, 2)
	assert.Equal(t, severityError, got[0].Severity)
	assert.Equal(t, "10", got[0].Fields["record_handle"])
	assert.Equal(t, severityCritical, got[1].Severity)
}

func TestConstructorsRejectNilPublisher(t *testing.T) {
	_, err := NewService(nil, "x", nil, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrPublisherNil)

	_, err = NewErrorReporter(nil, "x", logger.NewTestLogger())
	require.ErrorIs(t, err, ErrPublisherNil)
}
