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

package pldm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderMarshal(t *testing.T) {
	h := Header{Request: true, InstanceID: 5, Type: TypePlatform, Command: CmdGetPDR}

	raw, err := h.Marshal()
	require.NoError(t, err)
	assert.Equal(t, [HeaderSize]byte{0x85, 0x02, 0x51}, raw)

	decoded, err := UnmarshalHeader(raw[:])
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestHeaderRejectsBadInput(t *testing.T) {
	_, err := Header{InstanceID: 32}.Marshal()
	require.ErrorIs(t, err, ErrInvalidInstanceID)

	_, err = UnmarshalHeader([]byte{0x80, 0x02})
	require.ErrorIs(t, err, ErrShortBuffer)

	// header version 1 is not defined
	_, err = UnmarshalHeader([]byte{0x80, 0x42, 0x51})
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestGetPDRRequestWireLayout(t *testing.T) {
	req := &GetPDRRequest{
		RecordHandle:       0x0A,
		DataTransferHandle: 0,
		TransferOpFlag:     GetFirstPart,
		RequestCount:       0xFFFF,
	}

	raw := req.Marshal()
	assert.Equal(t, []byte{
		0x0A, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x01,
		0xFF, 0xFF,
		0x00, 0x00,
	}, raw)

	decoded, err := DecodeGetPDRRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)
}

func TestGetPDRResponseDecode(t *testing.T) {
	record := []byte{1, 2, 3, 4}

	tests := []struct {
		name    string
		resp    *GetPDRResponse
		wantCRC bool
	}{
		{
			name: "single part",
			resp: &GetPDRResponse{NextRecordHandle: 11, TransferFlag: TransferStartAndEnd, RecordData: record},
		},
		{
			name:    "final part carries crc",
			resp:    &GetPDRResponse{TransferFlag: TransferEnd, RecordData: record, TransferCRC: 0x5A},
			wantCRC: true,
		},
		{
			name: "first part",
			resp: &GetPDRResponse{NextRecordHandle: 2, NextDataTransferHandle: 4, TransferFlag: TransferStart, RecordData: record},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeGetPDRResponse(tt.resp.Marshal())
			require.NoError(t, err)
			assert.Equal(t, tt.resp.NextRecordHandle, decoded.NextRecordHandle)
			assert.Equal(t, tt.resp.NextDataTransferHandle, decoded.NextDataTransferHandle)
			assert.Equal(t, tt.resp.TransferFlag, decoded.TransferFlag)
			assert.Equal(t, record, decoded.RecordData)

			if tt.wantCRC {
				assert.Equal(t, uint8(0x5A), decoded.TransferCRC)
			}
		})
	}
}

func TestGetPDRResponseErrors(t *testing.T) {
	resp, err := DecodeGetPDRResponse([]byte{byte(InvalidRecordHandle)})
	require.Error(t, err)
	assert.True(t, IsCompletionCode(err, InvalidRecordHandle))
	assert.Equal(t, InvalidRecordHandle, resp.CompletionCode)

	full := (&GetPDRResponse{TransferFlag: TransferStartAndEnd, RecordData: []byte{1, 2, 3}}).Marshal()

	_, err = DecodeGetPDRResponse(full[:len(full)-1])
	require.ErrorIs(t, err, ErrShortBuffer)

	_, err = DecodeGetPDRResponse(append(full, 0))
	require.ErrorIs(t, err, ErrTrailingData)

	bad := append([]byte(nil), full...)
	bad[9] = 0x03

	_, err = DecodeGetPDRResponse(bad)
	require.ErrorIs(t, err, ErrInvalidTransferFlag)
}

func TestRepositoryChangeEventDecode(t *testing.T) {
	data := []byte{
		0x02, 0x01, // record handles, one change record
		0x02, 0x02, // added, two entries
		10, 0, 0, 0,
		11, 0, 0, 0,
	}

	ev, err := DecodeRepositoryChangeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, FormatIsPDRHandles, ev.Format)
	require.Len(t, ev.Records, 1)
	assert.Equal(t, RecordsAdded, ev.Records[0].Operation)
	assert.Equal(t, []uint32{10, 11}, ev.Records[0].Entries)

	encoded, err := ev.Marshal()
	require.NoError(t, err)
	assert.Equal(t, data, encoded)
}

func TestRepositoryChangeEventRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrShortBuffer},
		{name: "bad format", data: []byte{0x07, 0x00}, want: ErrInvalidEventFormat},
		{name: "bad operation", data: []byte{0x02, 0x01, 0x09, 0x00}, want: ErrInvalidOperation},
		{name: "truncated entries", data: []byte{0x02, 0x01, 0x02, 0x02, 10, 0, 0, 0}, want: ErrShortBuffer},
		{name: "trailing bytes", data: []byte{0x02, 0x00, 0xAA}, want: ErrTrailingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRepositoryChangeEvent(tt.data)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSensorEventDecode(t *testing.T) {
	in := &StateSensorEvent{SensorID: 0x1234, SensorOffset: 1, EventState: 2, PreviousEventState: 1}

	out, err := DecodeSensorEvent(in.Marshal())
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeSensorEvent([]byte{0x34, 0x12, byte(NumericSensorState)})
	require.ErrorIs(t, err, ErrUnsupportedEventType)
}

func TestStateSensorReadings(t *testing.T) {
	resp := &GetStateSensorReadingsResponse{Fields: []SensorStateField{
		{OperationalState: 0, PresentState: 2, PreviousState: 1, EventState: 2},
	}}

	raw, err := resp.Marshal()
	require.NoError(t, err)

	decoded, err := DecodeGetStateSensorReadingsResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, resp, decoded)

	_, err = DecodeGetStateSensorReadingsResponse([]byte{byte(ErrorNotReady)})
	assert.True(t, IsCompletionCode(err, ErrorNotReady))
}

func TestCRC8(t *testing.T) {
	assert.Equal(t, byte(0xF4), CRC8([]byte("123456789")))
	assert.Equal(t, byte(0x00), CRC8(nil))
}

func TestInstanceIDDB(t *testing.T) {
	db := NewInstanceIDDB()

	seen := make(map[uint8]bool)

	for i := 0; i <= MaxInstanceID; i++ {
		id, err := db.Next(9)
		require.NoError(t, err)
		assert.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}

	_, err := db.Next(9)
	require.ErrorIs(t, err, ErrInstanceIDExhausted)

	// other endpoints are independent
	_, err = db.Next(10)
	require.NoError(t, err)

	require.NoError(t, db.Free(9, 7))
	assert.Equal(t, MaxInstanceID, db.InUse(9))

	id, err := db.Next(9)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), id)

	require.ErrorIs(t, db.Free(11, 0), ErrInstanceIDNotInUse)
}
