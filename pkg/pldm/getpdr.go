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
	"encoding/binary"
	"fmt"
)

// TransferOpFlag selects which part of a multipart GetPDR transfer is
// requested.
type TransferOpFlag uint8

const (
	GetNextPart  TransferOpFlag = 0x00
	GetFirstPart TransferOpFlag = 0x01
)

// TransferFlag describes the position of a response part in a transfer.
type TransferFlag uint8

const (
	TransferStart       TransferFlag = 0x01
	TransferMiddle      TransferFlag = 0x02
	TransferEnd         TransferFlag = 0x04
	TransferStartAndEnd TransferFlag = 0x05
)

func (f TransferFlag) valid() bool {
	switch f {
	case TransferStart, TransferMiddle, TransferEnd, TransferStartAndEnd:
		return true
	default:
		return false
	}
}

// Final reports whether no further parts follow this one.
func (f TransferFlag) Final() bool {
	return f == TransferEnd || f == TransferStartAndEnd
}

const (
	getPDRRequestSize   = 13
	getPDRResponseFixed = 12 // completion code through response count
)

// GetPDRRequest is the payload of a GetPDR request.
type GetPDRRequest struct {
	RecordHandle       uint32
	DataTransferHandle uint32
	TransferOpFlag     TransferOpFlag
	RequestCount       uint16
	RecordChangeNumber uint16
}

// Marshal encodes the request payload.
func (r *GetPDRRequest) Marshal() []byte {
	buf := make([]byte, getPDRRequestSize)
	binary.LittleEndian.PutUint32(buf[0:], r.RecordHandle)
	binary.LittleEndian.PutUint32(buf[4:], r.DataTransferHandle)
	buf[8] = byte(r.TransferOpFlag)
	binary.LittleEndian.PutUint16(buf[9:], r.RequestCount)
	binary.LittleEndian.PutUint16(buf[11:], r.RecordChangeNumber)

	return buf
}

// DecodeGetPDRRequest decodes a GetPDR request payload.
func DecodeGetPDRRequest(payload []byte) (*GetPDRRequest, error) {
	if len(payload) < getPDRRequestSize {
		return nil, ErrShortBuffer
	}

	if len(payload) > getPDRRequestSize {
		return nil, ErrTrailingData
	}

	return &GetPDRRequest{
		RecordHandle:       binary.LittleEndian.Uint32(payload[0:]),
		DataTransferHandle: binary.LittleEndian.Uint32(payload[4:]),
		TransferOpFlag:     TransferOpFlag(payload[8]),
		RequestCount:       binary.LittleEndian.Uint16(payload[9:]),
		RecordChangeNumber: binary.LittleEndian.Uint16(payload[11:]),
	}, nil
}

// GetPDRResponse is the payload of a GetPDR response.
type GetPDRResponse struct {
	CompletionCode         CompletionCode
	NextRecordHandle       uint32
	NextDataTransferHandle uint32
	TransferFlag           TransferFlag
	RecordData             []byte
	// TransferCRC is only present on the wire when TransferFlag is
	// TransferEnd.
	TransferCRC uint8
}

// Marshal encodes the response payload.
func (r *GetPDRResponse) Marshal() []byte {
	if r.CompletionCode != Success {
		return EncodeCompletion(r.CompletionCode)
	}

	size := getPDRResponseFixed + len(r.RecordData)
	if r.TransferFlag == TransferEnd {
		size++
	}

	buf := make([]byte, size)
	buf[0] = byte(r.CompletionCode)
	binary.LittleEndian.PutUint32(buf[1:], r.NextRecordHandle)
	binary.LittleEndian.PutUint32(buf[5:], r.NextDataTransferHandle)
	buf[9] = byte(r.TransferFlag)
	binary.LittleEndian.PutUint16(buf[10:], uint16(len(r.RecordData)))
	copy(buf[getPDRResponseFixed:], r.RecordData)

	if r.TransferFlag == TransferEnd {
		buf[size-1] = r.TransferCRC
	}

	return buf
}

// DecodeGetPDRResponse decodes a GetPDR response payload. A non-success
// completion code is returned as a *CompletionError.
func DecodeGetPDRResponse(payload []byte) (*GetPDRResponse, error) {
	if len(payload) < 1 {
		return nil, ErrShortBuffer
	}

	resp := &GetPDRResponse{CompletionCode: CompletionCode(payload[0])}
	if resp.CompletionCode != Success {
		return resp, &CompletionError{Code: resp.CompletionCode}
	}

	if len(payload) < getPDRResponseFixed {
		return nil, ErrShortBuffer
	}

	resp.NextRecordHandle = binary.LittleEndian.Uint32(payload[1:])
	resp.NextDataTransferHandle = binary.LittleEndian.Uint32(payload[5:])
	resp.TransferFlag = TransferFlag(payload[9])
	count := int(binary.LittleEndian.Uint16(payload[10:]))

	if !resp.TransferFlag.valid() {
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidTransferFlag, uint8(resp.TransferFlag))
	}

	want := getPDRResponseFixed + count
	if resp.TransferFlag == TransferEnd {
		want++
	}

	if len(payload) < want {
		return nil, fmt.Errorf("%w: have %d bytes, response count %d", ErrShortBuffer, len(payload), count)
	}

	if len(payload) > want {
		return nil, ErrTrailingData
	}

	resp.RecordData = append([]byte(nil), payload[getPDRResponseFixed:getPDRResponseFixed+count]...)
	if resp.TransferFlag == TransferEnd {
		resp.TransferCRC = payload[want-1]
	}

	return resp, nil
}
