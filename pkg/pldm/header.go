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

// Package pldm implements the PLDM message header and the platform
// monitoring and control commands exchanged while mirroring a host's
// PDR repository (DSP0240 / DSP0248).
package pldm

import "fmt"

// HeaderSize is the size of the PLDM message header in bytes.
const HeaderSize = 3

// MessageType is the 6-bit PLDM type carried in the header.
type MessageType uint8

const (
	TypeBase     MessageType = 0x00
	TypePlatform MessageType = 0x02
	TypeBIOS     MessageType = 0x03
	TypeFRU      MessageType = 0x04
	TypeOEM      MessageType = 0x3F
)

// Command codes for PLDM type 2 (platform monitoring and control).
const (
	CmdPlatformEventMessage   uint8 = 0x0A
	CmdGetStateSensorReadings uint8 = 0x21
	CmdGetPDRRepositoryInfo   uint8 = 0x50
	CmdGetPDR                 uint8 = 0x51
)

// CompletionCode is the first byte of every PLDM response payload.
type CompletionCode uint8

const (
	Success               CompletionCode = 0x00
	ErrorGeneric          CompletionCode = 0x01
	ErrorInvalidData      CompletionCode = 0x02
	ErrorInvalidLength    CompletionCode = 0x03
	ErrorNotReady         CompletionCode = 0x04
	ErrorUnsupportedCmd   CompletionCode = 0x05
	ErrorInvalidPLDMType  CompletionCode = 0x20
	InvalidRecordHandle   CompletionCode = 0x82
	InvalidDataTransfer   CompletionCode = 0x80
	InvalidTransferOpFlag CompletionCode = 0x81
)

func (c CompletionCode) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case ErrorGeneric:
		return "ERROR"
	case ErrorInvalidData:
		return "ERROR_INVALID_DATA"
	case ErrorInvalidLength:
		return "ERROR_INVALID_LENGTH"
	case ErrorNotReady:
		return "ERROR_NOT_READY"
	case ErrorUnsupportedCmd:
		return "ERROR_UNSUPPORTED_PLDM_CMD"
	case ErrorInvalidPLDMType:
		return "ERROR_INVALID_PLDM_TYPE"
	case InvalidRecordHandle:
		return "INVALID_RECORD_HANDLE"
	case InvalidDataTransfer:
		return "INVALID_DATA_TRANSFER_HANDLE"
	case InvalidTransferOpFlag:
		return "INVALID_TRANSFER_OPERATION_FLAG"
	default:
		return fmt.Sprintf("0x%02x", uint8(c))
	}
}

// MaxInstanceID is the largest 5-bit instance identifier.
const MaxInstanceID = 31

const (
	requestBit  = 0x80
	datagramBit = 0x40
	instanceMsk = 0x1F
	typeMsk     = 0x3F
)

// Header is the decoded PLDM message header.
type Header struct {
	Request    bool
	Datagram   bool
	InstanceID uint8
	Type       MessageType
	Command    uint8
}

// Marshal encodes the header into its 3-byte wire form. Header version is
// always 0.
func (h Header) Marshal() ([HeaderSize]byte, error) {
	var out [HeaderSize]byte

	if h.InstanceID > MaxInstanceID {
		return out, ErrInvalidInstanceID
	}

	if uint8(h.Type) > typeMsk {
		return out, fmt.Errorf("%w: type 0x%02x", ErrInvalidHeader, uint8(h.Type))
	}

	out[0] = h.InstanceID & instanceMsk
	if h.Request {
		out[0] |= requestBit
	}

	if h.Datagram {
		out[0] |= datagramBit
	}

	out[1] = uint8(h.Type) & typeMsk
	out[2] = h.Command

	return out, nil
}

// UnmarshalHeader decodes the header at the start of msg.
func UnmarshalHeader(msg []byte) (Header, error) {
	if len(msg) < HeaderSize {
		return Header{}, ErrShortBuffer
	}

	if msg[1]>>6 != 0 {
		return Header{}, fmt.Errorf("%w: header version %d", ErrInvalidHeader, msg[1]>>6)
	}

	return Header{
		Request:    msg[0]&requestBit != 0,
		Datagram:   msg[0]&datagramBit != 0,
		InstanceID: msg[0] & instanceMsk,
		Type:       MessageType(msg[1] & typeMsk),
		Command:    msg[2],
	}, nil
}

// EncodeMessage prepends a header to payload.
func EncodeMessage(h Header, payload []byte) ([]byte, error) {
	hdr, err := h.Marshal()
	if err != nil {
		return nil, err
	}

	msg := make([]byte, 0, HeaderSize+len(payload))
	msg = append(msg, hdr[:]...)
	msg = append(msg, payload...)

	return msg, nil
}

// SplitMessage returns the decoded header and the payload that follows it.
func SplitMessage(msg []byte) (Header, []byte, error) {
	h, err := UnmarshalHeader(msg)
	if err != nil {
		return Header{}, nil, err
	}

	return h, msg[HeaderSize:], nil
}

// EncodeCompletion builds a response payload consisting only of a
// completion code.
func EncodeCompletion(code CompletionCode) []byte {
	return []byte{byte(code)}
}

// DecodeCompletion checks the leading completion code of a response
// payload and returns the remainder.
func DecodeCompletion(payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, ErrShortBuffer
	}

	if code := CompletionCode(payload[0]); code != Success {
		return nil, &CompletionError{Code: code}
	}

	return payload[1:], nil
}
