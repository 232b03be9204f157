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

// Package requester correlates outbound PLDM requests with their responses
// and routes inbound requests to registered handlers. All state is owned by
// the event loop; transports hand inbound messages over through Deliver.
package requester

//go:generate mockgen -destination=mock_requester.go -package=requester github.com/carverauto/pldmd/pkg/requester Transport

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/pldmd/pkg/eventloop"
	"github.com/carverauto/pldmd/pkg/logger"
	"github.com/carverauto/pldmd/pkg/pldm"
)

const (
	defaultResponseTimeout = 5 * time.Second
	tracerName             = "pldmd.requester"
)

// Transport moves complete PLDM messages to and from endpoints.
type Transport interface {
	Send(ctx context.Context, eid uint8, msg []byte) error
}

// ResponseHandler receives the payload of a response, or the reason no
// response will arrive. It runs on the event loop.
type ResponseHandler func(eid uint8, payload []byte, err error)

// RequestHandler answers an inbound request with a response payload that
// starts with a completion code. It runs on the event loop.
type RequestHandler func(eid uint8, hdr pldm.Header, payload []byte) []byte

type pendingKey struct {
	eid        uint8
	instanceID uint8
	msgType    pldm.MessageType
	command    uint8
}

type pending struct {
	onResponse ResponseHandler
	timer      *time.Timer
	span       trace.Span
}

type handlerKey struct {
	msgType pldm.MessageType
	command uint8
}

// Config tunes a Requester.
type Config struct {
	ResponseTimeout time.Duration
}

// Requester sends requests and dispatches responses exactly once.
type Requester struct {
	loop      *eventloop.Loop
	transport Transport
	ids       *pldm.InstanceIDDB
	timeout   time.Duration
	pending   map[pendingKey]*pending
	handlers  map[handlerKey]RequestHandler
	tracer    trace.Tracer
	logger    logger.Logger
}

// New creates a Requester bound to loop.
func New(loop *eventloop.Loop, transport Transport, cfg Config, log logger.Logger) (*Requester, error) {
	if loop == nil {
		return nil, ErrLoopNil
	}

	if transport == nil {
		return nil, ErrTransportNil
	}

	timeout := cfg.ResponseTimeout
	if timeout <= 0 {
		timeout = defaultResponseTimeout
	}

	return &Requester{
		loop:      loop,
		transport: transport,
		ids:       pldm.NewInstanceIDDB(),
		timeout:   timeout,
		pending:   make(map[pendingKey]*pending),
		handlers:  make(map[handlerKey]RequestHandler),
		tracer:    otel.Tracer(tracerName),
		logger:    log,
	}, nil
}

// NextInstanceID allocates an instance id for a request to eid.
func (r *Requester) NextInstanceID(eid uint8) (uint8, error) {
	return r.ids.Next(eid)
}

// RegisterRequest sends a request carrying instanceID and arranges for
// onResponse to run once with its response or with ErrRequestTimeout. When
// RegisterRequest returns an error onResponse is never called and the
// instance id has been released.
func (r *Requester) RegisterRequest(
	eid, instanceID uint8, msgType pldm.MessageType, command uint8, payload []byte, onResponse ResponseHandler) error {
	if onResponse == nil {
		r.freeID(eid, instanceID)

		return ErrNilHandler
	}

	key := pendingKey{eid: eid, instanceID: instanceID, msgType: msgType, command: command}
	if _, busy := r.pending[key]; busy {
		return fmt.Errorf("%w: eid %d id %d", ErrRequestPending, eid, instanceID)
	}

	msg, err := pldm.EncodeMessage(pldm.Header{
		Request:    true,
		InstanceID: instanceID,
		Type:       msgType,
		Command:    command,
	}, payload)
	if err != nil {
		r.freeID(eid, instanceID)

		return err
	}

	ctx, span := r.tracer.Start(context.Background(), "pldm.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("pldm.eid", int(eid)),
			attribute.Int("pldm.instance_id", int(instanceID)),
			attribute.Int("pldm.type", int(msgType)),
			attribute.Int("pldm.command", int(command)),
		))

	p := &pending{onResponse: onResponse, span: span}
	r.pending[key] = p

	if err := r.transport.Send(ctx, eid, msg); err != nil {
		delete(r.pending, key)
		r.freeID(eid, instanceID)

		err = fmt.Errorf("send command 0x%02x to eid %d: %w", command, eid, err)
		endSpan(span, err)

		return err
	}

	p.timer = r.loop.AfterFunc(r.timeout, func() {
		r.expire(key, p)
	})

	r.logger.Trace().
		Uint8("eid", eid).
		Uint8("instance_id", instanceID).
		Uint8("command", command).
		Msg("Request sent")

	return nil
}

func (r *Requester) expire(key pendingKey, p *pending) {
	if r.pending[key] != p {
		return
	}

	delete(r.pending, key)
	r.freeID(key.eid, key.instanceID)

	r.logger.Warn().
		Uint8("eid", key.eid).
		Uint8("instance_id", key.instanceID).
		Uint8("command", key.command).
		Dur("timeout", r.timeout).
		Msg("Request timed out")

	endSpan(p.span, ErrRequestTimeout)
	p.onResponse(key.eid, nil, ErrRequestTimeout)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

func (r *Requester) freeID(eid, instanceID uint8) {
	if err := r.ids.Free(eid, instanceID); err != nil {
		r.logger.Debug().Err(err).Uint8("eid", eid).Msg("Instance id was not allocated")
	}
}

// Pending returns the number of outstanding requests.
func (r *Requester) Pending() int { return len(r.pending) }

// Handle registers the handler for inbound requests of one command.
func (r *Requester) Handle(msgType pldm.MessageType, command uint8, h RequestHandler) {
	r.handlers[handlerKey{msgType: msgType, command: command}] = h
}

// Deliver hands an inbound message to the loop. It is safe to call from any
// goroutine.
func (r *Requester) Deliver(eid uint8, msg []byte) {
	buf := append([]byte(nil), msg...)

	if err := r.loop.Post(func() { r.dispatch(eid, buf) }); err != nil {
		r.logger.Warn().Err(err).Uint8("eid", eid).Msg("Dropped inbound message")
	}
}

func (r *Requester) dispatch(eid uint8, msg []byte) {
	hdr, payload, err := pldm.SplitMessage(msg)
	if err != nil {
		r.logger.Warn().Err(err).Uint8("eid", eid).Msg("Malformed inbound message")

		return
	}

	if hdr.Request {
		r.serve(eid, hdr, payload)

		return
	}

	key := pendingKey{eid: eid, instanceID: hdr.InstanceID, msgType: hdr.Type, command: hdr.Command}

	p, ok := r.pending[key]
	if !ok {
		r.logger.Debug().
			Uint8("eid", eid).
			Uint8("instance_id", hdr.InstanceID).
			Uint8("command", hdr.Command).
			Msg("Response with no pending request")

		return
	}

	delete(r.pending, key)

	if p.timer != nil {
		p.timer.Stop()
	}

	r.freeID(eid, hdr.InstanceID)
	endSpan(p.span, nil)
	p.onResponse(eid, payload, nil)
}

func (r *Requester) serve(eid uint8, hdr pldm.Header, payload []byte) {
	var resp []byte

	if h, ok := r.handlers[handlerKey{msgType: hdr.Type, command: hdr.Command}]; ok {
		resp = h(eid, hdr, payload)
	} else {
		resp = pldm.EncodeCompletion(pldm.ErrorUnsupportedCmd)
	}

	msg, err := pldm.EncodeMessage(pldm.Header{
		InstanceID: hdr.InstanceID,
		Type:       hdr.Type,
		Command:    hdr.Command,
	}, resp)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to encode response")

		return
	}

	if err := r.transport.Send(context.Background(), eid, msg); err != nil {
		r.logger.Error().Err(err).Uint8("eid", eid).Uint8("command", hdr.Command).Msg("Failed to send response")
	}
}
