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


// Package transport carries PLDM messages over NATS subjects. Each endpoint
// has its own subject so that "<tx>.<eid>" reaches one EID and "<rx>.<eid>"
// carries what it sends back.
package transport

//go:generate mockgen -destination=mock_transport.go -package=transport github.com/carverauto/pldmd/pkg/transport Conn

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/carverauto/pldmd/pkg/logger"
)

var (
	ErrConnNil        = errors.New("nats connection cannot be nil")
	ErrAlreadyStarted = errors.New("transport already started")
	ErrBadSubject     = errors.New("subject does not end in an endpoint id")
)

// Conn is the subset of *nats.Conn the bridge needs.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// DeliverFunc receives an inbound message from eid.
type DeliverFunc func(eid uint8, msg []byte)

// Bridge sends PLDM messages to endpoints and forwards inbound ones.
type Bridge struct {
	conn     Conn
	txPrefix string
	rxPrefix string
	sub      *nats.Subscription
	started  bool
	logger   logger.Logger
}

// NewBridge creates a Bridge using the given subject prefixes.
func NewBridge(conn Conn, txPrefix, rxPrefix string, log logger.Logger) (*Bridge, error) {
	if conn == nil {
		return nil, ErrConnNil
	}

	return &Bridge{
		conn:     conn,
		txPrefix: txPrefix,
		rxPrefix: rxPrefix,
		logger:   log,
	}, nil
}

// Send publishes msg to eid. The trace context in ctx travels in the NATS
// message headers.
func (b *Bridge) Send(ctx context.Context, eid uint8, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("%s.%d", b.txPrefix, eid)

	m := nats.NewMsg(subject)
	m.Data = msg
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(m.Header))

	if err := b.conn.PublishMsg(m); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	return nil
}

// Start subscribes to every endpoint's inbound subject and hands messages to
// deliver from the NATS callback goroutine.
func (b *Bridge) Start(deliver DeliverFunc) error {
	if b.started {
		return ErrAlreadyStarted
	}

	sub, err := b.conn.Subscribe(b.rxPrefix+".*", func(m *nats.Msg) {
		eid, err := endpointOf(m.Subject)
		if err != nil {
			b.logger.Warn().Err(err).Str("subject", m.Subject).Msg("Dropping inbound message")

			return
		}

		deliver(eid, m.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s.*: %w", b.rxPrefix, err)
	}

	b.sub = sub
	b.started = true

	b.logger.Info().Str("tx", b.txPrefix).Str("rx", b.rxPrefix).Msg("PLDM transport started")

	return nil
}

// Close drops the inbound subscription.
func (b *Bridge) Close() error {
	if b.sub == nil {
		return nil
	}

	err := b.sub.Unsubscribe()
	b.sub = nil

	return err
}

func endpointOf(subject string) (uint8, error) {
	i := strings.LastIndexByte(subject, '.')
	if i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrBadSubject, subject)
	}

	eid, err := strconv.ParseUint(subject[i+1:], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadSubject, subject)
	}

	return uint8(eid), nil
}
