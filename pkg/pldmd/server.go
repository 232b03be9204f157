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

// Package pldmd wires the host PDR synchronization engine to NATS and runs it.
package pldmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/carverauto/pldmd/pkg/eventloop"
	"github.com/carverauto/pldmd/pkg/hostpdr"
	"github.com/carverauto/pldmd/pkg/inventory"
	"github.com/carverauto/pldmd/pkg/lifecycle"
	"github.com/carverauto/pldmd/pkg/logger"
	"github.com/carverauto/pldmd/pkg/metrics"
	"github.com/carverauto/pldmd/pkg/models"
	"github.com/carverauto/pldmd/pkg/natsutil"
	"github.com/carverauto/pldmd/pkg/pdr"
	"github.com/carverauto/pldmd/pkg/pldm"
	"github.com/carverauto/pldmd/pkg/requester"
	"github.com/carverauto/pldmd/pkg/transport"
)

const (
	defaultQueueSize   = 1024
	snapshotWaitPeriod = 5 * time.Second
	snapshotKey        = "repository"
)

var (
	errConfigNil          = errors.New("pldmd configuration is required")
	errSnapshotPathNeeded = errors.New("neither snapshot_path nor snapshot_bucket is configured")
	errSnapshotTimeout    = errors.New("timed out waiting for the event loop")
)

// Server owns the NATS connection, the event loop and the host PDR handler.
type Server struct {
	cfg    *models.PLDMDConfig
	logger logger.Logger

	nc      *nats.Conn
	loop    *eventloop.Loop
	bridge  *transport.Bridge
	req     *requester.Requester
	repo    *pdr.Repository
	handler *hostpdr.Handler
	kv      *natsutil.KVStore

	tracer  *sdktrace.TracerProvider
	hostSub *nats.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer connects to NATS and builds every component from cfg. The
// returned server does nothing until Start is called.
func NewServer(ctx context.Context, cfg *models.PLDMDConfig, log logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errConfigNil
	}

	if cfg.Metrics != nil {
		if _, err := metrics.InitializeMetrics(ctx, *cfg.Metrics); err != nil &&
			!errors.Is(err, metrics.ErrOTelMetricsDisabled) {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	var otelCfg *logger.OTelConfig
	if cfg.Logging != nil {
		otelCfg = &cfg.Logging.OTel
	}

	tp, err := logger.InitializeTracing(ctx, logger.TracingConfig{ServiceName: "pldmd", OTel: otelCfg})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	nc, err := natsutil.ConnectWithSecurity(ctx, cfg.NATS.URL, cfg.NATS.Security,
		lifecycle.ComponentLogger(log, "nats"), nats.Name("pldmd"))
	if err != nil {
		_ = tp.Shutdown(ctx)

		return nil, err
	}

	s, err := newServer(ctx, cfg, nc, log)
	if err != nil {
		nc.Close()
		_ = tp.Shutdown(ctx)

		return nil, err
	}

	s.tracer = tp

	return s, nil
}

func newServer(ctx context.Context, cfg *models.PLDMDConfig, nc *nats.Conn, log logger.Logger) (*Server, error) {
	pub, err := eventPublisher(ctx, cfg, nc, log)
	if err != nil {
		return nil, err
	}

	invLog := lifecycle.ComponentLogger(log, "inventory")

	inv, err := inventory.NewService(pub, cfg.Events.SubjectPrefix, cfg.Associations, invLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create inventory service: %w", err)
	}

	reporter, err := inventory.NewErrorReporter(pub, cfg.Events.SubjectPrefix, invLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create error reporter: %w", err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	loop := eventloop.New(queueSize, lifecycle.ComponentLogger(log, "eventloop"))

	bridge, err := transport.NewBridge(nc, cfg.Transport.TxSubject, cfg.Transport.RxSubject,
		lifecycle.ComponentLogger(log, "transport"))
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	req, err := requester.New(loop, bridge, requester.Config{
		ResponseTimeout: time.Duration(cfg.ResponseTimeout),
	}, lifecycle.ComponentLogger(log, "requester"))
	if err != nil {
		return nil, fmt.Errorf("failed to create requester: %w", err)
	}

	repo := pdr.NewRepository(pdr.WithMaxRecords(cfg.MaxRecords))

	tree, err := SeedBMC(cfg, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to seed bmc records: %w", err)
	}

	names, err := cfg.EntityNameTable()
	if err != nil {
		return nil, err
	}

	handler, err := hostpdr.New(ctx, &hostpdr.Config{
		HostEID:            cfg.Terminus.HostEID,
		BMCEID:             cfg.Terminus.BMCEID,
		BMCTID:             cfg.Terminus.BMCTID,
		BMCTerminusHandle:  cfg.Terminus.BMCTerminusHandle,
		HostTerminusHandle: cfg.Terminus.HostTerminusHandle,
		RequestCount:       cfg.RequestCount,
		EntityNames:        names,
	}, hostpdr.Deps{
		Loop:       loop,
		Requester:  req,
		Inventory:  inv,
		Reporter:   reporter,
		Repository: repo,
		Tree:       tree,
	}, lifecycle.ComponentLogger(log, "hostpdr"))
	if err != nil {
		return nil, fmt.Errorf("failed to create host pdr handler: %w", err)
	}

	req.Handle(pldm.TypePlatform, pldm.CmdPlatformEventMessage, handler.HandlePlatformEvent)

	var kv *natsutil.KVStore

	if cfg.SnapshotBucket != "" {
		kv, err = natsutil.NewKVStore(ctx, nc, cfg.NATS.Domain, cfg.SnapshotBucket)
		if err != nil {
			return nil, err
		}
	}

	log.Info().
		Int("bmc_records", repo.Len()).
		Int("bmc_entities", tree.Len()).
		Uint8("host_eid", cfg.Terminus.HostEID).
		Msg("Seeded BMC repository")

	return &Server{
		cfg:     cfg,
		logger:  log,
		nc:      nc,
		loop:    loop,
		bridge:  bridge,
		req:     req,
		repo:    repo,
		handler: handler,
		kv:      kv,
	}, nil
}

func eventPublisher(ctx context.Context, cfg *models.PLDMDConfig, nc *nats.Conn, log logger.Logger) (inventory.Publisher, error) {
	if !cfg.Events.Enabled {
		log.Warn().Msg("Event publishing disabled; inventory updates are only logged")

		return &logPublisher{logger: lifecycle.ComponentLogger(log, "events")}, nil
	}

	pub, err := natsutil.CreateEventPublisherWithDomain(ctx, nc, cfg.NATS.Domain, cfg.Events,
		lifecycle.ComponentLogger(log, "events"))
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	return pub, nil
}

// Start runs the event loop and subscribes to the transport and host state
// subjects.
func (s *Server) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if err := s.loop.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("Event loop exited")
		}
	}()

	if err := s.bridge.Start(s.req.Deliver); err != nil {
		cancel()

		return fmt.Errorf("failed to start transport: %w", err)
	}

	sub, err := s.nc.Subscribe(s.cfg.Transport.HostStateSubject, s.onHostState)
	if err != nil {
		cancel()

		return fmt.Errorf("failed to subscribe to %s: %w", s.cfg.Transport.HostStateSubject, err)
	}

	s.hostSub = sub

	s.logger.Info().Str("host_state_subject", s.cfg.Transport.HostStateSubject).Msg("pldmd started")

	return nil
}

func (s *Server) onHostState(m *nats.Msg) {
	state, err := hostpdr.ParseHostState(string(m.Data))
	if err != nil {
		s.logger.Warn().Err(err).Str("subject", m.Subject).Msg("Ignoring host state message")

		return
	}

	if err := s.loop.Post(func() { s.handler.HostStateChanged(state) }); err != nil {
		s.logger.Error().Err(err).Str("state", string(state)).Msg("Dropped host state change")
	}
}

// WriteSnapshot captures the repository on the event loop and writes it to
// the configured snapshot path and bucket.
func (s *Server) WriteSnapshot(ctx context.Context) error {
	if s.cfg.SnapshotPath == "" && s.kv == nil {
		return errSnapshotPathNeeded
	}

	type result struct {
		data []byte
		err  error
	}

	done := make(chan result, 1)

	if err := s.loop.Post(func() {
		var buf bytes.Buffer

		err := s.repo.Snapshot(&buf)
		done <- result{data: buf.Bytes(), err: err}
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, snapshotWaitPeriod)
	defer cancel()

	select {
	case <-ctx.Done():
		return errSnapshotTimeout
	case r := <-done:
		if r.err != nil {
			return r.err
		}

		return s.storeSnapshot(ctx, r.data)
	}
}

func (s *Server) storeSnapshot(ctx context.Context, data []byte) error {
	if s.cfg.SnapshotPath != "" {
		if err := writeFileAtomic(s.cfg.SnapshotPath, data); err != nil {
			return err
		}

		s.logger.Info().Str("path", s.cfg.SnapshotPath).Int("bytes", len(data)).Msg("Wrote PDR snapshot")
	}

	if s.kv != nil {
		rev, err := s.kv.Put(ctx, snapshotKey, data)
		if err != nil {
			return err
		}

		s.logger.Info().Str("bucket", s.cfg.SnapshotBucket).Uint64("revision", rev).Msg("Stored PDR snapshot")
	}

	return nil
}

// Stop unsubscribes, stops the event loop and closes the NATS connection.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error

	if s.hostSub != nil {
		if err := s.hostSub.Unsubscribe(); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe host state: %w", err))
		}
	}

	if err := s.bridge.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.loop.Stop()
	s.wg.Wait()

	if err := s.nc.Drain(); err != nil {
		errs = append(errs, fmt.Errorf("drain nats: %w", err))
	}

	if err := metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown metrics: %w", err))
	}

	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}

	s.logger.Info().Msg("pldmd stopped")

	return errors.Join(errs...)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("rename snapshot: %w", err)
	}

	return nil
}

// logPublisher stands in for JetStream when event publishing is disabled.
type logPublisher struct {
	logger logger.Logger
}

func (p *logPublisher) Publish(_ context.Context, subject, eventType string, data any) error {
	p.logger.Debug().Str("subject", subject).Str("type", eventType).Interface("data", data).Msg("Event not published")

	return nil
}
