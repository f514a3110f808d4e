// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// callLog records lifecycle calls of several services in the order they
// happened, as "<service>.<stage>"
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name, stage string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name+"."+stage)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(name, stage string) int {
	n := 0
	for _, c := range l.list() {
		if c == name+"."+stage {
			n++
		}
	}
	return n
}

// stage is the shared state behind the fake components below. Each fake
// exposes only the lifecycle methods of the interfaces it stands for.
type stage struct {
	name string
	log  *callLog

	initErr     error
	shutdownErr error
	run         func(ctx context.Context) error
}

func (s *stage) Name() string { return s.name }

func (s *stage) doInit() error {
	s.log.add(s.name, "init")
	return s.initErr
}

func (s *stage) doRun(ctx context.Context) error {
	s.log.add(s.name, "run")
	if s.run == nil {
		return nil
	}
	return s.run(ctx)
}

func (s *stage) doShutdown() error {
	s.log.add(s.name, "shutdown")
	return s.shutdownErr
}

// plainService implements only Service
type plainService struct{ *stage }

type initOnly struct{ *stage }

func (s initOnly) Init() error { return s.doInit() }

type initShutdown struct{ *stage }

func (s initShutdown) Init() error     { return s.doInit() }
func (s initShutdown) Shutdown() error { return s.doShutdown() }

type runOnly struct{ *stage }

func (s runOnly) Run(ctx context.Context) error { return s.doRun(ctx) }

type runShutdown struct{ *stage }

func (s runShutdown) Run(ctx context.Context) error { return s.doRun(ctx) }
func (s runShutdown) Shutdown() error               { return s.doShutdown() }

func newStage(log *callLog, name string) *stage {
	return &stage{name: name, log: log}
}

// blockUntilDone is a run function for long-lived services
func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// bufferLogger returns a debug level text logger writing to the returned buffer
func bufferLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
