package monitor

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubSizer struct{ n int }

func (s stubSizer) Size() (int, error) { return s.n, nil }

type stubCounter struct{ n int }

func (s stubCounter) Len() int { return s.n }

func TestRefreshCollectsStatus(t *testing.T) {
	m := New(Targets{
		Postgres:  stubPinger{},
		Redis:     stubPinger{err: errors.New("down")},
		Buffer:    stubSizer{n: 3},
		Dashboard: stubCounter{n: 7},
	}, 0, nil)

	status := m.Refresh()
	if !status.PostgreSQL || status.Redis {
		t.Fatalf("unexpected connectivity: %+v", status)
	}
	if !status.Buffer || status.BufferSize != 3 || status.DashboardEntries != 7 {
		t.Fatalf("unexpected sizes: %+v", status)
	}
	if !m.IsOnline() {
		t.Fatal("expected online while postgres answers")
	}
}

func TestMissingTargetsReportDown(t *testing.T) {
	m := New(Targets{}, 0, nil)
	status := m.Refresh()
	if status.PostgreSQL || status.Redis || status.Buffer {
		t.Fatalf("expected everything down, got %+v", status)
	}
	if m.IsOnline() {
		t.Fatal("expected offline")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m := New(Targets{Postgres: stubPinger{}}, 0, nil)
	m.Start()
	m.Stop()
	m.Stop()
}

func TestStatusDownListsUnreachableComponents(t *testing.T) {
	status := Status{PostgreSQL: true, Buffer: true}
	if !status.Ready() {
		t.Fatal("expected ready while postgres answers")
	}
	if got := status.Down(); !reflect.DeepEqual(got, []string{"redis"}) {
		t.Fatalf("unexpected down list %v", got)
	}
	if got := (Status{}).Down(); !reflect.DeepEqual(got, []string{"postgresql", "redis", "buffer"}) {
		t.Fatalf("unexpected down list %v", got)
	}
}

func TestRefreshLogsOnlyConnectivityChanges(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	redis := &flakyPinger{}
	sizer := &growingSizer{}
	m := New(Targets{Postgres: stubPinger{}, Redis: redis, Buffer: sizer}, time.Minute, zap.New(core))

	m.Refresh()
	m.Refresh()
	if n := logs.FilterMessage("connection status changed").Len(); n != 0 {
		t.Fatalf("buffer growth alone must not log, got %d entries", n)
	}

	redis.err = errors.New("connection refused")
	m.Refresh()
	entries := logs.FilterMessage("connection status changed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one change entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["redis"] != false {
		t.Fatalf("unexpected fields %v", entries[0].ContextMap())
	}
}

type flakyPinger struct{ err error }

func (f *flakyPinger) Ping(context.Context) error { return f.err }

type growingSizer struct{ n int }

func (g *growingSizer) Size() (int, error) {
	g.n++
	return g.n, nil
}
