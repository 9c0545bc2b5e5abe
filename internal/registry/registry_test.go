package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/heimdallr-client/internal/artifact"
	"github.com/danmuck/heimdallr-client/internal/testutil/testlog"
)

func writeDescriptor(t *testing.T, dir, name string, desc any) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir registry: %v", err)
	}
	data, err := json.Marshal(desc)
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	return path
}

func TestFindMissingDirectory(t *testing.T) {
	testlog.Start(t)
	reg := New(filepath.Join(t.TempDir(), "absent"))
	_, err := reg.Find(context.Background(), artifact.Reference{Name: "a.i64", Hash: "aa"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindFirstMatchInNameOrder(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	desc := Descriptor{PID: 1, Address: "127.0.0.1:1000", FileName: "test.i64", FileHash: "b058"}
	second := desc
	second.PID = 2
	second.Address = "127.0.0.1:2000"
	writeDescriptor(t, dir, "b.json", second)
	firstPath := writeDescriptor(t, dir, "a.json", desc)

	ep, err := New(dir).Find(context.Background(), artifact.Reference{Name: "test.i64", Hash: "b058"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ep.Path != firstPath || ep.Address != "127.0.0.1:1000" {
		t.Fatalf("expected first descriptor, got %+v", ep)
	}
}

func TestFindSkipsMalformedAndMismatched(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "0-garbage.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "1-empty.json"), []byte(""), 0o644); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	writeDescriptor(t, dir, "2-noaddr.json", Descriptor{PID: 3, FileName: "x.i64", FileHash: "ff"})
	writeDescriptor(t, dir, "3-othername.json", Descriptor{PID: 4, Address: "127.0.0.1:1", FileName: "y.i64", FileHash: "ff"})
	writeDescriptor(t, dir, "4-otherhash.json", Descriptor{PID: 5, Address: "127.0.0.1:2", FileName: "x.i64", FileHash: "ee"})
	want := writeDescriptor(t, dir, "5-good.json", Descriptor{PID: 6, Address: "127.0.0.1:3", FileName: "x.i64", FileHash: "FF"})

	ep, err := New(dir).Find(context.Background(), artifact.Reference{Name: "x.i64", Hash: "ff"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ep.Path != want {
		t.Fatalf("unexpected match: %s", ep.Path)
	}
}

func TestFindCompatModeIgnoresName(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	writeDescriptor(t, dir, "a.json", Descriptor{PID: 1, Address: "127.0.0.1:9", FileName: "whatever.idb", FileHash: "aa"})
	if _, err := New(dir).Find(context.Background(), artifact.Reference{Hash: "aa"}); err != nil {
		t.Fatalf("compat find: %v", err)
	}
}

func TestEvictRemovesBackingFile(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	reg := New(dir)
	ep, err := reg.Publish(Descriptor{PID: 7, Address: "127.0.0.1:5555", FileName: "e.i64", FileHash: "01"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := reg.Evict(ep); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if _, err := os.Stat(ep.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected descriptor removed, stat err=%v", err)
	}
	if err := reg.Evict(ep); err != nil {
		t.Fatalf("second evict should be a no-op: %v", err)
	}
	if _, err := reg.Find(context.Background(), artifact.Reference{Name: "e.i64", Hash: "01"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after evict, got %v", err)
	}
}

func TestPublishRejectsInvalid(t *testing.T) {
	_, err := New(t.TempDir()).Publish(Descriptor{PID: 1, Address: "nohostport", FileHash: "aa"})
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
	}
}

func TestListSkipsInvalid(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	writeDescriptor(t, dir, "a.json", Descriptor{PID: 1, Address: "127.0.0.1:1", FileName: "a.i64", FileHash: "aa"})
	writeDescriptor(t, dir, "b.json", Descriptor{PID: 2, FileName: "b.i64", FileHash: "bb"})
	list, err := New(dir).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].FileName != "a.i64" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestWaitFindsLateDescriptor(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	reg := New(dir)
	ref := artifact.Reference{Name: "late.i64", Hash: "cafe"}

	go func() {
		time.Sleep(150 * time.Millisecond)
		_, _ = reg.Publish(Descriptor{PID: 9, Address: "127.0.0.1:4242", FileName: "late.i64", FileHash: "cafe"})
	}()

	ep, err := reg.Wait(context.Background(), ref, WaitOptions{Timeout: 5 * time.Second, Interval: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ep.Address != "127.0.0.1:4242" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestWaitTimesOut(t *testing.T) {
	testlog.Start(t)
	reg := New(filepath.Join(t.TempDir(), "never"))
	start := time.Now()
	_, err := reg.Wait(context.Background(), artifact.Reference{Name: "x.i64", Hash: "00"}, WaitOptions{Timeout: 200 * time.Millisecond, Interval: 20 * time.Millisecond})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("wait overran its deadline: %v", time.Since(start))
	}
}

func TestWaitHonoursParentCancel(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(t.TempDir()).Wait(ctx, artifact.Reference{Hash: "00"}, WaitOptions{Timeout: time.Second, Interval: 10 * time.Millisecond})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
