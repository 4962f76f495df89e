package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
	"github.com/meetingbuddy/mbud/pkg/store/sqlite"
)

func testConfig(dir string) Config {
	return Config{
		Dir:          dir,
		Extensions:   []string{".wav", ".mp3"},
		SettleDelay:  50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := sqlite.Open(":memory:", logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

// startWatcher runs a watcher in the background and stops it at cleanup.
func startWatcher(t *testing.T, cfg Config, st store.Store, ingest IngestFunc) {
	t.Helper()

	w, err := New(cfg, st, ingest, logging.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func expectIngest(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case path := <-ch:
		return path
	case <-time.After(3 * time.Second):
		t.Fatal("ingest was never called")
		return ""
	}
}

func expectNoIngest(t *testing.T, ch <-chan string, wait time.Duration) {
	t.Helper()
	select {
	case path := <-ch:
		t.Fatalf("unexpected ingest of %s", path)
	case <-time.After(wait):
	}
}

func TestWatcher_IngestsNewRecording(t *testing.T) {
	dir := t.TempDir()
	ch := make(chan string, 4)
	ingest := func(ctx context.Context, path string) error {
		ch <- path
		return nil
	}
	startWatcher(t, testConfig(dir), newTestStore(t), ingest)

	audio := filepath.Join(dir, "standup.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF data"), 0o644))

	assert.Equal(t, audio, expectIngest(t, ch))
}

func TestWatcher_WaitsUntilFileStopsGrowing(t *testing.T) {
	dir := t.TempDir()
	ch := make(chan string, 4)
	var sizeAtIngest atomic.Int64
	ingest := func(ctx context.Context, path string) error {
		if info, err := os.Stat(path); err == nil {
			sizeAtIngest.Store(info.Size())
		}
		ch <- path
		return nil
	}

	cfg := testConfig(dir)
	cfg.SettleDelay = 100 * time.Millisecond
	startWatcher(t, cfg, newTestStore(t), ingest)

	// Simulate a recorder still flushing: four 5-byte chunks, 30ms apart.
	audio := filepath.Join(dir, "long.wav")
	f, err := os.Create(audio)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err = f.Write([]byte("chunk"))
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	expectIngest(t, ch)
	assert.Equal(t, int64(20), sizeAtIngest.Load(), "ingest sees the complete file")
}

func TestWatcher_IgnoresUnlistedExtensions(t *testing.T) {
	dir := t.TempDir()
	ch := make(chan string, 4)
	ingest := func(ctx context.Context, path string) error {
		ch <- path
		return nil
	}
	startWatcher(t, testConfig(dir), newTestStore(t), ingest)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("agenda"), 0o644))
	audio := filepath.Join(dir, "recording.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3"), 0o644))

	assert.Equal(t, audio, expectIngest(t, ch))
	expectNoIngest(t, ch, 200*time.Millisecond)
}

func TestWatcher_SkipsAlreadyIngestedPath(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t)
	ctx := context.Background()

	known := filepath.Join(dir, "already-done.wav")
	meeting, err := st.CreateMeeting(ctx, "already done", 0)
	require.NoError(t, err)
	require.NoError(t, st.EndMeeting(ctx, meeting.ID, known))

	ch := make(chan string, 4)
	ingest := func(ctx context.Context, path string) error {
		ch <- path
		return nil
	}
	startWatcher(t, testConfig(dir), st, ingest)

	require.NoError(t, os.WriteFile(known, []byte("RIFF"), 0o644))
	expectNoIngest(t, ch, 400*time.Millisecond)

	// The loop keeps running for fresh paths.
	fresh := filepath.Join(dir, "fresh.wav")
	require.NoError(t, os.WriteFile(fresh, []byte("RIFF"), 0o644))
	assert.Equal(t, fresh, expectIngest(t, ch))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil)
	assert.Error(t, err, "empty inbox dir is rejected")

	_, err = New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, nil, nil, nil)
	assert.Error(t, err, "nonexistent inbox dir is rejected")
}

func TestWaitSettled_FileVanished(t *testing.T) {
	w, err := New(testConfig(t.TempDir()), nil, nil, nil)
	require.NoError(t, err)
	defer w.fsw.Close()

	err = w.waitSettled(context.Background(), filepath.Join(t.TempDir(), "gone.wav"))
	assert.Error(t, err)
}

func TestWaitSettled_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	w, err := New(testConfig(dir), nil, nil, nil)
	require.NoError(t, err)
	defer w.fsw.Close()

	audio := filepath.Join(dir, "slow.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = w.waitSettled(ctx, audio)
	assert.ErrorIs(t, err, context.Canceled)
}
