package checkpoint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/penflowhq/penflow/internal/collab"
)

type staticSource []collab.SessionSnapshot

func (s staticSource) ActiveDocuments() []collab.SessionSnapshot { return s }

type recordingSink struct {
	mu    sync.Mutex
	seen  map[string]int
	fail  map[string]error
	calls int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{seen: make(map[string]int), fail: make(map[string]error)}
}

func (s *recordingSink) Checkpoint(ctx context.Context, id, content string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.fail[id]; err != nil {
		return err
	}
	s.seen[id] = version
	return nil
}

func TestRunOnceFlushesEverySession(t *testing.T) {
	source := staticSource{
		{DocID: "doc-1", Content: "a", Version: 3},
		{DocID: "doc-2", Content: "b", Version: 7},
	}
	sink := newRecordingSink()

	c, err := New(source, sink, time.Second)
	require.NoError(t, err)

	require.NoError(t, c.RunOnce(context.Background()))
	require.Equal(t, 3, sink.seen["doc-1"])
	require.Equal(t, 7, sink.seen["doc-2"])
}

func TestRunOnceAggregatesFailures(t *testing.T) {
	source := staticSource{
		{DocID: "doc-bad", Version: 1},
		{DocID: "doc-good", Version: 2},
	}
	sink := newRecordingSink()
	sink.fail["doc-bad"] = errors.New("disk full")

	c, err := New(source, sink, time.Second)
	require.NoError(t, err)

	err = c.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "doc-bad")

	// The good document still got flushed.
	require.Equal(t, 2, sink.seen["doc-good"])
}

func TestStopPerformsFinalFlush(t *testing.T) {
	source := staticSource{{DocID: "doc-1", Content: "x", Version: 1}}
	sink := newRecordingSink()

	c, err := New(source, sink, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, c.Stop(context.Background()))

	require.Equal(t, 1, sink.seen["doc-1"])
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	sink := newRecordingSink()
	_, err := New(nil, sink, time.Second)
	require.Error(t, err)

	_, err = New(staticSource{}, nil, time.Second)
	require.Error(t, err)
}
