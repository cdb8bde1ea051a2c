package logs

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emcomm-tools/et-launcher/internal/testutil"
	"github.com/emcomm-tools/et-launcher/pkg/events"
	"github.com/emcomm-tools/et-launcher/pkg/filters"
)

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(Entry{SessionID: "a", Content: fmt.Sprintf("line %d", i)})
	}

	assert.Equal(t, 3, s.Len())
	got := s.Recent("", 0)
	require.Len(t, got, 3)
	assert.Equal(t, "line 2", got[0].Content)
	assert.Equal(t, "line 4", got[2].Content)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestRecentFiltersAndLimits(t *testing.T) {
	s := NewStore(10)
	s.Add(Entry{SessionID: "a", Content: "a1"})
	s.Add(Entry{SessionID: "b", Content: "b1"})
	s.Add(Entry{SessionID: "a", Content: "a2"})
	s.Add(Entry{SessionID: "a", Content: "a3"})

	got := s.Recent("a", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "a2", got[0].Content)
	assert.Equal(t, "a3", got[1].Content)

	assert.Len(t, s.Recent("b", 0), 1)
	assert.Empty(t, s.Recent("c", 0))

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestRecordLaunchEvents(t *testing.T) {
	s := NewStore(10)
	s.Record(events.Event{Type: events.LaunchStarted, SessionID: "x", Data: map[string]interface{}{"target": "fldigi", "pid": 42}})
	s.Record(events.Event{Type: events.LaunchOutput, SessionID: "x", Data: map[string]interface{}{"target": "fldigi", "line": "ready"}})
	s.Record(events.Event{Type: events.LaunchFailed, SessionID: "x", Data: map[string]interface{}{"target": "fldigi", "error": "boom"}})
	s.Record(events.Event{Type: events.ConsoleVisibilityChanged, Data: map[string]interface{}{"visible": true}})

	got := s.Recent("x", 0)
	require.Len(t, got, 3)
	assert.Equal(t, "started (pid 42)", got[0].Content)
	assert.Equal(t, "ready", got[1].Content)
	assert.True(t, got[2].IsError)
	assert.Equal(t, "fldigi", got[2].Target)
}

func TestAttach(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Shutdown()

	s := NewStore(10)
	detach := s.Attach(bus)
	bus.Publish(events.Event{Type: events.LaunchCompleted, SessionID: "y", Data: map[string]interface{}{"target": "et-user", "exitCode": 0}})

	testutil.RequireEventually(t, 2*time.Second, func() bool { return s.Len() == 1 }, "completion recorded")
	assert.Equal(t, "exited with status 0", s.Recent("y", 0)[0].Content)

	detach()
	bus.Publish(events.Event{Type: events.LaunchCompleted, SessionID: "z"})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, s.Len())
}

func TestAttachKeepsSessionOrder(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Shutdown()

	s := NewStore(200)
	defer s.Attach(bus)()

	bus.Publish(events.Event{Type: events.LaunchStarted, SessionID: "s", Data: map[string]interface{}{"pid": 7}})
	for i := 0; i < 100; i++ {
		bus.Publish(events.Event{Type: events.LaunchOutput, SessionID: "s", Data: map[string]interface{}{"line": i}})
	}
	bus.Publish(events.Event{Type: events.RadioInfo, Data: map[string]interface{}{"radio": "NO-RADIO"}})
	bus.PublishSync(events.Event{Type: events.LaunchCompleted, SessionID: "s", Data: map[string]interface{}{"exitCode": 0}})

	got := s.Recent("s", 0)
	require.Len(t, got, 102)
	assert.Equal(t, "started (pid 7)", got[0].Content)
	for i := 0; i < 100; i++ {
		require.Equal(t, fmt.Sprint(i), got[i+1].Content)
	}
	assert.Equal(t, "exited with status 0", got[101].Content)
}

func TestSearch(t *testing.T) {
	s := NewStore(10)
	s.Add(Entry{SessionID: "a", Content: "VARA FM modem listening"})
	s.Add(Entry{SessionID: "a", Content: "connected to KX4Z"})
	s.Add(Entry{SessionID: "b", Content: "vara hf ready"})

	f, err := filters.Parse("vara")
	require.NoError(t, err)
	assert.Len(t, s.Search("", f, 0), 2)
	assert.Len(t, s.Search("a", f, 0), 1)

	f, err = filters.Parse("re:^connected")
	require.NoError(t, err)
	got := s.Search("", f, 0)
	require.Len(t, got, 1)
	assert.Equal(t, "connected to KX4Z", got[0].Content)
}
