package instance

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestInstance(t *testing.T, names ...string) *Instance {
	t.Helper()
	in := New(NewPage("ostruka", "welcome"))
	for _, name := range names {
		require.NoError(t, in.Add(NewPage(name)))
	}
	return in
}

func TestAddPreservesInsertionOrder(t *testing.T) {
	in := newTestInstance(t, "alice", "#team", "bob")

	require.Equal(t, []string{"ostruka", "alice", "#team", "bob"}, in.Names())
	require.Equal(t, 0, in.Current())
}

func TestAddDuplicateIsRejected(t *testing.T) {
	in := newTestInstance(t, "alice")

	err := in.Add(NewPage("alice", "other"))
	require.ErrorIs(t, err, ErrDuplicateName)
	require.Equal(t, []string{"ostruka", "alice"}, in.Names())

	require.NoError(t, in.SetCurrent(1))
	require.Empty(t, in.Chat())
}

func TestNamesPlaceholderWhenEmpty(t *testing.T) {
	require.Equal(t, []string{""}, New(nil).Names())
}

func TestSetCurrentBounds(t *testing.T) {
	in := newTestInstance(t, "alice", "bob")

	for index := -2; index < 6; index++ {
		t.Run(fmt.Sprintf("index %d", index), func(t *testing.T) {
			err := in.SetCurrent(index)
			if index >= 0 && index < 3 {
				require.NoError(t, err)
				require.Equal(t, index, in.Current())
				return
			}
			require.ErrorIs(t, err, ErrIndexOutOfRange)
		})
	}
}

func TestNextPageCycles(t *testing.T) {
	in := newTestInstance(t)
	in.NextPage()
	require.Equal(t, 0, in.Current())

	require.NoError(t, in.Add(NewPage("alice")))
	require.NoError(t, in.Add(NewPage("bob")))
	var seen []int
	for i := 0; i < 4; i++ {
		in.NextPage()
		seen = append(seen, in.Current())
	}
	require.Equal(t, []int{1, 2, 0, 1}, seen)
}

func TestAppendLineSplitsLineBreaks(t *testing.T) {
	in := newTestInstance(t, "alice")

	in.AppendLine("one\ntwo\r\nthree")
	require.Equal(t, []string{"welcome", "one", "two", "three"}, in.Chat())

	require.NoError(t, in.AppendLineAt(1, "hello"))
	require.ErrorIs(t, in.AppendLineAt(5, "nope"), ErrIndexOutOfRange)

	require.NoError(t, in.SetCurrent(1))
	require.Equal(t, []string{"hello"}, in.Chat())
}

func TestAddErrTargetsCurrentPage(t *testing.T) {
	in := newTestInstance(t, "alice")
	require.NoError(t, in.SetCurrent(1))

	in.AddErr("boom")
	require.Equal(t, []string{"[ERR]: boom"}, in.Chat())
}

func TestRouteIncoming(t *testing.T) {
	in := newTestInstance(t, "alice", "#team")

	d := in.RouteIncoming("alice", "me", "hi")
	require.Equal(t, Delivery{Index: 1, Page: "alice"}, d)

	d = in.RouteIncoming("bob", "#team", "morning")
	require.Equal(t, Delivery{Index: 2, Page: "#team"}, d)

	d = in.RouteIncoming("carol", "me", "first\nsecond")
	require.Equal(t, Delivery{Index: 3, Page: "carol", Created: true}, d)

	d = in.RouteIncoming("dave", "#ops", "paging")
	require.Equal(t, Delivery{Index: 4, Page: "#ops", Created: true}, d)

	require.Equal(t, []string{"ostruka", "alice", "#team", "carol", "#ops"}, in.Names())

	require.NoError(t, in.SetCurrent(2))
	require.Equal(t, []string{"[bob]: morning"}, in.Chat())
	require.NoError(t, in.SetCurrent(3))
	require.Equal(t, []string{"[carol]: first", "second"}, in.Chat())
	require.NoError(t, in.SetCurrent(4))
	require.Equal(t, []string{"[dave]: paging"}, in.Chat())

	d = in.RouteIncoming("dave", "#ops", "again")
	require.True(t, d.Current)
	require.False(t, d.Created)
	require.Equal(t, 5, in.Len())
}

func TestRemoveCurrentHomeIsProtected(t *testing.T) {
	in := newTestInstance(t, "alice")

	_, err := in.RemoveCurrent()
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.Equal(t, []string{"ostruka", "alice"}, in.Names())
	require.Equal(t, 0, in.Current())

	// A lone home page is protected as well.
	_, err = New(NewPage("ostruka")).RemoveCurrent()
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRemoveCurrentReanchors(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		wantRemoved string
		wantNames   []string
		wantCurrent string
	}{
		{name: "middle page moves to follower", current: 1, wantRemoved: "a", wantNames: []string{"home", "b", "c"}, wantCurrent: "b"},
		{name: "second to last", current: 2, wantRemoved: "b", wantNames: []string{"home", "a", "c"}, wantCurrent: "c"},
		{name: "last page wraps home", current: 3, wantRemoved: "c", wantNames: []string{"home", "a", "b"}, wantCurrent: "home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := New(NewPage("home"))
			for _, name := range []string{"a", "b", "c"} {
				require.NoError(t, in.Add(NewPage(name)))
			}
			require.NoError(t, in.SetCurrent(tt.current))

			removed, err := in.RemoveCurrent()
			require.NoError(t, err)
			require.Equal(t, tt.wantRemoved, removed)
			require.Equal(t, tt.wantNames, in.Names())
			require.Equal(t, tt.wantCurrent, in.CurrentName())
			require.Less(t, in.Current(), in.Len())
		})
	}
}

func TestRosterMembership(t *testing.T) {
	in := newTestInstance(t, "#team", "alice")
	require.NoError(t, in.SetCurrent(1))

	members, state := in.Roster()
	require.Nil(t, members)
	require.Equal(t, RosterAbsent, state)

	in.RemoveRosterMembers("#team", []string{"ghost"})
	_, state = in.Roster()
	require.Equal(t, RosterAbsent, state)

	in.AddRosterMembers("#team", []string{"bob", "alice"})
	in.AddRosterMembers("#team", []string{"bob"})
	members, state = in.Roster()
	require.Equal(t, []string{"alice", "bob"}, members)
	require.Equal(t, RosterPopulated, state)

	in.RemoveRosterMembers("#team", []string{"ghost", "alice", "bob"})
	members, state = in.Roster()
	require.Empty(t, members)
	require.Equal(t, RosterEmpty, state)

	// Unknown pages are ignored.
	in.AddRosterMembers("#nowhere", []string{"bob"})
	require.Equal(t, []string{"ostruka", "#team", "alice"}, in.Names())
}

func TestScrollFloorsAtZero(t *testing.T) {
	in := newTestInstance(t)

	in.ScrollDown()
	start, end := in.DisplayRange(10)
	require.Equal(t, 0, start)
	require.Equal(t, 1, end)

	in.ScrollUp()
	in.ScrollUp()
	in.ScrollReset()
	in.ScrollDown()
	in.mu.Lock()
	require.Equal(t, 0, in.pages[0].Scroll())
	in.mu.Unlock()
}

func TestDisplayRangeClampsStoredScroll(t *testing.T) {
	in := New(NewPage("home"))
	for i := 0; i < 49; i++ {
		in.AppendLine(fmt.Sprintf("line %d", i))
	}
	for i := 0; i < 100; i++ {
		in.ScrollUp()
	}

	start, end := in.DisplayRange(20)
	require.Equal(t, 0, start)
	require.Equal(t, 18, end)

	// One step down is visible immediately because the offset was clamped.
	in.ScrollDown()
	start, end = in.DisplayRange(20)
	require.Equal(t, 1, start)
	require.Equal(t, 19, end)
}

func TestLinesClampsStaleRange(t *testing.T) {
	in := newTestInstance(t, "alice")
	for i := 0; i < 30; i++ {
		in.AppendLine("x")
	}
	start, end := in.DisplayRange(10)

	require.NoError(t, in.SetCurrent(1))
	require.Empty(t, in.Lines(start, end))
	require.Empty(t, in.Lines(-4, -1))
}

func TestConcurrentLoopsShareInstance(t *testing.T) {
	in := newTestInstance(t, "#team")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			in.RouteIncoming(fmt.Sprintf("user%d", i%7), "me", "hi")
			in.AddRosterMembers("#team", []string{"bob"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			in.NextPage()
			start, end := in.DisplayRange(12)
			_ = in.Lines(start, end)
			_ = in.Names()
			_, _ = in.Roster()
			if i%50 == 0 {
				_, _ = in.RemoveCurrent()
			}
		}
	}()
	wg.Wait()

	require.Less(t, in.Current(), in.Len())
	require.Equal(t, "ostruka", in.Names()[0])
}

func TestRouteIncomingNeverUsesHomePage(t *testing.T) {
	in := newTestInstance(t)

	d := in.RouteIncoming("ostruka", "me", "hello")
	require.Equal(t, Delivery{Index: 1, Page: "ostruka", Created: true}, d)
	require.Equal(t, []string{"welcome"}, in.Chat())

	d = in.RouteIncoming("ostruka", "me", "again")
	require.Equal(t, 1, d.Index)
	require.False(t, d.Created)
	require.Equal(t, 2, in.Len())

	require.NoError(t, in.SetCurrent(1))
	require.Equal(t, []string{"[ostruka]: hello", "[ostruka]: again"}, in.Chat())

	// Joining a peer named like home opens a conversation page as well.
	other := newTestInstance(t)
	require.NoError(t, other.Add(NewPage("ostruka")))
	require.ErrorIs(t, other.Add(NewPage("ostruka")), ErrDuplicateName)
	require.Equal(t, []string{"ostruka", "ostruka"}, other.Names())
}
