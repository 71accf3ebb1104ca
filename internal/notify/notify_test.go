package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type mockNotification struct {
	titles   []string
	messages []string
	err      error
}

func (m *mockNotification) notify(title, message string, _ any) error {
	m.titles = append(m.titles, title)
	m.messages = append(m.messages, message)
	return m.err
}

func withMock(t *testing.T, m *mockNotification) {
	t.Helper()
	prev := notifyFunc
	notifyFunc = m.notify
	t.Cleanup(func() { notifyFunc = prev })
}

func TestDesktopNotify(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		message     string
		mockErr     error
		wantTitle   string
		wantMessage string
	}{
		{name: "plain", title: "ostruka: #team", message: "[bob]: hi", wantTitle: "ostruka: #team", wantMessage: "[bob]: hi"},
		{name: "empty title", title: "  ", message: "hi", wantTitle: "ostruka", wantMessage: "hi"},
		{name: "trims message", title: "t", message: "  hi  ", wantTitle: "t", wantMessage: "hi"},
		{name: "error is returned", title: "t", message: "m", mockErr: errors.New("no dbus"), wantTitle: "t", wantMessage: "m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockNotification{err: tt.mockErr}
			withMock(t, mock)

			err := NewDesktop(zerolog.Nop()).Notify(tt.title, tt.message)
			if tt.mockErr != nil {
				require.ErrorIs(t, err, tt.mockErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, []string{tt.wantTitle}, mock.titles)
			require.Equal(t, []string{tt.wantMessage}, mock.messages)
		})
	}
}

func TestDesktopNotifyTruncatesLongBodies(t *testing.T) {
	mock := &mockNotification{}
	withMock(t, mock)

	require.NoError(t, NewDesktop(zerolog.Nop()).Notify("t", strings.Repeat("x", 500)))
	require.Len(t, mock.messages, 1)
	require.LessOrEqual(t, len(mock.messages[0]), maxBodyWidth)
	require.True(t, strings.HasSuffix(mock.messages[0], truncatedTail))
}

func TestNop(t *testing.T) {
	require.NoError(t, Nop{}.Notify("t", "m"))
}

func TestMessageTitle(t *testing.T) {
	require.Equal(t, "ostruka: #team", MessageTitle("#team"))
}
