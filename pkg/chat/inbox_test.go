package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/rubiojr/quill/pkg/models"
	"github.com/rubiojr/quill/pkg/realtime"
	"github.com/stretchr/testify/require"
)

func TestInboxNotificationPlaysAndRefreshes(t *testing.T) {
	m, ft := newTestManager(t)
	player := &countingPlayer{}
	lister := &fakeLister{convs: []models.Conversation{{ID: "42", Type: models.ConversationPrivate}}}

	var mu sync.Mutex
	var refreshes []Refresh
	in := NewInbox("A", InboxOptions{
		Sound:  player,
		Lister: lister,
		OnRefresh: func(r Refresh) {
			mu.Lock()
			defer mu.Unlock()
			refreshes = append(refreshes, r)
		},
	})
	defer in.Close()
	in.Attach(m)

	ft.emit("user-A", realtime.EventMessageNotification, `{"conversationId":"42","message":{"id":"m1","content":"yo","conversationId":"42"}}`)
	ft.emit("user-A", realtime.EventMessageNotification, `{"conversationId":"42"}`)
	ft.emit("user-A", realtime.EventNewConversation, `{"conversationId":"43"}`)
	in.Wait()

	require.EqualValues(t, 2, player.plays.Load())
	require.EqualValues(t, 3, in.Refreshes())
	require.EqualValues(t, 3, lister.calls.Load())
	require.Len(t, in.Conversations(), 1)

	require.Len(t, refreshes, 3)
	require.Equal(t, ReasonMessage, refreshes[0].Reason)
	require.Equal(t, "m1", refreshes[0].Message.ID)
	require.EqualValues(t, 1, refreshes[0].Seq)
	require.Equal(t, ReasonConversation, refreshes[2].Reason)
	require.Equal(t, "43", refreshes[2].ConversationID)
}

func TestInboxIgnoresEventsAfterClose(t *testing.T) {
	m, ft := newTestManager(t)
	player := &countingPlayer{}
	in := NewInbox("A", InboxOptions{Sound: player})
	in.Attach(m)
	in.Close()

	ft.emit("user-A", realtime.EventMessageNotification, `{"conversationId":"42"}`)
	require.Zero(t, player.plays.Load())
	require.Zero(t, in.Refreshes())

	state, refs := m.ChannelState("user-A")
	require.Equal(t, realtime.PendingTeardown, state)
	require.Zero(t, refs)
}

func TestInboxWithoutRealtime(t *testing.T) {
	m := realtime.NewManager(nil)
	in := NewInbox("A", InboxOptions{Lister: &fakeLister{convs: []models.Conversation{{ID: "1"}}}})
	in.Attach(m)
	defer in.Close()

	convs, err := in.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Len(t, in.Conversations(), 1)
}
