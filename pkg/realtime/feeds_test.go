package realtime

import (
	"testing"
	"time"

	"github.com/rubiojr/quill/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestChannelNames(t *testing.T) {
	require.Equal(t, "conversation-42", ConversationChannel("42"))
	require.Equal(t, "user-7", UserChannel("7"))
}

func TestSubscribeConversation(t *testing.T) {
	m, fc, _ := newTestManager(t, 5*time.Second)

	var got []models.Message
	sub := m.SubscribeConversation("42", func(msg models.Message) { got = append(got, msg) })
	require.True(t, sub.Live())
	require.Equal(t, "conversation-42", sub.Channel())

	fc.t.emit("conversation-42", EventNewMessage, msgJSON)
	require.Len(t, got, 1)
	require.Equal(t, "m1", got[0].ID)
	require.Equal(t, "u2", got[0].SenderID)

	require.False(t, m.SubscribeConversation("", func(models.Message) {}).Live())
}

func TestSubscribeUserOptionalCallbacks(t *testing.T) {
	m, fc, clock := newTestManager(t, 5*time.Second)

	var notes []string
	us := m.SubscribeUser("7", UserHandlers{
		OnMessageNotification: func(n MessageNotification) { notes = append(notes, n.ConversationID) },
	})
	require.True(t, us.Live())
	_, refs := m.ChannelState("user-7")
	require.Equal(t, 2, refs)

	fc.t.emit("user-7", EventMessageNotification, `{"conversationId":"42"}`)
	require.True(t, fc.t.emit("user-7", EventNewConversation, `{"conversationId":"99"}`))
	require.Equal(t, []string{"42"}, notes)

	var convs []string
	us.Update(UserHandlers{
		OnNewConversation: func(c NewConversation) { convs = append(convs, c.ConversationID) },
	})
	fc.t.emit("user-7", EventMessageNotification, `{"conversationId":"43"}`)
	fc.t.emit("user-7", EventNewConversation, `{"conversationId":"100"}`)
	require.Equal(t, []string{"42"}, notes)
	require.Equal(t, []string{"100"}, convs)

	us.Unsubscribe()
	us.Unsubscribe()
	state, refs := m.ChannelState("user-7")
	require.Equal(t, PendingTeardown, state)
	require.Zero(t, refs)

	clock.Advance(5 * time.Second)
	_, unsubs := fc.t.counts("user-7")
	require.Equal(t, 1, unsubs)
}

func TestSubscribeUserWithoutID(t *testing.T) {
	m, fc, _ := newTestManager(t, 5*time.Second)
	us := m.SubscribeUser("", UserHandlers{})
	require.False(t, us.Live())
	us.Update(UserHandlers{})
	us.Unsubscribe()
	require.Zero(t, fc.calls)
}
