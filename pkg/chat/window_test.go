package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rubiojr/quill/pkg/models"
	"github.com/rubiojr/quill/pkg/optimistic"
	"github.com/rubiojr/quill/pkg/realtime"
	"github.com/stretchr/testify/require"
)

var (
	userA = models.User{ID: "A", Name: "Ana"}
	t0    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func newTestWindow(t *testing.T, svc Service, opts Options) *Window {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return t0 }
	}
	w := NewWindow("42", userA, svc, opts)
	t.Cleanup(func() {
		w.Close()
	})
	return w
}

func contents(w *Window) []string {
	var out []string
	for _, m := range w.Messages() {
		out = append(out, m.Content)
	}
	return out
}

func serverMsg(id, content, sender string) *models.Message {
	return &models.Message{
		ID:             id,
		Content:        content,
		Type:           models.MessageText,
		SenderID:       sender,
		ConversationID: "42",
		CreatedAt:      t0,
	}
}

func TestSendShowsMessageImmediately(t *testing.T) {
	svc := newFakeService()
	w := newTestWindow(t, svc, Options{})
	w.SetDraft("hello")

	tempID := w.Send(context.Background(), "hello", models.MessageText)

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, tempID, msgs[0].ID)
	require.True(t, optimistic.IsTemp(msgs[0].ID))
	require.True(t, w.Pending(tempID))
	require.Equal(t, "A", msgs[0].SenderID)
	require.Equal(t, t0, msgs[0].CreatedAt)
	require.Empty(t, w.Draft())

	call := svc.nextSend(t)
	require.Equal(t, "42", call.conversationID)
	require.Equal(t, tempID, call.req.ClientID)
	call.reply <- sendResult{msg: serverMsg("m1", "hello", "A")}
	w.Wait()
}

func TestSendIgnoresBlankContent(t *testing.T) {
	w := newTestWindow(t, newFakeService(), Options{})
	require.Empty(t, w.Send(context.Background(), "   ", models.MessageText))
	require.Empty(t, w.Messages())
}

func TestSendSuccessReplacesInPlace(t *testing.T) {
	svc := newFakeService()
	svc.history = []models.Message{*serverMsg("m2", "second", "B"), *serverMsg("m1", "first", "B")}
	svc.history[0].CreatedAt = t0.Add(time.Minute)
	w := newTestWindow(t, svc, Options{})
	require.NoError(t, w.Load(context.Background()))
	require.Equal(t, []string{"first", "second"}, contents(w))

	tempID := w.Send(context.Background(), "hello", models.MessageText)
	w.Receive(*serverMsg("m4", "late", "B"))
	require.Len(t, w.Messages(), 4)

	svc.nextSend(t).reply <- sendResult{msg: serverMsg("m3", "hello", "A")}
	w.Wait()

	msgs := w.Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, "m3", msgs[2].ID)
	require.False(t, w.Pending(tempID))
	require.Equal(t, "m4", msgs[3].ID)
}

func TestSendFailureRollsBack(t *testing.T) {
	svc := newFakeService()
	var mu sync.Mutex
	var errs []error
	w := newTestWindow(t, svc, Options{OnError: func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}})
	w.Receive(*serverMsg("m1", "earlier", "B"))
	w.Wait()

	w.SetDraft("hello")
	w.Send(context.Background(), "hello", models.MessageText)
	require.Len(t, w.Messages(), 2)

	svc.nextSend(t).reply <- sendResult{err: errBackend}
	w.Wait()

	require.Equal(t, []string{"earlier"}, contents(w))
	require.Equal(t, "hello", w.Draft())
	require.Len(t, errs, 1)
	require.True(t, errors.Is(errs[0], errBackend))
}

func TestSendFailureKeepsNewDraft(t *testing.T) {
	svc := newFakeService()
	w := newTestWindow(t, svc, Options{})

	w.Send(context.Background(), "hello", models.MessageText)
	w.SetDraft("typing something else")
	svc.nextSend(t).reply <- sendResult{err: errBackend}
	w.Wait()

	require.Equal(t, "typing something else", w.Draft())
}

func TestReceiveDuplicateIDKeepsLength(t *testing.T) {
	svc := newFakeService()
	w := newTestWindow(t, svc, Options{})

	require.True(t, w.Receive(*serverMsg("m1", "yo", "B")))
	require.False(t, w.Receive(*serverMsg("m1", "yo", "B")))
	require.False(t, w.Receive(*serverMsg("m1", "edited", "B")))
	w.Wait()

	require.Len(t, w.Messages(), 1)
	require.EqualValues(t, 1, svc.markReads.Load())
}

func TestEchoBeforeResponseByContent(t *testing.T) {
	svc := newFakeService()
	w := newTestWindow(t, svc, Options{})

	w.Send(context.Background(), "hi", models.MessageText)
	require.False(t, w.Receive(*serverMsg("m7", "hi", "A")))

	svc.nextSend(t).reply <- sendResult{msg: serverMsg("m7", "hi", "A")}
	w.Wait()

	require.Equal(t, []string{"hi"}, contents(w))
	require.Equal(t, "m7", w.Messages()[0].ID)
	require.Zero(t, svc.markReads.Load())
}

func TestEchoBeforeResponseByClientID(t *testing.T) {
	svc := newFakeService()
	w := newTestWindow(t, svc, Options{})

	first := w.Send(context.Background(), "hi", models.MessageText)
	second := w.Send(context.Background(), "hi", models.MessageText)
	c1 := svc.nextSend(t)
	c2 := svc.nextSend(t)
	if c1.req.ClientID != first {
		c1, c2 = c2, c1
	}

	echo := *serverMsg("m8", "hi", "A")
	echo.ClientID = second
	require.False(t, w.Receive(echo))

	c1.reply <- sendResult{msg: serverMsg("m7", "hi", "A")}
	c2.reply <- sendResult{msg: &echo}
	w.Wait()

	require.Equal(t, []string{"hi", "hi"}, contents(w))
	require.Equal(t, "m7", w.Messages()[0].ID)
	require.Equal(t, "m8", w.Messages()[1].ID)
}

func TestEchoWithUnknownClientIDIsAppended(t *testing.T) {
	svc := newFakeService()
	w := newTestWindow(t, svc, Options{})

	w.Send(context.Background(), "hi", models.MessageText)
	other := *serverMsg("m9", "hi", "A")
	other.ClientID = "temp-from-another-device"
	require.True(t, w.Receive(other))

	svc.nextSend(t).reply <- sendResult{msg: serverMsg("m7", "hi", "A")}
	w.Wait()
	require.Equal(t, []string{"hi", "hi"}, contents(w))
}

func TestEchoAfterResponse(t *testing.T) {
	svc := newFakeService()
	w := newTestWindow(t, svc, Options{})

	w.Send(context.Background(), "hi", models.MessageText)
	svc.nextSend(t).reply <- sendResult{msg: serverMsg("m7", "hi", "A")}
	w.Wait()

	require.False(t, w.Receive(*serverMsg("m7", "hi", "A")))
	require.Len(t, w.Messages(), 1)
}

func TestReceiveOtherConversation(t *testing.T) {
	w := newTestWindow(t, newFakeService(), Options{})
	msg := *serverMsg("m1", "yo", "B")
	msg.ConversationID = "43"
	require.False(t, w.Receive(msg))
	require.Empty(t, w.Messages())
}

func TestConversation42Delivery(t *testing.T) {
	svc := newFakeService()
	m, ft := newTestManager(t)

	var mu sync.Mutex
	var changes []Change
	w := newTestWindow(t, svc, Options{OnChange: func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	}})
	w.Attach(m)

	payload := `{"id":"m1","content":"yo","senderId":"B","conversationId":"42","createdAt":"2024-05-01T12:00:00Z"}`
	ft.emit("conversation-42", realtime.EventNewMessage, payload)
	ft.emit("conversation-42", realtime.EventNewMessage, payload)
	w.Wait()

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "m1", msgs[0].ID)
	require.Equal(t, "yo", msgs[0].Content)
	require.EqualValues(t, 1, svc.markReads.Load())
	require.Len(t, changes, 1)
	require.Equal(t, Received, changes[0].Kind)
	require.Equal(t, "m1", changes[0].Message.ID)
}

func TestChangeSequenceForSend(t *testing.T) {
	svc := newFakeService()
	var mu sync.Mutex
	var kinds []ChangeKind
	var confirmed Change
	w := newTestWindow(t, svc, Options{OnChange: func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, c.Kind)
		if c.Kind == Confirmed {
			confirmed = c
		}
	}})

	tempID := w.Send(context.Background(), "one", models.MessageText)
	svc.nextSend(t).reply <- sendResult{msg: serverMsg("m1", "one", "A")}
	w.Wait()
	w.Send(context.Background(), "two", models.MessageText)
	svc.nextSend(t).reply <- sendResult{err: errBackend}
	w.Wait()

	require.Equal(t, []ChangeKind{Pending, Confirmed, Pending, RolledBack}, kinds)
	require.Equal(t, tempID, confirmed.TempID)
	require.Equal(t, "m1", confirmed.Message.ID)
}

func TestCloseDiscardsLateResults(t *testing.T) {
	svc := newFakeService()
	m, ft := newTestManager(t)
	w := newTestWindow(t, svc, Options{})
	w.Attach(m)

	tempID := w.Send(context.Background(), "hello", models.MessageText)
	call := svc.nextSend(t)

	w.Close()
	state, refs := m.ChannelState("conversation-42")
	require.Equal(t, realtime.PendingTeardown, state)
	require.Zero(t, refs)

	call.reply <- sendResult{msg: serverMsg("m1", "hello", "A")}
	w.Wait()

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, tempID, msgs[0].ID)

	ft.emit("conversation-42", realtime.EventNewMessage, `{"id":"m2","content":"x","senderId":"B","conversationId":"42"}`)
	require.False(t, w.Receive(*serverMsg("m3", "x", "B")))
	require.Len(t, w.Messages(), 1)
	require.Empty(t, w.Send(context.Background(), "again", models.MessageText))
	require.Zero(t, svc.markReads.Load())
}

func TestAttachTwiceKeepsOneReference(t *testing.T) {
	m, _ := newTestManager(t)
	w := newTestWindow(t, newFakeService(), Options{})
	w.Attach(m)
	w.Attach(m)

	_, refs := m.ChannelState("conversation-42")
	require.Equal(t, 1, refs)
}

func TestLoadMarksReadWhenLastFromOthers(t *testing.T) {
	svc := newFakeService()
	svc.history = []models.Message{*serverMsg("m1", "yo", "B")}
	w := newTestWindow(t, svc, Options{})

	require.NoError(t, w.Load(context.Background()))
	w.Wait()
	require.EqualValues(t, 1, svc.markReads.Load())

	svc.listErr = errBackend
	err := w.Load(context.Background())
	require.ErrorIs(t, err, errBackend)
}

func TestSendRejectsUnknownType(t *testing.T) {
	var got error
	w := newTestWindow(t, newFakeService(), Options{OnError: func(err error) { got = err }})
	require.Empty(t, w.Send(context.Background(), "x", models.MessageType("VIDEO")))
	require.Error(t, got)
	require.Empty(t, w.Messages())
}

func TestImageSendLeavesDraft(t *testing.T) {
	svc := newFakeService()
	w := newTestWindow(t, svc, Options{})
	w.SetDraft("caption in progress")

	w.Send(context.Background(), "https://res.example.com/x.png", models.MessageImage)
	require.Equal(t, "caption in progress", w.Draft())
	call := svc.nextSend(t)
	require.Equal(t, models.MessageImage, call.req.Type)
	call.reply <- sendResult{err: errBackend}
	w.Wait()
	require.Equal(t, "caption in progress", w.Draft())
	require.Empty(t, w.Messages())
}
