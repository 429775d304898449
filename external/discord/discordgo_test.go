package discord

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/bwmarrin/discordgo"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestSession(t *testing.T, rt roundTripFunc) *discordgo.Session {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if rt != nil {
		s.Client = &http.Client{Transport: rt}
	}
	s.State.MaxMessageCount = stateMessageCache
	return s
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestEventSender_UsesStateCacheFirst(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected REST call: %s %s", req.Method, req.URL.String())
		return nil, nil
	})
	if err := s.State.GuildAdd(&discordgo.Guild{
		ID:       "guild-1",
		Channels: []*discordgo.Channel{{ID: "chan-1", GuildID: "guild-1"}},
	}); err != nil {
		t.Fatalf("failed to add guild to state: %v", err)
	}
	if err := s.State.MessageAdd(&discordgo.Message{ID: "msg-1", ChannelID: "chan-1", Author: &discordgo.User{ID: "bot-1"}}); err != nil {
		t.Fatalf("failed to add message to state: %v", err)
	}

	c := &Client{session: s, botUserID: "bot-1"}
	sender, err := c.EventSender(context.Background(), "chan-1", "msg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender != "bot-1" {
		t.Fatalf("expected bot-1, got %q", sender)
	}
}

func TestEventSender_FallsBackToRESTWhenStateIsCold(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, "/channels/chan-1/messages/msg-1") {
			t.Fatalf("unexpected request path: %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"id":"msg-1","channel_id":"chan-1","content":"hi","author":{"id":"user-9","username":"alice"}}`), nil
	})

	c := &Client{session: s}
	sender, err := c.EventSender(context.Background(), "chan-1", "msg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender != "user-9" {
		t.Fatalf("expected user-9, got %q", sender)
	}
}

func TestEventSender_NotFound(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"message":"Unknown Message","code":10008}`), nil
	})

	c := &Client{session: s}
	if _, err := c.EventSender(context.Background(), "chan-1", "msg-1"); err == nil {
		t.Fatal("expected error for unknown message")
	}
}

func TestReact_SendsMappedEmoji(t *testing.T) {
	var gotPath string
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.EscapedPath()
		return jsonResponse(http.StatusNoContent, ``), nil
	})

	c := &Client{session: s}
	if err := c.React(context.Background(), "chan-1", "msg-1", "Lösung"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unescaped, err := url.PathUnescape(gotPath)
	if err != nil {
		t.Fatalf("failed to unescape path: %v", err)
	}
	if !strings.Contains(unescaped, "/reactions/🇱/") {
		t.Fatalf("expected regional indicator L in path, got %s", unescaped)
	}
	if err := c.React(context.Background(), "chan-1", "msg-1", "Maybe"); err == nil {
		t.Fatal("expected error for unmapped symbol")
	}
}

func TestHandleMessageCreate_MentionInvitesAndStripsMention(t *testing.T) {
	c := &Client{botUserID: "bot-1"}
	var invites []chat.InviteEvent
	var messages []chat.MessageEvent
	c.RegisterInviteHandler(func(e chat.InviteEvent) { invites = append(invites, e) })
	c.RegisterMessageHandler(func(e chat.MessageEvent) { messages = append(messages, e) })
	ts := time.Date(2022, 11, 20, 10, 0, 0, 0, time.UTC)

	c.handleMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg-1",
		ChannelID: "chan-1",
		Content:   "<@bot-1> yes",
		Author:    &discordgo.User{ID: "user-1"},
		Mentions:  []*discordgo.User{{ID: "bot-1"}},
		Timestamp: ts,
	}})

	if len(invites) != 1 || invites[0].RoomID != "chan-1" || invites[0].SenderID != "user-1" {
		t.Fatalf("unexpected invites: %+v", invites)
	}
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	if messages[0].Text != "yes" || !messages[0].ServerTime.Equal(ts) {
		t.Fatalf("unexpected message: %+v", messages[0])
	}
}

func TestHandleMessageCreate_RendersReplyAsQuote(t *testing.T) {
	c := &Client{botUserID: "bot-1"}
	var got string
	c.RegisterMessageHandler(func(e chat.MessageEvent) { got = e.Text })

	c.handleMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg-2",
		ChannelID: "chan-1",
		Content:   "Replace the fuser unit",
		Author:    &discordgo.User{ID: "user-2"},
		ReferencedMessage: &discordgo.Message{
			Content: "Printer jams frequently",
			Author:  &discordgo.User{ID: "user-1", Username: "alice"},
		},
	}})

	if got != "> <alice> Printer jams frequently\nReplace the fuser unit" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestHandleMessageCreate_IgnoresOwnMessages(t *testing.T) {
	c := &Client{botUserID: "bot-1"}
	called := false
	c.RegisterMessageHandler(func(chat.MessageEvent) { called = true })

	c.handleMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "msg-3", ChannelID: "chan-1", Content: "Okay, I will stay!", Author: &discordgo.User{ID: "bot-1"},
	}})

	if called {
		t.Fatal("expected own message to be dropped")
	}
}

func TestHandleReactionAdd_MapsEmojiToSymbol(t *testing.T) {
	cases := map[string]string{
		"👍": chat.SymbolAccept,
		"✔️": chat.SymbolStay,
		"✔":  chat.SymbolStay,
		"❌":  chat.SymbolLeave,
		"🇵": "Problem",
		"🇺": "Ursache",
		"🇴": "O",
		"🎉": "🎉",
	}
	for emoji, want := range cases {
		c := &Client{botUserID: "bot-1"}
		var got chat.ReactionEvent
		c.RegisterReactionHandler(func(e chat.ReactionEvent) { got = e })

		c.handleReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
			UserID: "user-1", MessageID: "msg-1", ChannelID: "chan-1", Emoji: discordgo.Emoji{Name: emoji},
		}})

		if got.Symbol != want || got.TargetEventID != "msg-1" || got.RoomID != "chan-1" || got.SenderID != "user-1" {
			t.Fatalf("emoji %q: unexpected event %+v", emoji, got)
		}
	}
}

func TestHandleReactionAdd_UsesReceiptTime(t *testing.T) {
	received := time.Date(2022, 11, 20, 10, 5, 0, 0, time.UTC)
	c := &Client{botUserID: "bot-1", now: func() time.Time { return received }}
	var got chat.ReactionEvent
	c.RegisterReactionHandler(func(e chat.ReactionEvent) { got = e })

	c.handleReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		UserID: "user-1", MessageID: "msg-1", ChannelID: "chan-1", Emoji: discordgo.Emoji{Name: "👍"},
	}})

	if !got.ServerTime.Equal(received) {
		t.Fatalf("expected receipt time %v, got %v", received, got.ServerTime)
	}
}
