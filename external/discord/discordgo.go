package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/bwmarrin/discordgo"
)

const stateMessageCache = 200

// Symbols are exchanged as emoji because Discord cannot react with text.
var symbolEmoji = map[string]string{
	chat.SymbolStay:   "✔️",
	chat.SymbolLeave:  "❌",
	chat.SymbolAccept: "👍",
	"Problem":         "🇵",
	"Ursache":         "🇺",
	"Lösung":          "🇱",
	"O":               "🇴",
}

var emojiSymbol = func() map[string]string {
	m := make(map[string]string, len(symbolEmoji)+1)
	for symbol, emoji := range symbolEmoji {
		m[emoji] = symbol
	}
	// Clients also send the check mark without the variation selector.
	m["✔"] = chat.SymbolStay
	return m
}()

// Client treats text channels as rooms. Mentioning the bot in a channel
// invites it; there is no membership to leave.
type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string

	onInvite   func(chat.InviteEvent)
	onMessage  func(chat.MessageEvent)
	onReaction func(chat.ReactionEvent)

	now func() time.Time
}

func NewClient(token string) chat.Gateway {
	return &Client{
		token: token,
		now:   time.Now,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent
	s.SyncEvents = true
	s.State.MaxMessageCount = stateMessageCache
	s.AddHandler(c.handleMessageCreate)
	s.AddHandler(c.handleReactionAdd)
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.resolveBotUserID(ctx)
	if err != nil {
		return err
	}
	c.botUserID = userID
	slog.Info("discord gateway connected", "bot_user_id", userID)
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) BotUserID() string {
	return c.botUserID
}

func (c *Client) SendText(ctx context.Context, roomID, text string) (string, error) {
	msg, err := c.session.ChannelMessageSend(roomID, text, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (c *Client) React(ctx context.Context, roomID, messageID, symbol string) error {
	emoji, ok := symbolEmoji[symbol]
	if !ok {
		return fmt.Errorf("no emoji for symbol %q", symbol)
	}
	return c.session.MessageReactionAdd(roomID, messageID, emoji, discordgo.WithContext(ctx))
}

// JoinRoom only checks that the channel is visible to the bot.
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	_, err := c.session.Channel(roomID, discordgo.WithContext(ctx))
	return err
}

func (c *Client) LeaveRoom(_ context.Context, roomID string) error {
	slog.Debug("discord channels have no membership; forgetting room only", "room_id", roomID)
	return nil
}

func (c *Client) EventSender(ctx context.Context, roomID, eventID string) (string, error) {
	if c.session.State != nil {
		msg, err := c.session.State.Message(roomID, eventID)
		if err == nil && msg != nil && msg.Author != nil {
			return msg.Author.ID, nil
		}
	}

	// The state cache only holds recent messages; ask the API for older ones.
	msg, err := c.session.ChannelMessage(roomID, eventID, discordgo.WithContext(ctx))
	if err != nil {
		if isRESTNotFound(err) {
			return "", fmt.Errorf("message %s not found in channel %s", eventID, roomID)
		}
		return "", err
	}
	if msg.Author == nil {
		return "", fmt.Errorf("message %s has no author", eventID)
	}
	return msg.Author.ID, nil
}

func (c *Client) RegisterInviteHandler(handler func(chat.InviteEvent)) {
	c.onInvite = handler
}

func (c *Client) RegisterMessageHandler(handler func(chat.MessageEvent)) {
	c.onMessage = handler
}

func (c *Client) RegisterReactionHandler(handler func(chat.ReactionEvent)) {
	c.onReaction = handler
}

func (c *Client) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (c *Client) handleMessageCreate(_ *discordgo.Session, mc *discordgo.MessageCreate) {
	if mc == nil || mc.Message == nil || mc.Author == nil {
		return
	}
	if mc.Author.ID == c.botUserID {
		return
	}
	if c.mentionsBot(mc.Message) && c.onInvite != nil {
		c.onInvite(chat.InviteEvent{RoomID: mc.ChannelID, SenderID: mc.Author.ID})
	}
	text := c.renderText(mc.Message)
	if text == "" || c.onMessage == nil {
		return
	}
	c.onMessage(chat.MessageEvent{
		RoomID:     mc.ChannelID,
		EventID:    mc.ID,
		SenderID:   mc.Author.ID,
		Text:       text,
		ServerTime: mc.Timestamp,
	})
}

func (c *Client) handleReactionAdd(_ *discordgo.Session, ra *discordgo.MessageReactionAdd) {
	if ra == nil || ra.MessageReaction == nil || c.onReaction == nil {
		return
	}
	symbol, ok := emojiSymbol[ra.Emoji.Name]
	if !ok {
		symbol = ra.Emoji.Name
	}
	c.onReaction(chat.ReactionEvent{
		RoomID:        ra.ChannelID,
		EventID:       strings.Join([]string{ra.MessageID, ra.UserID, ra.Emoji.Name}, ":"),
		TargetEventID: ra.MessageID,
		SenderID:      ra.UserID,
		Symbol:        symbol,
		ServerTime:    c.receivedAt(),
	})
}

// receivedAt stands in for the reaction time, which the gateway does not
// send. Discord does not replay reactions from before a connection.
func (c *Client) receivedAt() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

func (c *Client) mentionsBot(m *discordgo.Message) bool {
	for _, u := range m.Mentions {
		if u != nil && u.ID == c.botUserID {
			return true
		}
	}
	return false
}

// renderText strips bot mentions and renders replies in the quote format
// "> <author> quoted\nreply" used for cause and solution submissions.
func (c *Client) renderText(m *discordgo.Message) string {
	text := m.Content
	if c.botUserID != "" {
		text = strings.ReplaceAll(text, "<@"+c.botUserID+">", "")
		text = strings.ReplaceAll(text, "<@!"+c.botUserID+">", "")
	}
	text = strings.TrimSpace(text)
	ref := m.ReferencedMessage
	if ref == nil || text == "" {
		return text
	}
	author := "unknown"
	if ref.Author != nil {
		author = ref.Author.Username
	}
	return fmt.Sprintf("> <%s> %s\n%s", author, strings.TrimSpace(ref.Content), text)
}

func (c *Client) resolveBotUserID(ctx context.Context) (string, error) {
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		return c.session.State.User.ID, nil
	}
	u, err := c.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}
