package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const syncRetryDelay = 5 * time.Second

type Client struct {
	client *mautrix.Client
	userID id.UserID

	onInvite   func(chat.InviteEvent)
	onMessage  func(chat.MessageEvent)
	onReaction func(chat.ReactionEvent)
}

func NewClient(homeserverURL, userID, accessToken string, state repository.SyncStateRepository) (chat.Gateway, error) {
	cli, err := mautrix.NewClient(homeserverURL, id.UserID(userID), accessToken)
	if err != nil {
		return nil, fmt.Errorf("create matrix client: %w", err)
	}
	cli.Store = &syncStore{state: state}
	return &Client{client: cli, userID: id.UserID(userID)}, nil
}

func (c *Client) Connect(ctx context.Context) error {
	resp, err := c.client.Whoami(ctx)
	if err != nil {
		return fmt.Errorf("matrix whoami: %w", err)
	}
	if resp.UserID != c.userID {
		return fmt.Errorf("access token belongs to %s, expected %s", resp.UserID, c.userID)
	}
	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected matrix syncer %T", c.client.Syncer)
	}
	c.registerHandlers(syncer)
	slog.Info("matrix gateway connected", "user_id", c.userID, "homeserver", c.client.HomeserverURL.String())
	return nil
}

// registerHandlers drops backlog before dispatching events: the timelines of
// the very first sync and of rooms the bot has just rejoined.
func (c *Client) registerHandlers(syncer *mautrix.DefaultSyncer) {
	syncer.OnSync(skipInitialTimelines)
	syncer.OnSync(c.client.DontProcessOldEvents)
	syncer.OnEventType(event.StateMember, c.handleMember)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.EventReaction, c.handleReaction)
}

// skipInitialTimelines empties room timelines of a sync without a since
// token. Pending invites are kept.
func skipInitialTimelines(_ context.Context, resp *mautrix.RespSync, since string) bool {
	if since != "" {
		return true
	}
	skipped := 0
	for _, room := range resp.Rooms.Join {
		skipped += len(room.Timeline.Events)
		room.Timeline.Events = nil
	}
	for _, room := range resp.Rooms.Leave {
		skipped += len(room.Timeline.Events)
		room.Timeline.Events = nil
	}
	slog.Info("initial matrix sync; skipping backlog", "events", skipped, "invites", len(resp.Rooms.Invite))
	return true
}

func (c *Client) Close() error {
	c.client.StopSync()
	return nil
}

func (c *Client) BotUserID() string {
	return c.userID.String()
}

func (c *Client) SendText(ctx context.Context, roomID, text string) (string, error) {
	resp, err := c.client.SendText(ctx, id.RoomID(roomID), text)
	if err != nil {
		return "", err
	}
	return resp.EventID.String(), nil
}

func (c *Client) React(ctx context.Context, roomID, messageID, symbol string) error {
	_, err := c.client.SendReaction(ctx, id.RoomID(roomID), id.EventID(messageID), symbol)
	return err
}

func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	_, err := c.client.JoinRoomByID(ctx, id.RoomID(roomID))
	return err
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	_, err := c.client.LeaveRoom(ctx, id.RoomID(roomID))
	return err
}

func (c *Client) EventSender(ctx context.Context, roomID, eventID string) (string, error) {
	evt, err := c.client.GetEvent(ctx, id.RoomID(roomID), id.EventID(eventID))
	if err != nil {
		return "", err
	}
	return evt.Sender.String(), nil
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

// Run syncs until ctx is done, retrying after transient sync failures.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.client.SyncWithContext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.Error("matrix sync failed; retrying", "error", err, "retry_in", syncRetryDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(syncRetryDelay):
		}
	}
}

func (c *Client) handleMember(_ context.Context, evt *event.Event) {
	if invite, ok := inviteFromEvent(evt, c.userID); ok && c.onInvite != nil {
		c.onInvite(invite)
	}
}

func (c *Client) handleMessage(_ context.Context, evt *event.Event) {
	if msg, ok := messageFromEvent(evt); ok && c.onMessage != nil {
		c.onMessage(msg)
	}
}

func (c *Client) handleReaction(_ context.Context, evt *event.Event) {
	if r, ok := reactionFromEvent(evt); ok && c.onReaction != nil {
		c.onReaction(r)
	}
}

func inviteFromEvent(evt *event.Event, botID id.UserID) (chat.InviteEvent, bool) {
	if evt.GetStateKey() != botID.String() {
		return chat.InviteEvent{}, false
	}
	member := evt.Content.AsMember()
	if member.Membership != event.MembershipInvite {
		return chat.InviteEvent{}, false
	}
	return chat.InviteEvent{RoomID: evt.RoomID.String(), SenderID: evt.Sender.String()}, true
}

// messageFromEvent accepts plain text messages only. Replies keep the
// "> <@user> quoted" fallback in the body.
func messageFromEvent(evt *event.Event) (chat.MessageEvent, bool) {
	content := evt.Content.AsMessage()
	if content.MsgType != event.MsgText || content.Body == "" {
		return chat.MessageEvent{}, false
	}
	return chat.MessageEvent{
		RoomID:     evt.RoomID.String(),
		EventID:    evt.ID.String(),
		SenderID:   evt.Sender.String(),
		Text:       content.Body,
		ServerTime: time.UnixMilli(evt.Timestamp),
	}, true
}

func reactionFromEvent(evt *event.Event) (chat.ReactionEvent, bool) {
	content := evt.Content.AsReaction()
	if content.RelatesTo.EventID == "" || content.RelatesTo.Key == "" {
		return chat.ReactionEvent{}, false
	}
	return chat.ReactionEvent{
		RoomID:        evt.RoomID.String(),
		EventID:       evt.ID.String(),
		TargetEventID: content.RelatesTo.EventID.String(),
		SenderID:      evt.Sender.String(),
		Symbol:        content.RelatesTo.Key,
		ServerTime:    time.UnixMilli(evt.Timestamp),
	}, true
}
