package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/classifier"
	"github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	"github.com/UKPLab/aacl2022-TexPrax/internal/tracking"
)

const (
	testBotID = "@recorder:example.org"
	testRoom  = "!room:example.org"
	testUser  = "@alice:example.org"
)

var testJoinedAt = time.Date(2022, 11, 20, 10, 0, 0, 0, time.UTC)

type mockRepository struct {
	rooms     map[string]*repository.Room
	messages  []repository.Message
	handled   map[string]bool
	deleted   []string
	markCalls int
	ledgerErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		rooms:   make(map[string]*repository.Room),
		handled: make(map[string]bool),
	}
}

func (m *mockRepository) CreateRoom(_ context.Context, roomID string, joinedAt time.Time) (bool, error) {
	if _, ok := m.rooms[roomID]; ok {
		return false, nil
	}
	m.rooms[roomID] = &repository.Room{ID: roomID, JoinedAt: joinedAt}
	return true, nil
}

func (m *mockRepository) GetRoom(_ context.Context, roomID string) (*repository.Room, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, nil
	}
	copied := *room
	return &copied, nil
}

func (m *mockRepository) SetRoomRecording(_ context.Context, roomID string, recording bool) error {
	room, ok := m.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %s not found", roomID)
	}
	room.Recording = recording
	return nil
}

func (m *mockRepository) DeleteRoom(_ context.Context, roomID string) error {
	delete(m.rooms, roomID)
	m.deleted = append(m.deleted, roomID)
	return nil
}

func (m *mockRepository) ListUnconfirmedRooms(_ context.Context, joinedBefore time.Time) ([]repository.Room, error) {
	var out []repository.Room
	for _, room := range m.rooms {
		if !room.Recording && room.JoinedAt.Before(joinedBefore) {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (m *mockRepository) InsertMessage(_ context.Context, input repository.InsertMessageInput) (*repository.Message, error) {
	msg := repository.Message{
		Seq:        int64(len(m.messages) + 1),
		RoomID:     input.RoomID,
		Text:       input.Text,
		SenderID:   input.SenderID,
		ServerTime: input.ServerTime,
		Category:   input.Category,
		Spans:      input.Spans,
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *mockRepository) lastIndex(roomID string) int {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].RoomID == roomID {
			return i
		}
	}
	return -1
}

func (m *mockRepository) GetLastMessage(_ context.Context, roomID string) (*repository.Message, error) {
	i := m.lastIndex(roomID)
	if i < 0 {
		return nil, nil
	}
	msg := m.messages[i]
	return &msg, nil
}

func (m *mockRepository) UpdateLastMessageCategory(_ context.Context, roomID string, c category.Category) (*repository.Message, error) {
	i := m.lastIndex(roomID)
	if i < 0 {
		return nil, repository.ErrNoMessage
	}
	m.messages[i].Category = c
	msg := m.messages[i]
	return &msg, nil
}

func (m *mockRepository) IsHandled(_ context.Context, eventID string) (bool, error) {
	if m.ledgerErr != nil {
		return false, m.ledgerErr
	}
	return m.handled[eventID], nil
}

func (m *mockRepository) MarkHandled(_ context.Context, eventID string) error {
	m.markCalls++
	m.handled[eventID] = true
	return nil
}

func (m *mockRepository) GetSyncState(_ context.Context, _ string) (string, error) { return "", nil }
func (m *mockRepository) SaveSyncState(_ context.Context, _, _ string) error       { return nil }
func (m *mockRepository) Ping(_ context.Context) error                             { return nil }
func (m *mockRepository) Close()                                                   {}

type sentText struct {
	roomID string
	text   string
	id     string
}

type reaction struct {
	messageID string
	symbol    string
}

type mockGateway struct {
	sent       []sentText
	reactions  []reaction
	joinCalls  int
	joinErrs   int
	leaveCalls []string
	senders    map[string]string
	nextID     int
}

func newMockGateway() *mockGateway {
	return &mockGateway{senders: make(map[string]string)}
}

func (m *mockGateway) Connect(_ context.Context) error { return nil }
func (m *mockGateway) Close() error                    { return nil }
func (m *mockGateway) BotUserID() string               { return testBotID }
func (m *mockGateway) SendText(_ context.Context, roomID, text string) (string, error) {
	m.nextID++
	id := fmt.Sprintf("$bot-%d", m.nextID)
	m.sent = append(m.sent, sentText{roomID: roomID, text: text, id: id})
	m.senders[id] = testBotID
	return id, nil
}
func (m *mockGateway) React(_ context.Context, _, messageID, symbol string) error {
	m.reactions = append(m.reactions, reaction{messageID: messageID, symbol: symbol})
	return nil
}
func (m *mockGateway) JoinRoom(_ context.Context, _ string) error {
	m.joinCalls++
	if m.joinCalls <= m.joinErrs {
		return errors.New("join rejected")
	}
	return nil
}
func (m *mockGateway) LeaveRoom(_ context.Context, roomID string) error {
	m.leaveCalls = append(m.leaveCalls, roomID)
	return nil
}
func (m *mockGateway) EventSender(_ context.Context, _, eventID string) (string, error) {
	sender, ok := m.senders[eventID]
	if !ok {
		return "", fmt.Errorf("event %s not found", eventID)
	}
	return sender, nil
}
func (m *mockGateway) RegisterInviteHandler(_ func(chat.InviteEvent))     {}
func (m *mockGateway) RegisterMessageHandler(_ func(chat.MessageEvent))   {}
func (m *mockGateway) RegisterReactionHandler(_ func(chat.ReactionEvent)) {}
func (m *mockGateway) Run(_ context.Context) error                        { return nil }

func (m *mockGateway) lastText() string {
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].text
}

func (m *mockGateway) lastID() string {
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].id
}

type mockClassifier struct {
	category category.Category
	tokens   []classifier.TokenLabel
	err      error
	calls    int
}

func (m *mockClassifier) ClassifySentence(_ context.Context, _ string) (category.Category, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	return m.category, nil
}

func (m *mockClassifier) ClassifyTokens(_ context.Context, _ string) ([]classifier.TokenLabel, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tokens, nil
}

type mockTrackingService struct {
	problems  []string
	causes    []string
	solutions []string
	known     map[string]*tracking.Problem
	err       error
}

func (m *mockTrackingService) CreateProblem(_ context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.problems = append(m.problems, text)
	return nil
}

func (m *mockTrackingService) FindBySubject(_ context.Context, subject string) (*tracking.Problem, error) {
	for s, p := range m.known {
		if strings.Contains(subject, s) {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockTrackingService) AttachCause(_ context.Context, _ tracking.Problem, text string) error {
	m.causes = append(m.causes, text)
	return nil
}

func (m *mockTrackingService) AttachSolution(_ context.Context, _ tracking.Problem, text string) error {
	m.solutions = append(m.solutions, text)
	return nil
}

func (m *mockTrackingService) calls() int {
	return len(m.problems) + len(m.causes) + len(m.solutions)
}

type testEnv struct {
	bot     *Bot
	repo    *mockRepository
	gateway *mockGateway
	clf     *mockClassifier
	svc     *mockTrackingService
	now     time.Time
}

func newTestEnv() *testEnv {
	cfg := &config.Config{
		Env:             "test",
		JoinAttempts:    3,
		EventQueueSize:  8,
		EventTimeoutSec: 5,
	}
	env := &testEnv{
		repo:    newMockRepository(),
		gateway: newMockGateway(),
		clf:     &mockClassifier{category: category.Problem},
		svc:     &mockTrackingService{},
		now:     testJoinedAt,
	}
	env.bot = NewBot(cfg, env.repo, env.repo, env.gateway, env.clf, env.svc)
	env.bot.SetBotUserID(testBotID)
	env.bot.now = func() time.Time { return env.now }
	return env
}

// withRoom registers a room joined at testJoinedAt.
func (e *testEnv) withRoom(recording bool) *testEnv {
	e.repo.rooms[testRoom] = &repository.Room{ID: testRoom, JoinedAt: testJoinedAt, Recording: recording}
	return e
}

func (e *testEnv) message(text string) {
	e.bot.HandleMessage(context.Background(), chat.MessageEvent{
		RoomID:     testRoom,
		EventID:    fmt.Sprintf("$user-%d", len(e.repo.messages)),
		SenderID:   testUser,
		Text:       text,
		ServerTime: testJoinedAt.Add(time.Minute),
	})
}

func (e *testEnv) react(targetID, symbol string) {
	e.bot.HandleReaction(context.Background(), chat.ReactionEvent{
		RoomID:        testRoom,
		EventID:       "$reaction-" + symbol,
		TargetEventID: targetID,
		SenderID:      testUser,
		Symbol:        symbol,
		ServerTime:    testJoinedAt.Add(time.Minute),
	})
}
