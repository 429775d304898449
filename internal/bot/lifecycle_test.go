package bot

import (
	"context"
	"testing"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
)

func TestHandleInvite_JoinsAndGreetsWithAffordances(t *testing.T) {
	env := newTestEnv()

	env.bot.HandleInvite(context.Background(), chat.InviteEvent{RoomID: testRoom, SenderID: testUser})

	room := env.repo.rooms[testRoom]
	if room == nil {
		t.Fatal("expected room record after join")
	}
	if !room.JoinedAt.Equal(testJoinedAt) || room.Recording {
		t.Fatalf("unexpected room: %+v", room)
	}
	if env.gateway.lastText() != messageGreeting {
		t.Fatalf("unexpected greeting: %q", env.gateway.lastText())
	}
	greetingID := env.gateway.lastID()
	if len(env.gateway.reactions) != 2 {
		t.Fatalf("expected two affordances, got %+v", env.gateway.reactions)
	}
	if env.gateway.reactions[0] != (reaction{messageID: greetingID, symbol: chat.SymbolStay}) ||
		env.gateway.reactions[1] != (reaction{messageID: greetingID, symbol: chat.SymbolLeave}) {
		t.Fatalf("unexpected affordances: %+v", env.gateway.reactions)
	}
}

func TestHandleInvite_RetriesJoin(t *testing.T) {
	env := newTestEnv()
	env.gateway.joinErrs = 2

	env.bot.HandleInvite(context.Background(), chat.InviteEvent{RoomID: testRoom, SenderID: testUser})

	if env.gateway.joinCalls != 3 {
		t.Fatalf("expected three join attempts, got %d", env.gateway.joinCalls)
	}
	if env.repo.rooms[testRoom] == nil {
		t.Fatal("expected room record after third attempt succeeded")
	}
}

func TestHandleInvite_GivesUpAfterJoinAttempts(t *testing.T) {
	env := newTestEnv()
	env.gateway.joinErrs = 10

	env.bot.HandleInvite(context.Background(), chat.InviteEvent{RoomID: testRoom, SenderID: testUser})

	if env.gateway.joinCalls != 3 {
		t.Fatalf("expected three join attempts, got %d", env.gateway.joinCalls)
	}
	if len(env.repo.rooms) != 0 {
		t.Fatal("expected no room record after join failure")
	}
	if len(env.gateway.sent) != 0 {
		t.Fatalf("expected no messages, got %+v", env.gateway.sent)
	}
}

func TestHandleInvite_KnownRoomKeepsJoinTimeAndSkipsGreeting(t *testing.T) {
	env := newTestEnv().withRoom(true)
	env.now = testJoinedAt.Add(time.Hour)

	env.bot.HandleInvite(context.Background(), chat.InviteEvent{RoomID: testRoom, SenderID: testUser})

	room := env.repo.rooms[testRoom]
	if !room.JoinedAt.Equal(testJoinedAt) || !room.Recording {
		t.Fatalf("expected existing room to be untouched, got %+v", room)
	}
	if len(env.gateway.sent) != 0 {
		t.Fatalf("expected no greeting for known room, got %+v", env.gateway.sent)
	}
}

func TestShouldIgnore(t *testing.T) {
	room := &repository.Room{ID: testRoom, JoinedAt: testJoinedAt}
	if !shouldIgnore(room, testJoinedAt.Add(-time.Millisecond)) {
		t.Fatal("expected event before join to be ignored")
	}
	if shouldIgnore(room, testJoinedAt) {
		t.Fatal("expected event at join time to be processed")
	}
}

func TestHandleMessage_StaleEventHasNoSideEffects(t *testing.T) {
	env := newTestEnv().withRoom(false)

	for _, text := range []string{"yes", "no", ":problem", "the printer is broken"} {
		env.bot.HandleMessage(context.Background(), chat.MessageEvent{
			RoomID:     testRoom,
			EventID:    "$old",
			SenderID:   testUser,
			Text:       text,
			ServerTime: testJoinedAt.Add(-time.Second),
		})
	}

	room := env.repo.rooms[testRoom]
	if room == nil || room.Recording {
		t.Fatalf("expected room unchanged, got %+v", room)
	}
	if len(env.gateway.sent) != 0 || len(env.gateway.leaveCalls) != 0 || env.clf.calls != 0 {
		t.Fatalf("expected no side effects, sent=%+v leaves=%v classify=%d", env.gateway.sent, env.gateway.leaveCalls, env.clf.calls)
	}
}

func TestHandleMessage_YesEnablesRecording(t *testing.T) {
	for _, alias := range []string{"yes", "Y", "j", "JA"} {
		env := newTestEnv().withRoom(false)

		env.message(alias)

		if !env.repo.rooms[testRoom].Recording {
			t.Fatalf("expected recording after %q", alias)
		}
		if env.gateway.lastText() != messageStay {
			t.Fatalf("unexpected reply to %q: %q", alias, env.gateway.lastText())
		}
	}
}

func TestHandleMessage_NoLeavesAndDeletes(t *testing.T) {
	for _, alias := range []string{"no", "n", "Nein"} {
		env := newTestEnv().withRoom(true)

		env.message(alias)

		if _, ok := env.repo.rooms[testRoom]; ok {
			t.Fatalf("expected room deleted after %q", alias)
		}
		if len(env.gateway.leaveCalls) != 1 {
			t.Fatalf("expected one leave after %q, got %v", alias, env.gateway.leaveCalls)
		}
		if env.gateway.lastText() != messageLeave {
			t.Fatalf("unexpected reply to %q: %q", alias, env.gateway.lastText())
		}
	}
}

func TestHandleMessage_UnrecognizedInNonRecordingRoomFailsClosed(t *testing.T) {
	for _, text := range []string{":foo", "hello there", ":problem", ":yes"} {
		env := newTestEnv().withRoom(false)

		env.message(text)

		if _, ok := env.repo.rooms[testRoom]; ok {
			t.Fatalf("expected room deleted after %q", text)
		}
		if len(env.gateway.leaveCalls) != 1 || env.gateway.leaveCalls[0] != testRoom {
			t.Fatalf("expected leave after %q, got %v", text, env.gateway.leaveCalls)
		}
		if env.gateway.lastText() != messageNotUnderstood {
			t.Fatalf("unexpected reply to %q: %q", text, env.gateway.lastText())
		}
		if env.clf.calls != 0 {
			t.Fatalf("expected no classification for %q", text)
		}
	}
}

func TestHandleMessage_UnrecognizedInRecordingRoomIsIgnored(t *testing.T) {
	env := newTestEnv().withRoom(true)

	env.message(":foo")

	if env.repo.rooms[testRoom] == nil {
		t.Fatal("expected recording room to survive unrecognized command")
	}
	if len(env.gateway.sent) != 0 || len(env.gateway.leaveCalls) != 0 {
		t.Fatalf("expected no side effects, sent=%+v leaves=%v", env.gateway.sent, env.gateway.leaveCalls)
	}
}

func TestHandleMessage_UnknownRoomIsNoop(t *testing.T) {
	env := newTestEnv()

	env.message("yes")

	if len(env.repo.rooms) != 0 || len(env.gateway.sent) != 0 {
		t.Fatalf("expected no side effects, rooms=%v sent=%+v", env.repo.rooms, env.gateway.sent)
	}
}

func TestHandleMessage_IgnoresOwnMessages(t *testing.T) {
	env := newTestEnv().withRoom(false)

	env.bot.HandleMessage(context.Background(), chat.MessageEvent{
		RoomID:     testRoom,
		EventID:    "$own",
		SenderID:   testBotID,
		Text:       messageGreeting,
		ServerTime: testJoinedAt.Add(time.Second),
	})

	if env.repo.rooms[testRoom] == nil || len(env.gateway.sent) != 0 {
		t.Fatal("expected own message to be ignored")
	}
}

func TestSweepUnconfirmed_LeavesOnlyExpiredUnconfirmedRooms(t *testing.T) {
	env := newTestEnv()
	env.bot.cfg.ConsentTimeoutMin = 30
	env.repo.rooms["!old"] = &repository.Room{ID: "!old", JoinedAt: testJoinedAt}
	env.repo.rooms["!fresh"] = &repository.Room{ID: "!fresh", JoinedAt: testJoinedAt.Add(50 * time.Minute)}
	env.repo.rooms["!recording"] = &repository.Room{ID: "!recording", JoinedAt: testJoinedAt, Recording: true}

	env.bot.SweepUnconfirmed(context.Background(), testJoinedAt.Add(time.Hour))

	if len(env.gateway.leaveCalls) != 1 || env.gateway.leaveCalls[0] != "!old" {
		t.Fatalf("unexpected leaves: %v", env.gateway.leaveCalls)
	}
	if _, ok := env.repo.rooms["!old"]; ok {
		t.Fatal("expected expired room to be deleted")
	}
	if env.repo.rooms["!fresh"] == nil || env.repo.rooms["!recording"] == nil {
		t.Fatal("expected other rooms to survive")
	}
	if env.gateway.lastText() != messageConsentTimeout {
		t.Fatalf("unexpected notice: %q", env.gateway.lastText())
	}
}

func TestSweepUnconfirmed_DisabledByDefault(t *testing.T) {
	env := newTestEnv().withRoom(false)

	env.bot.SweepUnconfirmed(context.Background(), testJoinedAt.Add(24*time.Hour))

	if env.repo.rooms[testRoom] == nil || len(env.gateway.leaveCalls) != 0 {
		t.Fatal("expected sweep to be a no-op without a consent timeout")
	}
}
