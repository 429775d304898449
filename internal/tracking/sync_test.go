package tracking

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/citation"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
)

type mockMessages struct {
	last *repository.Message
	err  error
}

func (m *mockMessages) InsertMessage(_ context.Context, _ repository.InsertMessageInput) (*repository.Message, error) {
	return nil, errors.New("not implemented")
}

func (m *mockMessages) GetLastMessage(_ context.Context, _ string) (*repository.Message, error) {
	return m.last, m.err
}

func (m *mockMessages) UpdateLastMessageCategory(_ context.Context, _ string, _ category.Category) (*repository.Message, error) {
	return nil, errors.New("not implemented")
}

type attachCall struct {
	kind    string
	problem Problem
	text    string
}

type mockService struct {
	created   []string
	lookups   []string
	attaches  []attachCall
	problems  map[string]Problem
	createErr error
	findErr   error
	attachErr error
}

func (m *mockService) CreateProblem(_ context.Context, text string) error {
	m.created = append(m.created, text)
	return m.createErr
}

func (m *mockService) FindBySubject(_ context.Context, subject string) (*Problem, error) {
	m.lookups = append(m.lookups, subject)
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.problems[subject]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockService) AttachCause(_ context.Context, p Problem, text string) error {
	m.attaches = append(m.attaches, attachCall{kind: "cause", problem: p, text: text})
	return m.attachErr
}

func (m *mockService) AttachSolution(_ context.Context, p Problem, text string) error {
	m.attaches = append(m.attaches, attachCall{kind: "solution", problem: p, text: text})
	return m.attachErr
}

func (m *mockService) calls() int {
	return len(m.created) + len(m.lookups) + len(m.attaches)
}

func lastMessage(text string) *mockMessages {
	return &mockMessages{last: &repository.Message{Seq: 7, RoomID: "!room", Text: text}}
}

func TestSubmitProblem_CreatesFromLastMessage(t *testing.T) {
	svc := &mockService{}
	s := NewSynchronizer(lastMessage("Printer jams frequently"), svc)
	if err := s.SubmitProblem(context.Background(), "!room"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.created) != 1 || svc.created[0] != "Printer jams frequently" {
		t.Fatalf("unexpected create calls: %+v", svc.created)
	}
}

func TestSubmitProblem_RemoteFailure(t *testing.T) {
	svc := &mockService{createErr: errors.New("503")}
	s := NewSynchronizer(lastMessage("Printer jams"), svc)
	if err := s.SubmitProblem(context.Background(), "!room"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubmitCause_AttachesToQuotedProblem(t *testing.T) {
	svc := &mockService{problems: map[string]Problem{
		"Printer jams frequently": {ID: "p-1", Subject: "Printer jams frequently"},
	}}
	s := NewSynchronizer(lastMessage("> <alice> Printer jams frequently\nWorn pickup roller"), svc)
	if err := s.SubmitCause(context.Background(), "!room"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.attaches) != 1 {
		t.Fatalf("expected one attach, got %d", len(svc.attaches))
	}
	got := svc.attaches[0]
	if got.kind != "cause" || got.problem.ID != "p-1" || got.text != "Worn pickup roller" {
		t.Fatalf("unexpected attach: %+v", got)
	}
}

func TestSubmitSolution_AttachesToQuotedProblem(t *testing.T) {
	svc := &mockService{problems: map[string]Problem{
		"Printer jams frequently": {ID: "p-1", Subject: "Printer jams frequently"},
	}}
	s := NewSynchronizer(lastMessage("> <alice> Printer jams frequently\nReplace the fuser unit"), svc)
	if err := s.SubmitSolution(context.Background(), "!room"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.attaches) != 1 || svc.attaches[0].kind != "solution" || svc.attaches[0].text != "Replace the fuser unit" {
		t.Fatalf("unexpected attaches: %+v", svc.attaches)
	}
}

func TestSubmitCause_NonQuoteMakesNoRemoteCall(t *testing.T) {
	svc := &mockService{}
	s := NewSynchronizer(lastMessage("Worn pickup roller"), svc)
	err := s.SubmitCause(context.Background(), "!room")
	if !errors.Is(err, citation.ErrNotQuote) {
		t.Fatalf("expected ErrNotQuote, got %v", err)
	}
	if svc.calls() != 0 {
		t.Fatalf("expected no tracking calls, got %d", svc.calls())
	}
}

func TestSubmitSolution_UnknownProblemDoesNotWrite(t *testing.T) {
	svc := &mockService{problems: map[string]Problem{}}
	s := NewSynchronizer(lastMessage("> <alice> Conveyor stops\nTighten belt"), svc)
	err := s.SubmitSolution(context.Background(), "!room")
	if !errors.Is(err, ErrProblemNotFound) {
		t.Fatalf("expected ErrProblemNotFound, got %v", err)
	}
	if len(svc.attaches) != 0 {
		t.Fatal("expected no attach after failed lookup")
	}
}

func TestSubmitCause_LooksUpTruncatedSubject(t *testing.T) {
	svc := &mockService{}
	long := strings.Repeat("a", 90)
	s := NewSynchronizer(lastMessage("> <alice> "+long+"\ncause"), svc)
	_ = s.SubmitCause(context.Background(), "!room")
	if len(svc.lookups) != 1 || len(svc.lookups[0]) != citation.SubjectMaxLen {
		t.Fatalf("unexpected lookups: %q", svc.lookups)
	}
}

func TestSubmit_NoMessage(t *testing.T) {
	svc := &mockService{}
	s := NewSynchronizer(&mockMessages{}, svc)
	for _, c := range []category.Category{category.Problem, category.Cause, category.Solution} {
		if err := s.Submit(context.Background(), "!room", c); !errors.Is(err, repository.ErrNoMessage) {
			t.Fatalf("%v: expected ErrNoMessage, got %v", c, err)
		}
	}
	if svc.calls() != 0 {
		t.Fatal("expected no tracking calls")
	}
}

func TestSubmit_OtherIsRejected(t *testing.T) {
	svc := &mockService{}
	s := NewSynchronizer(lastMessage("hello"), svc)
	if err := s.Submit(context.Background(), "!room", category.Other); err == nil {
		t.Fatal("expected error for Other")
	}
	if svc.calls() != 0 {
		t.Fatal("expected no tracking calls")
	}
}
