package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/citation"
	"github.com/UKPLab/aacl2022-TexPrax/internal/metrics"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
)

var ErrProblemNotFound = errors.New("no tracked problem matches the quoted subject")

// Synchronizer forwards the most recent message of a room to the tracking service.
type Synchronizer struct {
	messages repository.MessageRepository
	service  Service
}

func NewSynchronizer(messages repository.MessageRepository, service Service) *Synchronizer {
	return &Synchronizer{messages: messages, service: service}
}

// Submit dispatches to the operation matching c. Other is never forwarded.
func (s *Synchronizer) Submit(ctx context.Context, roomID string, c category.Category) error {
	var err error
	switch c {
	case category.Problem:
		err = s.SubmitProblem(ctx, roomID)
	case category.Cause:
		err = s.SubmitCause(ctx, roomID)
	case category.Solution:
		err = s.SubmitSolution(ctx, roomID)
	default:
		return fmt.Errorf("category %v is not forwarded", c)
	}
	metrics.RecordSubmission(c.String(), err)
	return err
}

func (s *Synchronizer) SubmitProblem(ctx context.Context, roomID string) error {
	msg, err := s.lastMessage(ctx, roomID)
	if err != nil {
		return err
	}
	if err := s.service.CreateProblem(ctx, msg.Text); err != nil {
		return fmt.Errorf("create problem: %w", err)
	}
	slog.Info("problem forwarded to tracking service", "room_id", roomID, "message_seq", msg.Seq)
	return nil
}

func (s *Synchronizer) SubmitCause(ctx context.Context, roomID string) error {
	problem, body, err := s.resolveQuotedProblem(ctx, roomID)
	if err != nil {
		return err
	}
	if err := s.service.AttachCause(ctx, *problem, body); err != nil {
		return fmt.Errorf("attach cause: %w", err)
	}
	slog.Info("cause forwarded to tracking service", "room_id", roomID, "problem_id", problem.ID)
	return nil
}

func (s *Synchronizer) SubmitSolution(ctx context.Context, roomID string) error {
	problem, body, err := s.resolveQuotedProblem(ctx, roomID)
	if err != nil {
		return err
	}
	if err := s.service.AttachSolution(ctx, *problem, body); err != nil {
		return fmt.Errorf("attach solution: %w", err)
	}
	slog.Info("solution forwarded to tracking service", "room_id", roomID, "problem_id", problem.ID)
	return nil
}

// resolveQuotedProblem performs every check that must pass before a cause or
// solution may be written, so a failure never leaves a partial update.
func (s *Synchronizer) resolveQuotedProblem(ctx context.Context, roomID string) (*Problem, string, error) {
	msg, err := s.lastMessage(ctx, roomID)
	if err != nil {
		return nil, "", err
	}
	quote, err := citation.Parse(msg.Text)
	if err != nil {
		return nil, "", err
	}
	problem, err := s.service.FindBySubject(ctx, quote.Subject)
	if err != nil {
		return nil, "", fmt.Errorf("find problem by subject: %w", err)
	}
	if problem == nil {
		return nil, "", fmt.Errorf("%w: %q", ErrProblemNotFound, quote.Subject)
	}
	return problem, quote.Body, nil
}

func (s *Synchronizer) lastMessage(ctx context.Context, roomID string) (*repository.Message, error) {
	msg, err := s.messages.GetLastMessage(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load last message: %w", err)
	}
	if msg == nil {
		return nil, repository.ErrNoMessage
	}
	return msg, nil
}
