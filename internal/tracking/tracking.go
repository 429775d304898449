package tracking

import "context"

// Problem is a problem record held by the tracking service.
// Fields carries the remote representation so updates can round-trip it.
type Problem struct {
	ID      string
	Subject string
	Body    string
	Fields  map[string]any
}

type Service interface {
	CreateProblem(ctx context.Context, text string) error
	// FindBySubject returns nil, nil when no problem matches.
	FindBySubject(ctx context.Context, subject string) (*Problem, error)
	AttachCause(ctx context.Context, problem Problem, text string) error
	AttachSolution(ctx context.Context, problem Problem, text string) error
}
