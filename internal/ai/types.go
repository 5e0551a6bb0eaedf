package ai

import (
	"context"
	"errors"
)

// Completer is the minimal text-generation capability the planner needs.
// Implementations must return the raw model text; parsing is the caller's job.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ErrEmptyReply marks a completion that came back with no choices.
var ErrEmptyReply = errors.New("empty_reply")
