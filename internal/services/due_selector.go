package services

import (
	"context"
	"fmt"
	"time"

	"finanzen/internal/ledger"
	"finanzen/internal/log"
	"finanzen/internal/users"
)

// DueSoonHorizonDays is how far ahead a goal's due date may lie to still
// count as due soon.
const DueSoonHorizonDays = 7

// Reminder is one outgoing notification, fully resolved and ready to send.
type Reminder struct {
	Email string
	Label string
}

// DueSelector picks the goals whose due date falls inside the horizon and
// resolves each owner's address. A goal whose owner cannot be resolved is
// skipped with a log line; it never sinks the rest of the batch.
type DueSelector struct {
	goals  ledger.GoalLister
	users  users.Directory
	logger *log.Logger
}

func NewDueSelector(goals ledger.GoalLister, directory users.Directory, logger *log.Logger) *DueSelector {
	return &DueSelector{
		goals:  goals,
		users:  directory,
		logger: logger.WithComponent(log.ComponentNotifier),
	}
}

func (s *DueSelector) SelectDue(ctx context.Context, today time.Time) ([]Reminder, error) {
	goals, err := s.goals.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("select due goals: %w", err)
	}

	var out []Reminder
	for _, g := range goals {
		if !g.DueSoon(today, DueSoonHorizonDays) {
			continue
		}
		u, err := s.users.FindByID(ctx, g.UserID)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping goal, owner lookup failed",
				log.FieldGoalID, g.ID,
				log.FieldUserID, g.UserID,
				log.FieldError, err.Error())
			continue
		}
		out = append(out, Reminder{Email: u.Email, Label: g.Label})
	}
	return out, nil
}
