package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finanzen/internal/log"
)

// Mailer delivers a notification to one address.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

const (
	reminderSubject    = "Financial goal reminder"
	reminderBodyPrefix = "Please remember to set your budget for your financial goal: "
)

type GoalNotifierConfig struct {
	// Interval between notification passes.
	Interval time.Duration
}

func DefaultGoalNotifierConfig() GoalNotifierConfig {
	return GoalNotifierConfig{Interval: 24 * time.Hour}
}

// GoalNotifier periodically mails users whose financial goals come due
// within the horizon. One pass runs immediately on start, then one per
// interval. A failed send is logged and skipped; the pass continues.
type GoalNotifier struct {
	selector *DueSelector
	mailer   Mailer
	config   GoalNotifierConfig
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewGoalNotifier(selector *DueSelector, mailer Mailer, config GoalNotifierConfig, logger *log.Logger) *GoalNotifier {
	if config.Interval <= 0 {
		config.Interval = DefaultGoalNotifierConfig().Interval
	}
	return &GoalNotifier{
		selector: selector,
		mailer:   mailer,
		config:   config,
		logger:   logger.WithComponent(log.ComponentNotifier),
	}
}

func (n *GoalNotifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return fmt.Errorf("notifier already running")
	}
	n.stopCh = make(chan struct{})
	n.doneCh = make(chan struct{})
	n.running = true

	go n.runLoop(ctx)

	n.logger.Info("Goal notifier started",
		log.FieldOperation, log.OpStartup,
		"interval", n.config.Interval.String())
	return nil
}

func (n *GoalNotifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	close(n.stopCh)
	doneCh := n.doneCh
	n.mu.Unlock()

	select {
	case <-doneCh:
	case <-ctx.Done():
		return fmt.Errorf("notifier stop: %w", ctx.Err())
	}

	n.mu.Lock()
	n.running = false
	n.mu.Unlock()

	n.logger.Info("Goal notifier stopped", log.FieldOperation, log.OpShutdown)
	return nil
}

func (n *GoalNotifier) IsRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

func (n *GoalNotifier) runLoop(ctx context.Context) {
	defer close(n.doneCh)

	if err := n.Notify(ctx); err != nil {
		n.logger.ErrorContext(ctx, "Notification pass failed", log.FieldError, err.Error())
	}

	ticker := time.NewTicker(n.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.Notify(ctx); err != nil {
				n.logger.ErrorContext(ctx, "Notification pass failed", log.FieldError, err.Error())
			}
		}
	}
}

// Notify runs a single pass: select due goals, mail each owner.
func (n *GoalNotifier) Notify(ctx context.Context) error {
	today := time.Now().UTC()
	reminders, err := n.selector.SelectDue(ctx, today)
	if err != nil {
		return err
	}

	sent := 0
	for _, r := range reminders {
		body := reminderBodyPrefix + r.Label
		if err := n.mailer.Send(ctx, r.Email, reminderSubject, body); err != nil {
			n.logger.WarnContext(ctx, "Reminder send failed",
				log.FieldOperation, log.OpNotify,
				log.FieldError, err.Error())
			continue
		}
		sent++
	}

	n.logger.InfoContext(ctx, "Notification pass complete",
		log.FieldOperation, log.OpNotify,
		"due", len(reminders),
		"sent", sent)
	return nil
}
