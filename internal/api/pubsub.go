package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crivus/quizlead/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	LeadCreated struct {
		LeadID    string    `json:"lead_id"`
		QuizID    string    `json:"quiz_id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Timestamp time.Time `json:"timestamp"`
	}

	SessionCompleted struct {
		QuizID      string    `json:"quiz_id"`
		SessionID   string    `json:"session_id"`
		CompletedAt time.Time `json:"completed_at"`
	}
)

// PublishLeadCreated pushes a conversion notification to the quiz's channel
// and to the owner-dashboard firehose.
func (a *API) PublishLeadCreated(ctx context.Context, e domain.EventLeadCreated) error {
	l := e.Lead

	data := LeadCreated{
		LeadID:    l.LeadID,
		QuizID:    l.QuizID,
		Name:      l.Name,
		Email:     l.Email,
		Timestamp: l.CreatedAt,
	}

	channels := []string{
		a.quizChannel(l.QuizID),
		fmt.Sprintf("%s:leads", a.prefix),
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, ch := range channels {
		ch := ch
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) PublishSessionCompleted(ctx context.Context, e domain.EventSessionCompleted) error {
	ss := e.Session

	data := SessionCompleted{
		QuizID:    ss.QuizID,
		SessionID: ss.SessionID,
	}
	if ss.CompletedAt != nil {
		data.CompletedAt = *ss.CompletedAt
	}

	return a.publishNotification(ctx, a.quizChannel(ss.QuizID), e.Name(), data)
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) quizChannel(quizID string) string {
	return fmt.Sprintf("%s:quiz:%s", a.prefix, quizID)
}
