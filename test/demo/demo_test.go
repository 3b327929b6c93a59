//go:build integration_test

// Demo drives a running instance end to end: tracks a visitor through a
// quiz, converts it, and watches the lead notification arrive over redis.
//
// Requires the server on localhost:8080, redis on localhost:6379, and
// DEMO_OWNER_TOKEN / DEMO_QUIZ_ID set for an existing quiz.
package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	baseURL      = "http://localhost:8080"
	pubsubPrefix = "local:notify"
)

func TestFunnel(t *testing.T) {
	ownerToken := os.Getenv("DEMO_OWNER_TOKEN")
	quizID := os.Getenv("DEMO_QUIZ_ID")
	if ownerToken == "" || quizID == "" {
		t.Skip("DEMO_OWNER_TOKEN and DEMO_QUIZ_ID must be set")
	}

	var (
		token    = uuid.New().String()
		start    = time.Now().UTC().Truncate(time.Second)
		notified = subscribeLeads(t, makeRedis(t), quizID)
	)

	// Visitor walks the funnel.
	steps := []map[string]any{
		{"event_type": "quiz_started", "created_at": start, "device": "mobile", "utm_source": "demo"},
		{"event_type": "question_answered", "question_number": 1, "answer": "yes", "created_at": start.Add(10 * time.Second)},
		{"event_type": "question_answered", "question_number": 2, "answer": "no", "created_at": start.Add(25 * time.Second)},
		{"event_type": "quiz_completed", "created_at": start.Add(40 * time.Second)},
	}
	for _, step := range steps {
		step["session_id"] = token
		step["quiz_id"] = quizID
		post(t, "/api/event", step, "", http.StatusCreated)
	}

	// Conversion.
	resp := post(t, "/api/lead", map[string]any{
		"session_id": token,
		"quiz_id":    quizID,
		"name":       "Demo Visitor",
		"email":      "demo@example.com",
	}, "", http.StatusCreated)
	leadID := resp["lead_id"].(string)
	t.Logf("created lead %s", leadID)

	// The owner reads the journey back in order.
	journey := get(t, "/api/lead/"+leadID, ownerToken, http.StatusOK)
	entries := journey["user_journey"].([]any)
	require.Len(t, entries, len(steps))
	require.Equal(t, "quiz_started", entries[0].(map[string]any)["type"])
	require.Equal(t, "quiz_completed", entries[len(entries)-1].(map[string]any)["type"])

	// And the notification arrived.
	select {
	case got := <-notified:
		require.Equal(t, leadID, got)
	case <-time.After(10 * time.Second):
		t.Fatal("no lead notification received")
	}
}

func subscribeLeads(t *testing.T, rc redis.UniversalClient, quizID string) <-chan string {
	ctx := context.Background()

	sub := rc.Subscribe(ctx, fmt.Sprintf("%s:quiz:%s", pubsubPrefix, quizID))
	t.Cleanup(func() { sub.Close() })

	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	c := make(chan string, 1)
	go func() {
		for msg := range sub.Channel() {
			var n struct {
				Event string `json:"event"`
				Data  struct {
					LeadID string `json:"lead_id"`
				} `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			if n.Event == "lead.created" {
				c <- n.Data.LeadID
				return
			}
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func post(t *testing.T, path string, body map[string]any, token string, wantStatus int) map[string]any {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req, wantStatus)
}

func get(t *testing.T, path, token string, wantStatus int) map[string]any {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req, wantStatus)
}

func doRequest(t *testing.T, req *http.Request, wantStatus int) map[string]any {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	require.Equal(t, wantStatus, resp.StatusCode, "response: %v", m)

	return m
}
