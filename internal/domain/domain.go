package domain

import "time"

// Session represents one anonymous visitor's run through a quiz, keyed by a
// client-generated token. Attribution fields are captured once, on the first
// event, and never change afterwards.
type Session struct {
	SessionID    string
	QuizID       string
	SessionToken string
	StartedAt    time.Time
	CompletedAt  *time.Time

	Attribution Attribution
}

// Attribution holds the device and campaign metadata seeded at session
// creation. All fields are optional.
type Attribution struct {
	Device      string
	Browser     string
	OS          string
	Referrer    string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string
}

// Event is a single timestamped interaction fact within a session.
type Event struct {
	EventID        string
	SessionID      string
	QuizID         string
	EventType      string
	QuestionNumber *int
	QuestionID     string
	Answer         string
	TimeSpent      *int
	CreatedAt      time.Time
}

// Well-known event types. EventType is an open set; these are the ones the
// pipeline itself reacts to.
const (
	EventTypeQuizStarted      = "quiz_started"
	EventTypeQuestionViewed   = "question_viewed"
	EventTypeQuestionAnswered = "question_answered"
	EventTypeQuizCompleted    = "quiz_completed"
	EventTypeQuizAbandoned    = "quiz_abandoned"
)

// Lead is a conversion record attributed to exactly one session.
type Lead struct {
	LeadID     string
	SessionID  string
	QuizID     string
	Name       string
	Email      string
	Phone      string
	QuizResult string
	CreatedAt  time.Time
}

// Quiz is the owner-facing registration of a tracked quiz. The tracking code
// is what the embed script uses to address the quiz without exposing its id.
type Quiz struct {
	QuizID       string
	OwnerID      string
	Title        string
	URL          string
	TrackingCode string
	CreatedAt    time.Time
}

// JourneyEntry is one step of a reconstructed visitor journey. Optional
// fields are omitted from the JSON projection when absent.
type JourneyEntry struct {
	Type      string
	Question  string
	Order     *int
	Answer    string
	TimeSpent *int
	Timestamp time.Time
}

// FunnelStats is the per-quiz conversion funnel. Rates are percentages
// rounded to two decimal places.
type FunnelStats struct {
	TotalVisits     int64
	QuizStarts      int64
	QuizCompletions int64
	TotalLeads      int64
	QuizStartRate   float64
	CompletionRate  float64
	ConversionRate  float64
}

// QuestionAbandonment is the drop-off picture for one question, derived from
// question_viewed and quiz_abandoned events. AvgTime is seconds spent on the
// question, averaged over views that reported time_spent.
type QuestionAbandonment struct {
	QuestionID     string
	QuestionNumber int
	Views          int64
	Abandons       int64
	AbandonRate    float64
	AvgTime        float64
}

// TopAbandonment flags a question with a high abandon rate for the owner
// dashboard.
type TopAbandonment struct {
	QuestionOrder string
	AbandonRate   float64
}

// QuizAnalytics is the owner-facing report for one quiz: the conversion
// funnel plus the per-question abandonment breakdown, worst questions first.
type QuizAnalytics struct {
	Funnel         FunnelStats
	Abandonment    []QuestionAbandonment
	TopAbandonment []TopAbandonment
}
