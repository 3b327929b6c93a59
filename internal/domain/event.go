package domain

const (
	EventNameSessionCompleted = "session.completed"
	EventNameLeadCreated      = "lead.created"
)

type EventSessionCompleted struct {
	Session Session
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }

type EventLeadCreated struct {
	Lead Lead
}

func (EventLeadCreated) Name() string { return EventNameLeadCreated }
