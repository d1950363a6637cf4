package domain

import "time"

// progressTurns is the turn count at which a consultation is shown as fully
// progressed.
const progressTurns = 10

// Session is the state of one consultation. It is owned by a single caller
// for the duration of a turn and becomes terminal exactly once.
type Session struct {
	ID                  string         `json:"id,omitempty"`
	History             []Turn         `json:"history"`
	Profile             PatientProfile `json:"profile"`
	Complete            bool           `json:"complete"`
	FinalRecommendation string         `json:"finalRecommendation,omitempty"`
	CreatedAt           time.Time      `json:"createdAt,omitempty"`
	UpdatedAt           time.Time      `json:"updatedAt,omitempty"`
}

// NewSession returns an empty consultation.
func NewSession(id string, now time.Time) Session {
	return Session{
		ID:        id,
		History:   []Turn{},
		Profile:   EmptyProfile(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SessionStatus summarises consultation progress for presentation layers.
type SessionStatus struct {
	QuestionsAsked int     `json:"questionsAsked"`
	Responses      int     `json:"responses"`
	Complete       bool    `json:"complete"`
	Progress       float64 `json:"progress"`
}

// Status counts turns per author and reports progress toward conclusion.
func (s Session) Status() SessionStatus {
	st := SessionStatus{Complete: s.Complete}
	for _, t := range s.History {
		switch t.Role {
		case RoleUser:
			st.Responses++
		case RoleAssistant:
			st.QuestionsAsked++
		}
	}
	if s.Complete {
		st.Progress = 1
		return st
	}
	st.Progress = float64(len(s.History)) / progressTurns
	if st.Progress > 1 {
		st.Progress = 1
	}
	return st
}
