package store

import (
	"strings"
	"sync"
	"time"

	"testcase-workflow-be/pkg/backend"
	"testcase-workflow-be/pkg/testcase"
	"testcase-workflow-be/pkg/workflow"
)

// Action identifies a kind of backend request. Only the latest issued request
// of each kind may commit its result.
type Action string

const (
	ActionFetchContext Action = "fetch_context"
	ActionAnalyze      Action = "analyze"
	ActionSaveAnalysis Action = "save_analysis"
	ActionGenerate     Action = "generate"
	ActionStatus       Action = "status"
)

// Message id prefixes.
const (
	PrefixContext   = "ctx-"
	PrefixMessage   = "msg-"
	PrefixAnalysis  = "analysis-"
	PrefixTestCases = "testcases-"
)

// Ticket is handed out when a request is issued and redeemed when it
// completes.
type Ticket struct {
	Action Action
	Seq    uint64
}

// WorkflowSession is the in-memory view-model of one backend session.
// All fields are guarded by mu; use the methods or Do.
type WorkflowSession struct {
	mu sync.Mutex

	ID          string
	UserID      string
	ProjectName string
	// Last status string reported by the backend, verbatim.
	BackendStatus string
	State         workflow.State
	CurrentChatID string
	// Newest first.
	Chats []backend.Chat
	// Append-only, chronological, across all chats.
	Messages   []backend.ChatMessage
	UserPrompt string
	TestCases  []testcase.Record
	UpdatedAt  time.Time

	clock  uint64
	latest map[Action]uint64
}

func NewWorkflowSession(id, userID, projectName string) *WorkflowSession {
	return &WorkflowSession{
		ID:          id,
		UserID:      userID,
		ProjectName: projectName,
		State:       workflow.NewState(),
		Chats:       []backend.Chat{},
		Messages:    []backend.ChatMessage{},
		TestCases:   []testcase.Record{},
		UpdatedAt:   time.Now(),
		latest:      make(map[Action]uint64),
	}
}

// Do runs fn with the session locked.
func (s *WorkflowSession) Do(fn func(s *WorkflowSession)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Issue stamps a new request of the given kind. Any earlier ticket of the
// same kind becomes stale.
func (s *WorkflowSession) Issue(action Action) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.nextSeqLocked()
	s.latest[action] = seq
	return Ticket{Action: action, Seq: seq}
}

// Commit runs fn under the lock if t is still the latest ticket of its kind.
// It reports whether fn ran.
func (s *WorkflowSession) Commit(t Ticket, fn func(s *WorkflowSession)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest[t.Action] != t.Seq {
		return false
	}
	fn(s)
	s.UpdatedAt = time.Now()
	return true
}

// IsCurrent reports whether t is the latest ticket of its kind.
func (s *WorkflowSession) IsCurrent(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[t.Action] == t.Seq
}

// Fire applies a local trigger stamped now. Callers must hold the lock,
// which Do and Commit provide. It reports whether the stage changed.
func (s *WorkflowSession) Fire(trigger workflow.Trigger) bool {
	before := s.State.Stage
	s.State = workflow.Apply(s.State, workflow.LocalEvent(s.nextSeqLocked(), trigger))
	return s.State.Stage != before
}

// Observe applies a backend status stamped with the ticket that fetched it.
// Callers must hold the lock. It reports whether the stage changed.
func (s *WorkflowSession) Observe(t Ticket, rawStatus string) bool {
	s.BackendStatus = rawStatus
	before := s.State.Stage
	s.State = workflow.Apply(s.State, workflow.StatusEvent(t.Seq, workflow.ParseSessionStatus(rawStatus)))
	return s.State.Stage != before
}

// AppendMessage adds a message to the transcript and refreshes the owning
// chat's preview. Callers must hold the lock.
func (s *WorkflowSession) AppendMessage(m backend.ChatMessage) {
	s.Messages = append(s.Messages, m)
	for i := range s.Chats {
		if s.Chats[i].Id == m.ChatId {
			s.Chats[i].LastMessage = m.Text
			s.Chats[i].UpdatedAt = m.CreatedAt
		}
	}
}

// AddChat prepends a chat and makes it current. Callers must hold the lock.
func (s *WorkflowSession) AddChat(c backend.Chat) {
	s.Chats = append([]backend.Chat{c}, s.Chats...)
	s.CurrentChatID = c.Id
}

// ReplaceFirstAnalysis rewrites the text of the first agent analysis message
// in chatID. Callers must hold the lock. It reports whether one was found.
func (s *WorkflowSession) ReplaceFirstAnalysis(chatID, text string) bool {
	for i := range s.Messages {
		m := &s.Messages[i]
		if isAnalysisIn(*m, chatID) {
			m.Text = text
			return true
		}
	}
	return false
}

// FirstAnalysis returns the text of the first agent analysis message in
// chatID. Callers must hold the lock.
func (s *WorkflowSession) FirstAnalysis(chatID string) (string, bool) {
	for _, m := range s.Messages {
		if isAnalysisIn(m, chatID) {
			return m.Text, true
		}
	}
	return "", false
}

func isAnalysisIn(m backend.ChatMessage, chatID string) bool {
	return chatID != "" && m.ChatId == chatID &&
		m.Role == backend.RoleAgent && strings.HasPrefix(m.Id, PrefixAnalysis)
}

// Snapshot is a lock-free copy of a session.
type Snapshot struct {
	ID            string                `json:"id"`
	UserID        string                `json:"user_id"`
	ProjectName   string                `json:"project_name"`
	BackendStatus string                `json:"backend_status,omitempty"`
	State         workflow.State        `json:"state"`
	CurrentChatID string                `json:"current_chat_id,omitempty"`
	Chats         []backend.Chat        `json:"chats"`
	Messages      []backend.ChatMessage `json:"messages"`
	UserPrompt    string                `json:"user_prompt,omitempty"`
	TestCases     []testcase.Record     `json:"test_cases"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func (s *WorkflowSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *WorkflowSession) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:            s.ID,
		UserID:        s.UserID,
		ProjectName:   s.ProjectName,
		BackendStatus: s.BackendStatus,
		State:         s.State,
		CurrentChatID: s.CurrentChatID,
		Chats:         append([]backend.Chat{}, s.Chats...),
		Messages:      append([]backend.ChatMessage{}, s.Messages...),
		UserPrompt:    s.UserPrompt,
		TestCases:     append([]testcase.Record{}, s.TestCases...),
		UpdatedAt:     s.UpdatedAt,
	}
	return snap
}

// MessagesForChat returns the chat's messages in chronological order.
func (s *WorkflowSession) MessagesForChat(chatID string) []backend.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []backend.ChatMessage{}
	for _, m := range s.Messages {
		if m.ChatId == chatID {
			out = append(out, m)
		}
	}
	return out
}

// HasChat reports whether the session owns chatID.
func (s *WorkflowSession) HasChat(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.Chats {
		if c.Id == chatID {
			return true
		}
	}
	return false
}

func (s *WorkflowSession) nextSeqLocked() uint64 {
	s.clock++
	return s.clock
}
