package backend

import (
	"time"

	"testcase-workflow-be/pkg/testcase"
)

// Session is a project-scoped unit of work tracked by the backend.
type Session struct {
	ID          string     `json:"id"`
	ProjectName string     `json:"project_name"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// DisplayStatus is the label the dashboard shows; freshly created sessions
// read as drafts.
func (s Session) DisplayStatus() string {
	if s.Status == "created" || s.Status == "" {
		return "draft"
	}
	return s.Status
}

// Requirement is one analysed requirement stored against a session.
type Requirement struct {
	Id              string  `json:"id"`
	SessionId       string  `json:"session_id"`
	OriginalContent string  `json:"original_content"`
	EditedContent   *string `json:"edited_content"`
	RequirementType string  `json:"requirement_type"`
	Priority        string  `json:"priority"`
	Status          string  `json:"status"`
	Version         int     `json:"version"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// StoredTestCase is a test case as persisted by the backend.
type StoredTestCase struct {
	Id                 string   `json:"id"`
	SessionId          string   `json:"session_id"`
	TestName           string   `json:"test_name"`
	TestDescription    string   `json:"test_description"`
	TestSteps          []string `json:"test_steps"`
	ExpectedResults    string   `json:"expected_results"`
	TestType           string   `json:"test_type"`
	Priority           string   `json:"priority"`
	Status             string   `json:"status"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
	LinkedRequirements []string `json:"linked_requirements"`
}

// SessionDetails is the full backend view of a session. Status drives the
// workflow stage override.
type SessionDetails struct {
	SessionId                 string           `json:"session_id"`
	UserId                    string           `json:"user_id"`
	ProjectName               string           `json:"project_name"`
	UserPrompt                string           `json:"user_prompt"`
	Status                    string           `json:"status"`
	CreatedAt                 string           `json:"created_at"`
	UpdatedAt                 string           `json:"updated_at"`
	RequirementsCount         int              `json:"requirements_count"`
	EditedRequirementsCount   int              `json:"edited_requirements_count"`
	TestCasesCount            int              `json:"test_cases_count"`
	RequirementTestLinksCount int              `json:"requirement_test_links_count"`
	Requirements              []Requirement    `json:"requirements"`
	TestCases                 []StoredTestCase `json:"test_cases"`
}

// ContextResult is the outcome of a RAG context fetch.
type ContextResult struct {
	Summary   string `json:"summary"`
	ContextId string `json:"context_id,omitempty"`
}

// AnalysisResult is the outcome of a requirements analysis.
type AnalysisResult struct {
	Analysis  string `json:"analysis"`
	AgentUsed string `json:"agent_used,omitempty"`
}

// EditResult acknowledges an edit of the analysed requirements.
type EditResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GenerationResult carries the generated test cases. RawResponse is set when
// the backend answered with free text that had to be parsed.
type GenerationResult struct {
	TestCases   []testcase.Record `json:"testCases"`
	RawResponse string            `json:"rawResponse,omitempty"`
}

// Chat groups messages inside a session.
type Chat struct {
	Id          string    `json:"id"`
	Title       string    `json:"title"`
	SessionId   string    `json:"session_id"`
	LastMessage string    `json:"last_message,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// ChatMessage is one entry of a chat transcript.
type ChatMessage struct {
	Id        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	ChatId    string    `json:"chat_id"`
}

// UploadRequest describes a document handed to the ingestion pipeline.
type UploadRequest struct {
	Filename     string
	Content      []byte
	DocumentId   string
	DocumentType string
	EnableRAG    bool
	Metadata     map[string]string
}

// UploadResult summarises what ingestion did with a document.
type UploadResult struct {
	Status           string `json:"status"`
	DocumentId       string `json:"document_id"`
	FileType         string `json:"file_type,omitempty"`
	ChunksCreated    int    `json:"chunks_created"`
	RAGChunksCreated int    `json:"rag_chunks_created"`
	Message          string `json:"message"`
}
