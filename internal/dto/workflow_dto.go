package dto

import (
	"strings"
	"time"

	"testcase-workflow-be/pkg/backend"
	"testcase-workflow-be/pkg/store"
	"testcase-workflow-be/pkg/testcase"
	"testcase-workflow-be/pkg/workflow"
)

type FetchContextRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// AnalyzeRequest falls back to the prompt given at context fetch when Prompt
// is empty.
type AnalyzeRequest struct {
	Prompt string `json:"prompt"`
}

type SaveAnalysisRequest struct {
	Analysis string `json:"analysis" validate:"required"`
}

type GenerateTestCasesRequest struct {
	Prompt string `json:"prompt"`
}

type StageResponse struct {
	Id          workflow.Stage  `json:"id"`
	Description string          `json:"description"`
	Source      workflow.Source `json:"source"`
}

type WorkflowResponse struct {
	SessionId     string                `json:"session_id"`
	ProjectName   string                `json:"project_name"`
	BackendStatus string                `json:"backend_status,omitempty"`
	Stage         StageResponse         `json:"stage"`
	Steps         []workflow.Step       `json:"steps"`
	CurrentChatId string                `json:"current_chat_id,omitempty"`
	UserPrompt    string                `json:"user_prompt,omitempty"`
	Analysis      string                `json:"analysis,omitempty"`
	Chats         []backend.Chat        `json:"chats"`
	Messages      []backend.ChatMessage `json:"messages"`
	TestCases     []testcase.Record     `json:"test_cases"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// NewWorkflowResponse renders a snapshot. Messages are limited to the
// current chat.
func NewWorkflowResponse(snap store.Snapshot) WorkflowResponse {
	messages := []backend.ChatMessage{}
	analysis := ""
	for _, m := range snap.Messages {
		if m.ChatId != snap.CurrentChatID {
			continue
		}
		messages = append(messages, m)
		if analysis == "" && m.Role == backend.RoleAgent && strings.HasPrefix(m.Id, store.PrefixAnalysis) {
			analysis = m.Text
		}
	}

	return WorkflowResponse{
		SessionId:     snap.ID,
		ProjectName:   snap.ProjectName,
		BackendStatus: snap.BackendStatus,
		Stage: StageResponse{
			Id:          snap.State.Stage,
			Description: snap.State.Stage.Description(),
			Source:      snap.State.Source,
		},
		Steps:         workflow.Steps(snap.State.Stage),
		CurrentChatId: snap.CurrentChatID,
		UserPrompt:    snap.UserPrompt,
		Analysis:      analysis,
		Chats:         snap.Chats,
		Messages:      messages,
		TestCases:     snap.TestCases,
		UpdatedAt:     snap.UpdatedAt,
	}
}

type SendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type SendMessageResponse struct {
	Sent  backend.ChatMessage `json:"sent"`
	Reply backend.ChatMessage `json:"reply"`
}

type UploadDocumentResponse struct {
	Result    *backend.UploadResult `json:"result"`
	SessionId string                `json:"session_id,omitempty"`
}

// UploadDocumentRequest mirrors the multipart form fields.
type UploadDocumentRequest struct {
	Filename     string `validate:"required"`
	Content      []byte `validate:"required"`
	DocumentId   string
	DocumentType string
	EnableRAG    bool
	SessionId    string
	Metadata     map[string]string
}
