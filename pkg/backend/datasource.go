package backend

import "context"

// DefaultGeneratePrompt is sent when test-case generation is requested
// without a prompt.
const DefaultGeneratePrompt = "Generate comprehensive test cases for healthcare application"

// DataSource is the contract of the remote test-case generation backend. One
// implementation is chosen at startup: LiveClient talks HTTP, FixtureClient
// serves canned data.
type DataSource interface {
	CreateSession(ctx context.Context, projectName string) (*Session, error)
	GetUserSessions(ctx context.Context) ([]Session, error)
	GetActiveSessions(ctx context.Context) ([]Session, error)
	GetSessionDetails(ctx context.Context, sessionId string) (*SessionDetails, error)

	FetchContext(ctx context.Context, sessionId, prompt string) (*ContextResult, error)
	AnalyzeRequirements(ctx context.Context, sessionId, prompt string) (*AnalysisResult, error)
	EditRequirements(ctx context.Context, sessionId string, requirements []string) (*EditResult, error)
	GenerateTestCases(ctx context.Context, sessionId, prompt string) (*GenerationResult, error)

	SendMessage(ctx context.Context, chatId, text string) (*ChatMessage, error)
	GetChats(ctx context.Context, sessionId string) ([]Chat, error)
	GetMessages(ctx context.Context, chatId string) ([]ChatMessage, error)

	UploadDocument(ctx context.Context, req UploadRequest) (*UploadResult, error)
}
