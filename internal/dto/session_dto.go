package dto

import (
	"time"

	"testcase-workflow-be/pkg/backend"
)

type CreateSessionRequest struct {
	ProjectName string `json:"project_name" validate:"required,max=200"`
}

type SessionResponse struct {
	Id          string     `json:"id"`
	ProjectName string     `json:"project_name"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func NewSessionResponse(s backend.Session) SessionResponse {
	return SessionResponse{
		Id:          s.ID,
		ProjectName: s.ProjectName,
		Status:      s.DisplayStatus(),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type SessionDetailsResponse struct {
	Details  *backend.SessionDetails `json:"details"`
	Workflow WorkflowResponse        `json:"workflow"`
}
