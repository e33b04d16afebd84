package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerResult is the persisted outcome of an answer-based phase (1 or 2).
type AnswerResult struct {
	ID             uuid.UUID         `json:"id"`
	ExaminationID  string            `json:"examination_id"`
	Phase          Phase             `json:"phase"`
	UserAnswers    map[string]any    `json:"user_answers"`
	Score          int               `json:"score"`
	TotalQuestions int               `json:"total_questions"`
	Percentage     float64           `json:"percentage"`
	IsPassed       bool              `json:"is_passed"`
	CreatedAt      time.Time         `json:"created_at"`
}

// UploadResult is the persisted outcome of an upload-based phase (3 or 4).
type UploadResult struct {
	ID            uuid.UUID `json:"id"`
	ExaminationID string    `json:"examination_id"`
	Phase         Phase     `json:"phase"`
	FileName      string    `json:"file_name"`
	FileURL       string    `json:"file_url"`
	ContentType   string    `json:"content_type"`
	SizeBytes     int64     `json:"size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExaminationResults groups everything recorded for one identifier.
type ExaminationResults struct {
	Examination ExaminationRecord `json:"examination"`
	Answers     []AnswerResult    `json:"answers"`
	Uploads     []UploadResult    `json:"uploads"`
}

// SubmitAnswersRequest carries the candidate's answer mapping. Values are
// decoded loosely so a malformed payload still reaches scoring.
type SubmitAnswersRequest struct {
	Answers map[string]any `json:"answers" binding:"required"`
}
