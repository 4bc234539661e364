package study

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Difficulty grades how hard a subtopic is to revise.
type Difficulty string

const (
	// DifficultyEasy marks material the student finds light.
	DifficultyEasy Difficulty = "Easy"
	// DifficultyModerate is the default grade for new subtopics.
	DifficultyModerate Difficulty = "Moderate"
	// DifficultyHard marks material that needs extra attention.
	DifficultyHard Difficulty = "Hard"
)

// PerformanceStatus tracks the outcome of the most recent revision of a subtopic.
type PerformanceStatus string

const (
	// PerformanceNotStarted applies until the first revision is recorded.
	PerformanceNotStarted PerformanceStatus = "Not Started"
	// PerformanceStruggled mirrors a Struggled revision outcome.
	PerformanceStruggled PerformanceStatus = "Struggled"
	// PerformanceMastered mirrors a Mastered revision outcome.
	PerformanceMastered PerformanceStatus = "Mastered"
)

// RevisionPerformance is the outcome recorded with a revision event. A
// "Not Started" value is never recorded as a historical event.
type RevisionPerformance string

const (
	// RevisionStruggled records a session where the material did not stick.
	RevisionStruggled RevisionPerformance = "Struggled"
	// RevisionMastered records a successful session.
	RevisionMastered RevisionPerformance = "Mastered"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidDifficulty indicates an unrecognized difficulty literal.
	ErrInvalidDifficulty = errors.New("study: invalid difficulty")
	// ErrInvalidPerformance indicates an unrecognized revision performance literal.
	ErrInvalidPerformance = errors.New("study: invalid revision performance")
	// ErrInvalidName indicates that an entity name is empty or exceeds storage bounds.
	ErrInvalidName = errors.New("study: invalid name")
)

// ParseDifficulty validates a raw difficulty literal. An empty input resolves
// to the Moderate default.
func ParseDifficulty(rawInput string) (Difficulty, error) {
	trimmed := strings.TrimSpace(rawInput)
	switch trimmed {
	case "":
		return DifficultyModerate, nil
	case string(DifficultyEasy):
		return DifficultyEasy, nil
	case string(DifficultyModerate):
		return DifficultyModerate, nil
	case string(DifficultyHard):
		return DifficultyHard, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, rawInput)
	}
}

// ParseRevisionPerformance validates a raw revision performance literal.
func ParseRevisionPerformance(rawInput string) (RevisionPerformance, error) {
	switch strings.TrimSpace(rawInput) {
	case string(RevisionStruggled):
		return RevisionStruggled, nil
	case string(RevisionMastered):
		return RevisionMastered, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPerformance, rawInput)
	}
}

// EntityName represents a validated subject, topic or subtopic name.
type EntityName string

// NewEntityName validates raw input and returns an EntityName.
func NewEntityName(rawInput string) (EntityName, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxIdentifierLength)
	}
	return EntityName(trimmed), nil
}

// String returns the underlying name.
func (n EntityName) String() string {
	return string(n)
}

// Subject is the root of the study hierarchy.
type Subject struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Name        string    `gorm:"column:name;size:190;not null" json:"name"`
	Description string    `gorm:"column:description;type:text;not null;default:''" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Subject) TableName() string {
	return "subjects"
}

// Topic belongs to exactly one Subject.
type Topic struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	SubjectID   string    `gorm:"column:subject_id;size:190;not null;index:idx_topics_subject" json:"subject_id"`
	Name        string    `gorm:"column:name;size:190;not null" json:"name"`
	Description string    `gorm:"column:description;type:text;not null;default:''" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Topic) TableName() string {
	return "topics"
}

// Subtopic is the revisable unit of study material. It is the only entity
// mutated after creation: direct field edits via update, rollup edits via
// revision recording.
type Subtopic struct {
	ID                string            `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	TopicID           string            `gorm:"column:topic_id;size:190;not null;index:idx_subtopics_topic" json:"topic_id"`
	Name              string            `gorm:"column:name;size:190;not null" json:"name"`
	Description       string            `gorm:"column:description;type:text;not null;default:''" json:"description"`
	Difficulty        Difficulty        `gorm:"column:difficulty;size:32;not null;default:'Moderate'" json:"difficulty"`
	PerformanceStatus PerformanceStatus `gorm:"column:performance_status;size:32;not null;default:'Not Started'" json:"performance_status"`
	LastRevised       *time.Time        `gorm:"column:last_revised" json:"last_revised"`
	RevisionCount     int64             `gorm:"column:revision_count;not null;default:0" json:"revision_count"`
	Notes             string            `gorm:"column:notes;type:text;not null;default:''" json:"notes"`
	CreatedAt         time.Time         `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Subtopic) TableName() string {
	return "subtopics"
}

// RevisionRecord captures one recorded study session outcome for a subtopic.
// Records are append-only and survive deletion of their subtopic.
type RevisionRecord struct {
	ID          string              `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	SubtopicID  string              `gorm:"column:subtopic_id;size:190;not null;index:idx_revision_history_subtopic" json:"subtopic_id"`
	Performance RevisionPerformance `gorm:"column:performance;size:32;not null" json:"performance"`
	Notes       string              `gorm:"column:notes;type:text;not null;default:''" json:"notes"`
	RevisedAt   time.Time           `gorm:"column:revised_at;not null" json:"revised_at"`
}

// TableName provides the explicit table binding for GORM.
func (RevisionRecord) TableName() string {
	return "revision_history"
}

// DashboardStats aggregates exact collection counts at call time.
type DashboardStats struct {
	TotalSubjects   int64 `json:"total_subjects"`
	TotalTopics     int64 `json:"total_topics"`
	TotalSubtopics  int64 `json:"total_subtopics"`
	OverdueCount    int64 `json:"overdue_count"`
	MasteredCount   int64 `json:"mastered_count"`
	StruggledCount  int64 `json:"struggled_count"`
	NotStartedCount int64 `json:"not_started_count"`
}

// Recommendation is one ranked study suggestion.
type Recommendation struct {
	SubtopicID        string  `json:"subtopic_id"`
	SubtopicName      string  `json:"subtopic_name"`
	TopicName         string  `json:"topic_name"`
	SubjectName       string  `json:"subject_name"`
	PriorityScore     float64 `json:"priority_score"`
	Reason            string  `json:"reason"`
	DaysSinceRevision *int    `json:"days_since_revision"`
}

// RecommendationSet is the outcome of a recommendation request. Degraded
// distinguishes "empty because no data" from "empty because the pipeline
// failed"; both surface to the caller as an empty list.
type RecommendationSet struct {
	Items    []Recommendation
	Degraded bool
}

// UpdateSubtopicInput carries a sparse subtopic update. Nil fields are left
// untouched.
type UpdateSubtopicInput struct {
	Name        *string
	Description *string
	Difficulty  *string
	Notes       *string
}

// Empty reports whether the payload carries no recognized fields.
func (in UpdateSubtopicInput) Empty() bool {
	return in.Name == nil && in.Description == nil && in.Difficulty == nil && in.Notes == nil
}
