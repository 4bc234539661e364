package study

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrNotFound indicates that a referenced entity id does not resolve.
	ErrNotFound = errors.New("study: not found")
	// ErrInvalidArgument indicates a request payload the service cannot act on.
	ErrInvalidArgument = errors.New("study: invalid argument")
)

// ServiceError carries a stable operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the stable error code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew     = "study.service.new"
	opCreateSubject  = "study.create_subject"
	opListSubjects   = "study.list_subjects"
	opDeleteSubject  = "study.delete_subject"
	opCreateTopic    = "study.create_topic"
	opListTopics     = "study.list_topics"
	opDeleteTopic    = "study.delete_topic"
	opCreateSubtopic = "study.create_subtopic"
	opListSubtopics  = "study.list_subtopics"
	opUpdateSubtopic = "study.update_subtopic"
	opDeleteSubtopic = "study.delete_subtopic"
	opRecordRevision = "study.record_revision"
	opListRevisions  = "study.list_revisions"
	opDashboardStats = "study.dashboard_stats"
	opRecommend      = "study.recommend"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig carries the dependencies injected into a Service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues opaque unique identifiers for new entities.
type IDProvider interface {
	NewID() (string, error)
}

// Service owns the study hierarchy: referential checks on create, ordered
// cascading deletes, revision recording, dashboard aggregation and
// recommendations. All persisted state is reached through its store.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and returns a ready Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateSubject creates a root hierarchy entity.
func (s *Service) CreateSubject(ctx context.Context, name, description string) (*Subject, error) {
	validName, err := NewEntityName(name)
	if err != nil {
		return nil, newServiceError(opCreateSubject, "invalid_name", errors.Join(ErrInvalidArgument, err))
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateSubject, "id_generation_failed", err)
		return nil, newServiceError(opCreateSubject, "id_generation_failed", err)
	}

	subject := &Subject{
		ID:          id,
		Name:        validName.String(),
		Description: description,
		CreatedAt:   s.clock().UTC(),
	}
	if err := newStore(s.db).createSubject(ctx, subject); err != nil {
		s.logError(opCreateSubject, "insert_failed", err)
		return nil, newServiceError(opCreateSubject, "insert_failed", err)
	}
	return subject, nil
}

// ListSubjects returns every subject ordered by creation time.
func (s *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	subjects, err := newStore(s.db).listSubjects(ctx)
	if err != nil {
		s.logError(opListSubjects, "query_failed", err)
		return nil, newServiceError(opListSubjects, "query_failed", err)
	}
	return subjects, nil
}

// DeleteSubject removes a subject together with every topic and subtopic
// beneath it. Removal runs subtopics first, then topics, then the subject, in
// one transaction, so no intermediate state points at a deleted ancestor.
// Revision history rows are retained as an audit log.
func (s *Service) DeleteSubject(ctx context.Context, id string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := newStore(tx)
		subject, err := st.subjectByID(ctx, id)
		if err != nil {
			return newServiceError(opDeleteSubject, "select_failed", err)
		}
		if subject == nil {
			return newServiceError(opDeleteSubject, "subject_not_found", fmt.Errorf("%w: subject %s", ErrNotFound, id))
		}

		topicIDs, err := st.topicIDsBySubject(ctx, id)
		if err != nil {
			return newServiceError(opDeleteSubject, "topic_lookup_failed", err)
		}
		if err := st.deleteSubtopicsByTopics(ctx, topicIDs); err != nil {
			return newServiceError(opDeleteSubject, "subtopic_delete_failed", err)
		}
		if err := st.deleteTopicsBySubject(ctx, id); err != nil {
			return newServiceError(opDeleteSubject, "topic_delete_failed", err)
		}
		if err := st.deleteSubject(ctx, id); err != nil {
			return newServiceError(opDeleteSubject, "subject_delete_failed", err)
		}
		return nil
	})
	if txErr != nil && !errors.Is(txErr, ErrNotFound) {
		s.logError(opDeleteSubject, "cascade_failed", txErr, zap.String("subject_id", id))
	}
	return txErr
}

// CreateTopic creates a topic under an existing subject.
func (s *Service) CreateTopic(ctx context.Context, subjectID, name, description string) (*Topic, error) {
	validName, err := NewEntityName(name)
	if err != nil {
		return nil, newServiceError(opCreateTopic, "invalid_name", errors.Join(ErrInvalidArgument, err))
	}

	st := newStore(s.db)
	subject, err := st.subjectByID(ctx, subjectID)
	if err != nil {
		s.logError(opCreateTopic, "subject_lookup_failed", err, zap.String("subject_id", subjectID))
		return nil, newServiceError(opCreateTopic, "subject_lookup_failed", err)
	}
	if subject == nil {
		return nil, newServiceError(opCreateTopic, "subject_not_found", fmt.Errorf("%w: subject %s", ErrNotFound, subjectID))
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateTopic, "id_generation_failed", err)
		return nil, newServiceError(opCreateTopic, "id_generation_failed", err)
	}

	topic := &Topic{
		ID:          id,
		SubjectID:   subjectID,
		Name:        validName.String(),
		Description: description,
		CreatedAt:   s.clock().UTC(),
	}
	if err := st.createTopic(ctx, topic); err != nil {
		s.logError(opCreateTopic, "insert_failed", err)
		return nil, newServiceError(opCreateTopic, "insert_failed", err)
	}
	return topic, nil
}

// ListTopics returns topics, filtered to one subject when subjectID is set.
func (s *Service) ListTopics(ctx context.Context, subjectID string) ([]Topic, error) {
	topics, err := newStore(s.db).listTopics(ctx, subjectID)
	if err != nil {
		s.logError(opListTopics, "query_failed", err)
		return nil, newServiceError(opListTopics, "query_failed", err)
	}
	return topics, nil
}

// DeleteTopic removes a topic and every subtopic beneath it in one
// transaction. Revision history rows are retained.
func (s *Service) DeleteTopic(ctx context.Context, id string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := newStore(tx)
		topic, err := st.topicByID(ctx, id)
		if err != nil {
			return newServiceError(opDeleteTopic, "select_failed", err)
		}
		if topic == nil {
			return newServiceError(opDeleteTopic, "topic_not_found", fmt.Errorf("%w: topic %s", ErrNotFound, id))
		}

		if err := st.deleteSubtopicsByTopic(ctx, id); err != nil {
			return newServiceError(opDeleteTopic, "subtopic_delete_failed", err)
		}
		if err := st.deleteTopic(ctx, id); err != nil {
			return newServiceError(opDeleteTopic, "topic_delete_failed", err)
		}
		return nil
	})
	if txErr != nil && !errors.Is(txErr, ErrNotFound) {
		s.logError(opDeleteTopic, "cascade_failed", txErr, zap.String("topic_id", id))
	}
	return txErr
}

// CreateSubtopic creates a subtopic under an existing topic. An empty
// difficulty resolves to Moderate.
func (s *Service) CreateSubtopic(ctx context.Context, topicID, name, description, difficulty string) (*Subtopic, error) {
	validName, err := NewEntityName(name)
	if err != nil {
		return nil, newServiceError(opCreateSubtopic, "invalid_name", errors.Join(ErrInvalidArgument, err))
	}
	validDifficulty, err := ParseDifficulty(difficulty)
	if err != nil {
		return nil, newServiceError(opCreateSubtopic, "invalid_difficulty", errors.Join(ErrInvalidArgument, err))
	}

	st := newStore(s.db)
	topic, err := st.topicByID(ctx, topicID)
	if err != nil {
		s.logError(opCreateSubtopic, "topic_lookup_failed", err, zap.String("topic_id", topicID))
		return nil, newServiceError(opCreateSubtopic, "topic_lookup_failed", err)
	}
	if topic == nil {
		return nil, newServiceError(opCreateSubtopic, "topic_not_found", fmt.Errorf("%w: topic %s", ErrNotFound, topicID))
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateSubtopic, "id_generation_failed", err)
		return nil, newServiceError(opCreateSubtopic, "id_generation_failed", err)
	}

	subtopic := &Subtopic{
		ID:                id,
		TopicID:           topicID,
		Name:              validName.String(),
		Description:       description,
		Difficulty:        validDifficulty,
		PerformanceStatus: PerformanceNotStarted,
		RevisionCount:     0,
		CreatedAt:         s.clock().UTC(),
	}
	if err := st.createSubtopic(ctx, subtopic); err != nil {
		s.logError(opCreateSubtopic, "insert_failed", err)
		return nil, newServiceError(opCreateSubtopic, "insert_failed", err)
	}
	return subtopic, nil
}

// ListSubtopics returns subtopics, filtered to one topic when topicID is set.
func (s *Service) ListSubtopics(ctx context.Context, topicID string) ([]Subtopic, error) {
	subtopics, err := newStore(s.db).listSubtopics(ctx, topicID)
	if err != nil {
		s.logError(opListSubtopics, "query_failed", err)
		return nil, newServiceError(opListSubtopics, "query_failed", err)
	}
	return subtopics, nil
}

// UpdateSubtopic applies a sparse field update. Absent fields are left
// untouched; a payload with zero recognized fields is rejected.
func (s *Service) UpdateSubtopic(ctx context.Context, id string, input UpdateSubtopicInput) (*Subtopic, error) {
	if input.Empty() {
		return nil, newServiceError(opUpdateSubtopic, "empty_payload", fmt.Errorf("%w: no recognized fields", ErrInvalidArgument))
	}

	fields := map[string]any{}
	if input.Name != nil {
		validName, err := NewEntityName(*input.Name)
		if err != nil {
			return nil, newServiceError(opUpdateSubtopic, "invalid_name", errors.Join(ErrInvalidArgument, err))
		}
		fields["name"] = validName.String()
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Difficulty != nil {
		validDifficulty, err := ParseDifficulty(*input.Difficulty)
		if err != nil {
			return nil, newServiceError(opUpdateSubtopic, "invalid_difficulty", errors.Join(ErrInvalidArgument, err))
		}
		fields["difficulty"] = string(validDifficulty)
	}
	if input.Notes != nil {
		fields["notes"] = *input.Notes
	}

	st := newStore(s.db)
	subtopic, err := st.subtopicByID(ctx, id)
	if err != nil {
		s.logError(opUpdateSubtopic, "select_failed", err, zap.String("subtopic_id", id))
		return nil, newServiceError(opUpdateSubtopic, "select_failed", err)
	}
	if subtopic == nil {
		return nil, newServiceError(opUpdateSubtopic, "subtopic_not_found", fmt.Errorf("%w: subtopic %s", ErrNotFound, id))
	}

	if err := st.updateSubtopicFields(ctx, id, fields); err != nil {
		s.logError(opUpdateSubtopic, "update_failed", err, zap.String("subtopic_id", id))
		return nil, newServiceError(opUpdateSubtopic, "update_failed", err)
	}

	updated, err := st.subtopicByID(ctx, id)
	if err != nil || updated == nil {
		s.logError(opUpdateSubtopic, "reload_failed", err, zap.String("subtopic_id", id))
		return nil, newServiceError(opUpdateSubtopic, "reload_failed", err)
	}
	return updated, nil
}

// DeleteSubtopic removes one subtopic. Its revision history rows are retained.
func (s *Service) DeleteSubtopic(ctx context.Context, id string) error {
	st := newStore(s.db)
	subtopic, err := st.subtopicByID(ctx, id)
	if err != nil {
		s.logError(opDeleteSubtopic, "select_failed", err, zap.String("subtopic_id", id))
		return newServiceError(opDeleteSubtopic, "select_failed", err)
	}
	if subtopic == nil {
		return newServiceError(opDeleteSubtopic, "subtopic_not_found", fmt.Errorf("%w: subtopic %s", ErrNotFound, id))
	}
	if err := st.deleteSubtopic(ctx, id); err != nil {
		s.logError(opDeleteSubtopic, "delete_failed", err, zap.String("subtopic_id", id))
		return newServiceError(opDeleteSubtopic, "delete_failed", err)
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("study service error", attrs...)
}
