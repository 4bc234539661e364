package study

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecordRevision appends a revision history row and updates the parent
// subtopic's rollup fields (last_revised, revision_count, performance_status)
// as one logical event. Both writes run in one transaction with the history
// insert ordered first, so a partial failure can only leave an under-counted
// subtopic, never a rollup with no matching history.
func (s *Service) RecordRevision(ctx context.Context, subtopicID, performance, notes string) (*RevisionRecord, error) {
	validPerformance, err := ParseRevisionPerformance(performance)
	if err != nil {
		return nil, newServiceError(opRecordRevision, "invalid_performance", errors.Join(ErrInvalidArgument, err))
	}

	var record *RevisionRecord
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := newStore(tx)
		subtopic, err := st.subtopicByID(ctx, subtopicID)
		if err != nil {
			return newServiceError(opRecordRevision, "select_failed", err)
		}
		if subtopic == nil {
			return newServiceError(opRecordRevision, "subtopic_not_found", fmt.Errorf("%w: subtopic %s", ErrNotFound, subtopicID))
		}

		id, err := s.idProvider.NewID()
		if err != nil {
			return newServiceError(opRecordRevision, "id_generation_failed", err)
		}

		revisedAt := s.clock().UTC()
		record = &RevisionRecord{
			ID:          id,
			SubtopicID:  subtopicID,
			Performance: validPerformance,
			Notes:       notes,
			RevisedAt:   revisedAt,
		}
		if err := st.createRevision(ctx, record); err != nil {
			return newServiceError(opRecordRevision, "history_insert_failed", err)
		}

		rollup := map[string]any{
			"last_revised":       revisedAt,
			"revision_count":     subtopic.RevisionCount + 1,
			"performance_status": string(validPerformance),
		}
		if err := st.updateSubtopicFields(ctx, subtopicID, rollup); err != nil {
			return newServiceError(opRecordRevision, "rollup_update_failed", err)
		}
		return nil
	})
	if txErr != nil {
		if !errors.Is(txErr, ErrNotFound) {
			s.logError(opRecordRevision, "transaction_failed", txErr, zap.String("subtopic_id", subtopicID))
		}
		return nil, txErr
	}
	return record, nil
}

// ListRevisions returns the recorded history for one subtopic, oldest first.
// The subtopic itself may no longer exist; history outlives its subtopic.
func (s *Service) ListRevisions(ctx context.Context, subtopicID string) ([]RevisionRecord, error) {
	records, err := newStore(s.db).revisionsBySubtopic(ctx, subtopicID)
	if err != nil {
		s.logError(opListRevisions, "query_failed", err, zap.String("subtopic_id", subtopicID))
		return nil, newServiceError(opListRevisions, "query_failed", err)
	}
	return records, nil
}
