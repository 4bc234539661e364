package study

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// store encapsulates all persistence access for the four study collections.
// Referential checks and cascades go through it exclusively so no caller can
// bypass the hierarchy rules.
type store struct {
	db *gorm.DB
}

func newStore(db *gorm.DB) store {
	return store{db: db}
}

func (st store) createSubject(ctx context.Context, subject *Subject) error {
	return st.db.WithContext(ctx).Create(subject).Error
}

func (st store) subjectByID(ctx context.Context, id string) (*Subject, error) {
	var subject Subject
	err := st.db.WithContext(ctx).Where("id = ?", id).Take(&subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (st store) listSubjects(ctx context.Context) ([]Subject, error) {
	var subjects []Subject
	err := st.db.WithContext(ctx).Order("created_at ASC").Find(&subjects).Error
	return subjects, err
}

func (st store) deleteSubject(ctx context.Context, id string) error {
	return st.db.WithContext(ctx).Where("id = ?", id).Delete(&Subject{}).Error
}

func (st store) createTopic(ctx context.Context, topic *Topic) error {
	return st.db.WithContext(ctx).Create(topic).Error
}

func (st store) topicByID(ctx context.Context, id string) (*Topic, error) {
	var topic Topic
	err := st.db.WithContext(ctx).Where("id = ?", id).Take(&topic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

func (st store) listTopics(ctx context.Context, subjectID string) ([]Topic, error) {
	query := st.db.WithContext(ctx).Order("created_at ASC")
	if subjectID != "" {
		query = query.Where("subject_id = ?", subjectID)
	}
	var topics []Topic
	err := query.Find(&topics).Error
	return topics, err
}

func (st store) topicIDsBySubject(ctx context.Context, subjectID string) ([]string, error) {
	var ids []string
	err := st.db.WithContext(ctx).Model(&Topic{}).
		Where("subject_id = ?", subjectID).
		Pluck("id", &ids).Error
	return ids, err
}

func (st store) deleteTopic(ctx context.Context, id string) error {
	return st.db.WithContext(ctx).Where("id = ?", id).Delete(&Topic{}).Error
}

func (st store) deleteTopicsBySubject(ctx context.Context, subjectID string) error {
	return st.db.WithContext(ctx).Where("subject_id = ?", subjectID).Delete(&Topic{}).Error
}

func (st store) createSubtopic(ctx context.Context, subtopic *Subtopic) error {
	return st.db.WithContext(ctx).Create(subtopic).Error
}

func (st store) subtopicByID(ctx context.Context, id string) (*Subtopic, error) {
	var subtopic Subtopic
	err := st.db.WithContext(ctx).Where("id = ?", id).Take(&subtopic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subtopic, nil
}

func (st store) listSubtopics(ctx context.Context, topicID string) ([]Subtopic, error) {
	query := st.db.WithContext(ctx).Order("created_at ASC")
	if topicID != "" {
		query = query.Where("topic_id = ?", topicID)
	}
	var subtopics []Subtopic
	err := query.Find(&subtopics).Error
	return subtopics, err
}

// mostOverdueSubtopics returns up to limit subtopics ordered never-revised
// first, then oldest revision first.
func (st store) mostOverdueSubtopics(ctx context.Context, limit int) ([]Subtopic, error) {
	var subtopics []Subtopic
	err := st.db.WithContext(ctx).
		Order("last_revised IS NOT NULL, last_revised ASC, created_at ASC").
		Limit(limit).
		Find(&subtopics).Error
	return subtopics, err
}

func (st store) updateSubtopicFields(ctx context.Context, id string, fields map[string]any) error {
	return st.db.WithContext(ctx).Model(&Subtopic{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (st store) deleteSubtopic(ctx context.Context, id string) error {
	return st.db.WithContext(ctx).Where("id = ?", id).Delete(&Subtopic{}).Error
}

func (st store) deleteSubtopicsByTopic(ctx context.Context, topicID string) error {
	return st.db.WithContext(ctx).Where("topic_id = ?", topicID).Delete(&Subtopic{}).Error
}

func (st store) deleteSubtopicsByTopics(ctx context.Context, topicIDs []string) error {
	if len(topicIDs) == 0 {
		return nil
	}
	return st.db.WithContext(ctx).Where("topic_id IN ?", topicIDs).Delete(&Subtopic{}).Error
}

func (st store) createRevision(ctx context.Context, record *RevisionRecord) error {
	return st.db.WithContext(ctx).Create(record).Error
}

func (st store) revisionsBySubtopic(ctx context.Context, subtopicID string) ([]RevisionRecord, error) {
	var records []RevisionRecord
	err := st.db.WithContext(ctx).
		Where("subtopic_id = ?", subtopicID).
		Order("revised_at ASC").
		Find(&records).Error
	return records, err
}

func (st store) countSubjects(ctx context.Context) (int64, error) {
	var count int64
	err := st.db.WithContext(ctx).Model(&Subject{}).Count(&count).Error
	return count, err
}

func (st store) countTopics(ctx context.Context) (int64, error) {
	var count int64
	err := st.db.WithContext(ctx).Model(&Topic{}).Count(&count).Error
	return count, err
}

func (st store) countSubtopics(ctx context.Context) (int64, error) {
	var count int64
	err := st.db.WithContext(ctx).Model(&Subtopic{}).Count(&count).Error
	return count, err
}

func (st store) countSubtopicsByStatus(ctx context.Context, status PerformanceStatus) (int64, error) {
	var count int64
	err := st.db.WithContext(ctx).Model(&Subtopic{}).
		Where("performance_status = ?", string(status)).
		Count(&count).Error
	return count, err
}

func (st store) countOverdueSubtopics(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := st.db.WithContext(ctx).Model(&Subtopic{}).
		Where("last_revised IS NULL OR last_revised < ?", cutoff).
		Count(&count).Error
	return count, err
}
