package study

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequentialIDGenerator struct {
	next int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

// testClock is a mutable clock injected into test services.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

var testBaseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *testClock, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:study_test_%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Subject{}, &Topic{}, &Subtopic{}, &RevisionRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := &testClock{now: testBaseTime}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &sequentialIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct study service: %v", err)
	}

	return service, clock, db
}

func mustCreateSubject(t *testing.T, service *Service, name string) *Subject {
	t.Helper()
	subject, err := service.CreateSubject(context.Background(), name, "")
	if err != nil {
		t.Fatalf("unexpected subject create error: %v", err)
	}
	return subject
}

func mustCreateTopic(t *testing.T, service *Service, subjectID, name string) *Topic {
	t.Helper()
	topic, err := service.CreateTopic(context.Background(), subjectID, name, "")
	if err != nil {
		t.Fatalf("unexpected topic create error: %v", err)
	}
	return topic
}

func mustCreateSubtopic(t *testing.T, service *Service, topicID, name, difficulty string) *Subtopic {
	t.Helper()
	subtopic, err := service.CreateSubtopic(context.Background(), topicID, name, "", difficulty)
	if err != nil {
		t.Fatalf("unexpected subtopic create error: %v", err)
	}
	return subtopic
}

func mustRecordRevision(t *testing.T, service *Service, subtopicID, performance string) *RevisionRecord {
	t.Helper()
	record, err := service.RecordRevision(context.Background(), subtopicID, performance, "")
	if err != nil {
		t.Fatalf("unexpected revision record error: %v", err)
	}
	return record
}
