package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/revisionpro/backend/internal/server"
	"github.com/revisionpro/backend/internal/study"
)

const jsonContentType = "application/json"

func TestStudyTrackingFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:integration_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&study.Subject{}, &study.Topic{}, &study.Subtopic{}, &study.RevisionRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	studyService, err := study.NewService(study.ServiceConfig{
		Database:   db,
		IDProvider: study.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build study service: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		StudyService: studyService,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	ts := httptest.NewServer(handler)
	defer ts.Close()

	subject := postJSON(t, ts, "/api/subjects", map[string]any{"name": "Physics"})
	topic := postJSON(t, ts, "/api/topics", map[string]any{
		"subject_id": subject["id"],
		"name":       "Mechanics",
	})
	subtopic := postJSON(t, ts, "/api/subtopics", map[string]any{
		"topic_id":   topic["id"],
		"name":       "Newton's Laws",
		"difficulty": "Hard",
	})

	revision := postJSON(t, ts, "/api/revisions", map[string]any{
		"subtopic_id": subtopic["id"],
		"performance": "Struggled",
		"notes":       "third law confusion",
	})
	if revision["performance"] != "Struggled" {
		t.Fatalf("unexpected revision payload: %#v", revision)
	}

	var stats study.DashboardStats
	getJSON(t, ts, "/api/dashboard", &stats)
	if stats.TotalSubjects != 1 || stats.TotalTopics != 1 || stats.TotalSubtopics != 1 {
		t.Fatalf("unexpected totals: %#v", stats)
	}
	if stats.StruggledCount != 1 {
		t.Fatalf("expected one struggled subtopic, got %d", stats.StruggledCount)
	}

	var recommendations []study.Recommendation
	getJSON(t, ts, "/api/recommendations", &recommendations)
	if len(recommendations) != 1 {
		t.Fatalf("expected exactly one recommendation, got %d", len(recommendations))
	}
	entry := recommendations[0]
	if entry.SubtopicName != "Newton's Laws" || entry.TopicName != "Mechanics" || entry.SubjectName != "Physics" {
		t.Fatalf("unexpected recommendation ancestry: %#v", entry)
	}
	// Revised today, Struggled, Hard: 5.0 + 0.0 + 2.0 + 1.0.
	if entry.PriorityScore != 8.0 {
		t.Fatalf("expected priority score 8.0, got %v", entry.PriorityScore)
	}
	if !strings.Contains(entry.Reason, "Previous difficulty noted.") {
		t.Fatalf("expected struggled note in reason, got %q", entry.Reason)
	}

	// Cascade: deleting the subject empties the hierarchy but keeps history.
	deleteResource(t, ts, "/api/subjects/"+subject["id"].(string))

	var subtopics []study.Subtopic
	getJSON(t, ts, "/api/subtopics", &subtopics)
	if len(subtopics) != 0 {
		t.Fatalf("expected empty hierarchy after cascade, got %d subtopics", len(subtopics))
	}

	var history []study.RevisionRecord
	getJSON(t, ts, "/api/revisions/"+subtopic["id"].(string), &history)
	if len(history) != 1 {
		t.Fatalf("revision history must survive the cascade, got %d rows", len(history))
	}
}

func postJSON(t *testing.T, ts *httptest.Server, path string, payload map[string]any) map[string]any {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	response, err := http.Post(ts.URL+path, jsonContentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request to %s failed: %v", path, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("request to %s returned %d", path, response.StatusCode)
	}
	var decoded map[string]any
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response from %s: %v", path, err)
	}
	return decoded
}

func getJSON(t *testing.T, ts *httptest.Server, path string, target any) {
	t.Helper()
	response, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("request to %s failed: %v", path, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("request to %s returned %d", path, response.StatusCode)
	}
	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response from %s: %v", path, err)
	}
}

func deleteResource(t *testing.T, ts *httptest.Server, path string) {
	t.Helper()
	request, err := http.NewRequest(http.MethodDelete, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("failed to build delete request: %v", err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("delete request to %s failed: %v", path, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("delete request to %s returned %d", path, response.StatusCode)
	}
}
