package server

import (
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

	"github.com/revisionpro/backend/internal/study"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&study.Subject{}, &study.Topic{}, &study.Subtopic{}, &study.RevisionRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := study.NewService(study.ServiceConfig{
		Database:   db,
		IDProvider: study.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct study service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		StudyService: service,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	return handler
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, nil)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestCreateSubjectEndpointReturnsSubject(t *testing.T) {
	handler := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodPost, "/api/subjects", `{"name":"Physics","description":"mechanics and more"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var subject study.Subject
	if err := json.Unmarshal(recorder.Body.Bytes(), &subject); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if subject.ID == "" || subject.Name != "Physics" {
		t.Fatalf("unexpected subject payload: %#v", subject)
	}

	listRecorder := doJSON(t, handler, http.MethodGet, "/api/subjects", "")
	if listRecorder.Code != http.StatusOK {
		t.Fatalf("expected 200 list, got %d", listRecorder.Code)
	}
	var subjects []study.Subject
	if err := json.Unmarshal(listRecorder.Body.Bytes(), &subjects); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(subjects) != 1 || subjects[0].ID != subject.ID {
		t.Fatalf("created subject missing from list: %#v", subjects)
	}
}

func TestCreateSubjectMissingNameReturnsBadRequest(t *testing.T) {
	handler := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodPost, "/api/subjects", `{"description":"unnamed"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestCreateTopicUnknownSubjectReturnsNotFound(t *testing.T) {
	handler := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodPost, "/api/topics", `{"subject_id":"missing","name":"Mechanics"}`)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestDeleteSubjectUnknownReturnsNotFound(t *testing.T) {
	handler := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodDelete, "/api/subjects/missing", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "subject_not_found") {
		t.Fatalf("expected stable error code in body, got %s", recorder.Body.String())
	}
}

func TestUpdateSubtopicEmptyPayloadReturnsBadRequest(t *testing.T) {
	handler := newTestHandler(t)

	subject := createViaAPI(t, handler, "/api/subjects", `{"name":"Physics"}`)
	topic := createViaAPI(t, handler, "/api/topics", fmt.Sprintf(`{"subject_id":%q,"name":"Mechanics"}`, subject["id"]))
	subtopic := createViaAPI(t, handler, "/api/subtopics", fmt.Sprintf(`{"topic_id":%q,"name":"Newton's Laws"}`, topic["id"]))

	recorder := doJSON(t, handler, http.MethodPut, "/api/subtopics/"+subtopic["id"].(string), `{}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestRecordRevisionEndpointUpdatesSubtopic(t *testing.T) {
	handler := newTestHandler(t)

	subject := createViaAPI(t, handler, "/api/subjects", `{"name":"Physics"}`)
	topic := createViaAPI(t, handler, "/api/topics", fmt.Sprintf(`{"subject_id":%q,"name":"Mechanics"}`, subject["id"]))
	subtopic := createViaAPI(t, handler, "/api/subtopics", fmt.Sprintf(`{"topic_id":%q,"name":"Newton's Laws","difficulty":"Hard"}`, topic["id"]))

	recorder := doJSON(t, handler, http.MethodPost, "/api/revisions",
		fmt.Sprintf(`{"subtopic_id":%q,"performance":"Struggled","notes":"second law"}`, subtopic["id"]))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	historyRecorder := doJSON(t, handler, http.MethodGet, "/api/revisions/"+subtopic["id"].(string), "")
	if historyRecorder.Code != http.StatusOK {
		t.Fatalf("expected 200 history, got %d", historyRecorder.Code)
	}
	var records []study.RevisionRecord
	if err := json.Unmarshal(historyRecorder.Body.Bytes(), &records); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(records) != 1 || records[0].Performance != study.RevisionStruggled {
		t.Fatalf("unexpected history payload: %#v", records)
	}
}

func TestRecommendationsInvalidLimitReturnsBadRequest(t *testing.T) {
	handler := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodGet, "/api/recommendations?limit=zero", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestRecommendationsEmptyReturnsEmptyList(t *testing.T) {
	handler := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodGet, "/api/recommendations", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Body.String() != "[]" {
		t.Fatalf("expected empty list body, got %s", recorder.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodGet, "/healthz", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func createViaAPI(t *testing.T, handler http.Handler, path, body string) map[string]any {
	t.Helper()
	recorder := doJSON(t, handler, http.MethodPost, path, body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("create via %s failed with %d: %s", path, recorder.Code, recorder.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	return payload
}
