package study

import (
	"context"
	"testing"
	"time"
)

func TestOverdueCutoffTruncatesToStartOfDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 45, 12, 0, time.UTC)
	expected := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	if cutoff := overdueCutoff(now); !cutoff.Equal(expected) {
		t.Fatalf("expected cutoff %v, got %v", expected, cutoff)
	}
}

func TestDashboardStatsCountsCollections(t *testing.T) {
	service, _, _ := newTestService(t)
	subject := mustCreateSubject(t, service, "Physics")
	topic := mustCreateTopic(t, service, subject.ID, "Mechanics")
	first := mustCreateSubtopic(t, service, topic.ID, "Newton's Laws", "")
	second := mustCreateSubtopic(t, service, topic.ID, "Momentum", "")
	mustCreateSubtopic(t, service, topic.ID, "Energy", "")

	mustRecordRevision(t, service, first.ID, "Mastered")
	mustRecordRevision(t, service, second.ID, "Struggled")

	stats, err := service.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected stats error: %v", err)
	}
	if stats.TotalSubjects != 1 || stats.TotalTopics != 1 || stats.TotalSubtopics != 3 {
		t.Fatalf("unexpected totals: %#v", stats)
	}
	if stats.MasteredCount != 1 || stats.StruggledCount != 1 || stats.NotStartedCount != 1 {
		t.Fatalf("unexpected status counts: %#v", stats)
	}
}

func TestDashboardOverdueBoundaries(t *testing.T) {
	service, clock, _ := newTestService(t)
	subject := mustCreateSubject(t, service, "Physics")
	topic := mustCreateTopic(t, service, subject.ID, "Mechanics")

	mustCreateSubtopic(t, service, topic.ID, "Never Revised", "")

	eightDaysAgo := mustCreateSubtopic(t, service, topic.ID, "Eight Days Ago", "")
	sixDaysAgo := mustCreateSubtopic(t, service, topic.ID, "Six Days Ago", "")
	today := mustCreateSubtopic(t, service, topic.ID, "Today", "")

	clock.now = testBaseTime.AddDate(0, 0, -8)
	mustRecordRevision(t, service, eightDaysAgo.ID, "Mastered")
	clock.now = testBaseTime.AddDate(0, 0, -6)
	mustRecordRevision(t, service, sixDaysAgo.ID, "Mastered")
	clock.now = testBaseTime
	mustRecordRevision(t, service, today.ID, "Mastered")

	stats, err := service.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected stats error: %v", err)
	}
	// Never revised and eight-days-ago are overdue; six-days-ago and today are not.
	if stats.OverdueCount != 2 {
		t.Fatalf("expected overdue count 2, got %d", stats.OverdueCount)
	}
}
