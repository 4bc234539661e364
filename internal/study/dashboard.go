package study

import (
	"context"
	"time"
)

// overdueWindowDays is the rolling calendar-day cutoff for the overdue
// predicate: anything last revised before (start of today UTC − 7 days), or
// never revised, counts as overdue.
const overdueWindowDays = 7

// overdueCutoff truncates now to the start of the current UTC day and steps
// back the overdue window.
func overdueCutoff(now time.Time) time.Time {
	utc := now.UTC()
	startOfToday := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return startOfToday.AddDate(0, 0, -overdueWindowDays)
}

// DashboardStats computes exact collection and predicate cardinalities at
// call time. Nothing is cached.
func (s *Service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	st := newStore(s.db)

	stats := DashboardStats{}
	var err error
	if stats.TotalSubjects, err = st.countSubjects(ctx); err != nil {
		s.logError(opDashboardStats, "subject_count_failed", err)
		return DashboardStats{}, newServiceError(opDashboardStats, "subject_count_failed", err)
	}
	if stats.TotalTopics, err = st.countTopics(ctx); err != nil {
		s.logError(opDashboardStats, "topic_count_failed", err)
		return DashboardStats{}, newServiceError(opDashboardStats, "topic_count_failed", err)
	}
	if stats.TotalSubtopics, err = st.countSubtopics(ctx); err != nil {
		s.logError(opDashboardStats, "subtopic_count_failed", err)
		return DashboardStats{}, newServiceError(opDashboardStats, "subtopic_count_failed", err)
	}
	if stats.MasteredCount, err = st.countSubtopicsByStatus(ctx, PerformanceMastered); err != nil {
		s.logError(opDashboardStats, "mastered_count_failed", err)
		return DashboardStats{}, newServiceError(opDashboardStats, "mastered_count_failed", err)
	}
	if stats.StruggledCount, err = st.countSubtopicsByStatus(ctx, PerformanceStruggled); err != nil {
		s.logError(opDashboardStats, "struggled_count_failed", err)
		return DashboardStats{}, newServiceError(opDashboardStats, "struggled_count_failed", err)
	}
	if stats.NotStartedCount, err = st.countSubtopicsByStatus(ctx, PerformanceNotStarted); err != nil {
		s.logError(opDashboardStats, "not_started_count_failed", err)
		return DashboardStats{}, newServiceError(opDashboardStats, "not_started_count_failed", err)
	}
	if stats.OverdueCount, err = st.countOverdueSubtopics(ctx, overdueCutoff(s.clock())); err != nil {
		s.logError(opDashboardStats, "overdue_count_failed", err)
		return DashboardStats{}, newServiceError(opDashboardStats, "overdue_count_failed", err)
	}
	return stats, nil
}
