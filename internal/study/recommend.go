package study

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

const (
	// recommendCandidateCap bounds the join result independently of the
	// requested limit so scoring cost stays fixed.
	recommendCandidateCap = 50
	// DefaultRecommendLimit is used when the caller does not supply a limit.
	DefaultRecommendLimit = 5

	basePriorityScore = 5.0
	minPriorityScore  = 0.0
	maxPriorityScore  = 10.0
)

// Recommend joins each subtopic with its topic and subject, scores the
// candidates and returns the top entries, most urgent first. It never fails
// the caller: any error in the pipeline is logged and converted into an empty
// degraded set.
func (s *Service) Recommend(ctx context.Context, limit int) RecommendationSet {
	if limit <= 0 {
		limit = DefaultRecommendLimit
	}

	candidates, err := s.joinCandidates(ctx)
	if err != nil {
		s.logError(opRecommend, "pipeline_failed", err)
		return RecommendationSet{Items: []Recommendation{}, Degraded: true}
	}
	if len(candidates) == 0 {
		return RecommendationSet{Items: []Recommendation{}}
	}

	now := s.clock().UTC()
	for i := range candidates {
		c := &candidates[i]
		if c.subtopic.LastRevised != nil {
			days := int(now.Sub(c.subtopic.LastRevised.UTC()).Hours() / 24)
			c.daysSinceRevision = &days
		}
		c.score = scorePriority(c.daysSinceRevision, c.subtopic.PerformanceStatus, c.subtopic.Difficulty)
	}

	// Stable: ties keep the order they appeared in the joined result.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	items := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, Recommendation{
			SubtopicID:        c.subtopic.ID,
			SubtopicName:      c.subtopic.Name,
			TopicName:         c.topicName,
			SubjectName:       c.subjectName,
			PriorityScore:     c.score,
			Reason:            buildReason(c.score, c.daysSinceRevision, c.subtopic.PerformanceStatus),
			DaysSinceRevision: c.daysSinceRevision,
		})
	}
	return RecommendationSet{Items: items}
}

type candidate struct {
	subtopic          Subtopic
	topicName         string
	subjectName       string
	daysSinceRevision *int
	score             float64
}

// joinCandidates resolves each subtopic against its topic and subject,
// dropping rows whose ancestry no longer resolves. Selection into the
// candidate cap is deterministic: most overdue first.
func (s *Service) joinCandidates(ctx context.Context) ([]candidate, error) {
	st := newStore(s.db)

	subtopics, err := st.mostOverdueSubtopics(ctx, recommendCandidateCap)
	if err != nil {
		return nil, err
	}
	if len(subtopics) == 0 {
		return nil, nil
	}

	topics, err := st.listTopics(ctx, "")
	if err != nil {
		return nil, err
	}
	subjects, err := st.listSubjects(ctx)
	if err != nil {
		return nil, err
	}

	topicsByID := make(map[string]Topic, len(topics))
	for _, topic := range topics {
		topicsByID[topic.ID] = topic
	}
	subjectsByID := make(map[string]Subject, len(subjects))
	for _, subject := range subjects {
		subjectsByID[subject.ID] = subject
	}

	candidates := make([]candidate, 0, len(subtopics))
	for _, subtopic := range subtopics {
		topic, ok := topicsByID[subtopic.TopicID]
		if !ok {
			s.loggerOrDefault().Warn("recommendation candidate skipped",
				zap.String("subtopic_id", subtopic.ID),
				zap.String("reason", "topic_unresolved"))
			continue
		}
		subject, ok := subjectsByID[topic.SubjectID]
		if !ok {
			s.loggerOrDefault().Warn("recommendation candidate skipped",
				zap.String("subtopic_id", subtopic.ID),
				zap.String("reason", "subject_unresolved"))
			continue
		}
		candidates = append(candidates, candidate{
			subtopic:    subtopic,
			topicName:   topic.Name,
			subjectName: subject.Name,
		})
	}
	return candidates, nil
}

// scorePriority computes the study-urgency heuristic: base 5.0, one recency
// bucket, one performance bucket and one difficulty bucket summed, then
// clamped to [0, 10].
func scorePriority(daysSinceRevision *int, status PerformanceStatus, difficulty Difficulty) float64 {
	score := basePriorityScore

	switch {
	case daysSinceRevision == nil:
		score += 3.0
	case *daysSinceRevision > 14:
		score += 2.5
	case *daysSinceRevision > 7:
		score += 2.0
	case *daysSinceRevision > 3:
		score += 1.0
	}

	switch status {
	case PerformanceStruggled:
		score += 2.0
	case PerformanceNotStarted:
		score += 1.5
	case PerformanceMastered:
		score -= 1.0
	}

	switch difficulty {
	case DifficultyHard:
		score += 1.0
	case DifficultyEasy:
		score -= 0.5
	}

	if score > maxPriorityScore {
		return maxPriorityScore
	}
	if score < minPriorityScore {
		return minPriorityScore
	}
	return score
}

func buildReason(score float64, daysSinceRevision *int, status PerformanceStatus) string {
	reason := fmt.Sprintf("Priority score: %.1f. ", score)
	if daysSinceRevision == nil {
		reason += "Never studied before."
	} else {
		reason += fmt.Sprintf("Last revised %d days ago.", *daysSinceRevision)
	}
	if status == PerformanceStruggled {
		reason += " Previous difficulty noted."
	}
	return reason
}
