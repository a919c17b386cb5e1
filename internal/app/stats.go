package app

import (
	"context"
	"math"
	"sort"

	"quizdeck/internal/domain"
)

// History returns the history entries of username, newest first.
// An empty username returns every entry.
func (s *QuizService) History(ctx context.Context, username string) ([]domain.HistoryEntry, error) {
	all, err := s.progress.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0, len(all))
	for _, e := range all {
		if username == "" || e.Username == username {
			entries = append(entries, e)
		}
	}
	sortNewestFirst(entries)
	return entries, nil
}

// UserStats aggregates the dashboard numbers of one user.
func (s *QuizService) UserStats(ctx context.Context, username string) (domain.UserStats, error) {
	entries, err := s.History(ctx, username)
	if err != nil {
		return domain.UserStats{}, err
	}
	return summarize(entries), nil
}

// Overview aggregates the admin dashboard.
func (s *QuizService) Overview(ctx context.Context) (domain.Overview, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return domain.Overview{}, err
	}
	topics, err := s.quizzes.ListTopics(ctx)
	if err != nil {
		return domain.Overview{}, err
	}
	history, err := s.History(ctx, "")
	if err != nil {
		return domain.Overview{}, err
	}

	byUser := make(map[string][]domain.HistoryEntry)
	for _, e := range history {
		byUser[e.Username] = append(byUser[e.Username], e)
	}
	summaries := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		attempts := byUser[u.Username]
		summaries = append(summaries, domain.UserSummary{
			Username:     u.Username,
			Email:        u.Email,
			QuizzesTaken: len(attempts),
			AverageScore: averagePercentage(attempts),
		})
	}

	return domain.Overview{
		TotalUsers:     len(users),
		TotalQuizzes:   len(topics),
		TotalAttempts:  len(history),
		AverageScore:   averagePercentage(history),
		Users:          summaries,
		RecentAttempts: history,
	}, nil
}

func summarize(entries []domain.HistoryEntry) domain.UserStats {
	if len(entries) == 0 {
		return domain.UserStats{}
	}
	var correct, questions int
	var seconds float64
	for _, e := range entries {
		correct += e.Score
		questions += e.TotalQuestions
		seconds += e.TimeTaken
	}
	accuracy := domain.Percentage(correct, questions)
	return domain.UserStats{
		TotalTests:   len(entries),
		Accuracy:     accuracy,
		AverageScore: accuracy,
		AverageTime:  int(math.Round(seconds / float64(len(entries)))),
	}
}

// averagePercentage is the mean percentage rounded to two decimals.
func averagePercentage(entries []domain.HistoryEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0
	for _, e := range entries {
		sum += e.Percentage
	}
	return math.Round(float64(sum)/float64(len(entries))*100) / 100
}

func sortNewestFirst(entries []domain.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
}
