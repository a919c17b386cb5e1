package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizdeck/internal/domain"
)

// TickerFunc returns a channel delivering one value per countdown second and a stop function.
type TickerFunc func() (<-chan time.Time, func())

func secondTicker() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// AttemptConfig carries the collaborators and policy of a single attempt.
type AttemptConfig struct {
	Key      domain.CheckpointKey
	User     *domain.User // nil for anonymous attempts; history is skipped
	Quiz     domain.Quiz
	Progress ProgressStore
	// TimeLimit enables the countdown when positive. It is rounded down to whole seconds.
	TimeLimit          time.Duration
	RequireAllAnswered bool
	Now                func() time.Time
	Ticker             TickerFunc
	NewID              func() string
	Logger             logrus.FieldLogger
}

// Attempt is the state machine of one user working through one topic.
type Attempt struct {
	key        domain.CheckpointKey
	user       *domain.User
	quiz       domain.Quiz
	progress   ProgressStore
	budget     int
	requireAll bool
	now        func() time.Time
	ticker     TickerFunc
	newID      func() string
	log        logrus.FieldLogger

	mu          sync.Mutex
	id          string
	phase       domain.Phase
	index       int
	answers     map[string]string
	answered    map[string]struct{}
	score       int
	remaining   int
	startedAt   time.Time
	result      *domain.Result
	subscribers map[chan domain.AttemptEvent]struct{}
	timerOn     bool
	stopTimer   context.CancelFunc
	holders     int
	closed      bool
}

// NewAttempt builds an attempt and resumes it from a stored checkpoint when one applies.
// A topic without questions yields an attempt in the unavailable phase.
func NewAttempt(ctx context.Context, cfg AttemptConfig) (*Attempt, error) {
	a := &Attempt{
		key:         cfg.Key,
		user:        cfg.User,
		quiz:        cfg.Quiz,
		progress:    cfg.Progress,
		budget:      int(cfg.TimeLimit / time.Second),
		requireAll:  cfg.RequireAllAnswered,
		now:         cfg.Now,
		ticker:      cfg.Ticker,
		newID:       cfg.NewID,
		log:         cfg.Logger,
		subscribers: make(map[chan domain.AttemptEvent]struct{}),
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.ticker == nil {
		a.ticker = secondTicker
	}
	if a.newID == nil {
		a.newID = uuid.NewString
	}
	if a.log == nil {
		a.log = logrus.StandardLogger()
	}
	if a.budget < 0 {
		a.budget = 0
	}
	a.log = a.log.WithFields(logrus.Fields{"topic": a.quiz.Topic, "key": a.key.String()})

	a.resetLocked()
	if len(a.quiz.Questions) == 0 {
		a.phase = domain.PhaseUnavailable
		a.remaining = 0
		return a, nil
	}
	if err := a.restore(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// ID returns the current attempt identifier. Retry assigns a new one.
func (a *Attempt) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// Key returns the checkpoint key of the attempt.
func (a *Attempt) Key() domain.CheckpointKey {
	return a.key
}

// Phase returns the lifecycle phase.
func (a *Attempt) Phase() domain.Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Score returns the incrementally maintained score.
func (a *Attempt) Score() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.score
}

// Remaining returns the countdown seconds left; zero for untimed attempts.
func (a *Attempt) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining
}

// Checkpoint snapshots the resumable part of the state.
func (a *Attempt) Checkpoint() domain.Checkpoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkpointLocked()
}

// Select records option as the answer to questionID and rescores the change.
func (a *Attempt) Select(ctx context.Context, questionID, option string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.mutableLocked(); err != nil {
		return err
	}
	question, ok := a.quiz.Question(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if !question.HasOption(option) {
		return domain.ErrOptionNotFound
	}

	previous, had := a.answers[questionID]
	wasCorrect := had && question.IsCorrect(previous)
	isCorrect := question.IsCorrect(option)
	switch {
	case wasCorrect && !isCorrect:
		a.score--
	case !wasCorrect && isCorrect:
		a.score++
	}
	a.answers[questionID] = option
	a.answered[questionID] = struct{}{}

	a.saveCheckpointLocked(ctx)
	return nil
}

// Next advances to the following question. It is a no-op on the last question and
// refuses to leave an unanswered one.
func (a *Attempt) Next(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.mutableLocked(); err != nil {
		return err
	}
	if a.index >= len(a.quiz.Questions)-1 {
		return nil
	}
	if _, ok := a.answered[a.quiz.Questions[a.index].ID]; !ok {
		return domain.ErrQuestionUnanswered
	}
	a.index++
	a.saveCheckpointLocked(ctx)
	return nil
}

// Previous moves back one question; a no-op on the first.
func (a *Attempt) Previous(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.mutableLocked(); err != nil {
		return err
	}
	if a.index == 0 {
		return nil
	}
	a.index--
	a.saveCheckpointLocked(ctx)
	return nil
}

// Submit freezes the attempt and records it in the history log. Calling it again
// returns the first result without appending another entry.
func (a *Attempt) Submit(ctx context.Context) (domain.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submitLocked(ctx, false)
}

// Retry discards the current state and starts over. History is left untouched.
func (a *Attempt) Retry(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.phase == domain.PhaseUnavailable {
		return domain.ErrQuizUnavailable
	}
	a.stopTimerLocked()
	if err := a.progress.DeleteCheckpoint(ctx, a.key); err != nil {
		a.log.WithError(err).Warn("failed to delete checkpoint on retry")
	}
	previous := a.id
	a.resetLocked()
	if a.timerOn && !a.closed {
		a.startTimerLocked()
	}
	a.log.WithFields(logrus.Fields{"previous": previous, "attempt": a.id}).Info("attempt restarted")
	a.broadcastLocked(domain.AttemptEvent{Type: domain.EventReset, AttemptID: a.id, TimeRemaining: a.remaining})
	return nil
}

// Tick advances the countdown by one second and auto-submits when it reaches zero.
// It returns the seconds left.
func (a *Attempt) Tick(ctx context.Context) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tickLocked(ctx)
}

// View renders a client snapshot.
func (a *Attempt) View() domain.AttemptView {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := len(a.quiz.Questions)
	view := domain.AttemptView{
		AttemptID:     a.id,
		Topic:         a.quiz.Topic,
		Phase:         a.phase,
		QuestionIndex: a.index,
		QuestionCount: count,
		AnsweredCount: len(a.answered),
		TimeRemaining: a.remaining,
		Timed:         a.budget > 0,
	}
	if a.phase == domain.PhaseUnavailable {
		return view
	}

	current := a.quiz.Questions[a.index]
	public := current.Public()
	view.Question = &public
	view.Selected = a.answers[current.ID]
	_, view.Answered = a.answered[current.ID]
	view.Progress = float64(a.index+1) / float64(count) * 100
	inProgress := a.phase == domain.PhaseInProgress
	view.CanNext = inProgress && view.Answered && a.index < count-1
	view.CanSubmit = inProgress && (!a.requireAll || len(a.answered) == count)
	if a.result != nil {
		result := *a.result
		view.Result = &result
	}
	return view
}

func (a *Attempt) mutableLocked() error {
	switch a.phase {
	case domain.PhaseUnavailable:
		return domain.ErrQuizUnavailable
	case domain.PhaseSubmitted:
		return domain.ErrAttemptSubmitted
	}
	return nil
}

func (a *Attempt) submitLocked(ctx context.Context, expired bool) (domain.Result, error) {
	switch a.phase {
	case domain.PhaseUnavailable:
		return domain.Result{}, domain.ErrQuizUnavailable
	case domain.PhaseSubmitted:
		return *a.result, nil
	}

	// An exhausted countdown always allows submission, even when a previous
	// automatic submit failed to persist.
	expired = expired || (a.budget > 0 && a.remaining == 0)
	total := len(a.quiz.Questions)
	if !expired && a.requireAll && len(a.answered) < total {
		return domain.Result{}, domain.ErrAttemptIncomplete
	}

	score := a.recomputeLocked()
	if score != a.score {
		a.log.WithFields(logrus.Fields{"incremental": a.score, "recomputed": score}).Warn("score drift corrected at submit")
	}
	now := a.now()
	percentage := domain.Percentage(score, total)
	result := domain.Result{
		AttemptID:      a.id,
		Topic:          a.quiz.Topic,
		Score:          score,
		TotalQuestions: total,
		Percentage:     percentage,
		Passed:         domain.Passed(percentage),
		TimeTaken:      now.Sub(a.startedAt).Seconds(),
		Expired:        expired,
	}

	if a.user != nil {
		entry := domain.HistoryEntry{
			AttemptID:      a.id,
			Username:       a.user.Username,
			Topic:          a.quiz.Topic,
			Score:          score,
			TotalQuestions: total,
			Percentage:     percentage,
			TimeTaken:      result.TimeTaken,
			Date:           now.UTC(),
		}
		if err := a.progress.AppendHistory(ctx, entry); err != nil {
			return domain.Result{}, fmt.Errorf("append history: %w", err)
		}
	}

	a.score = score
	a.phase = domain.PhaseSubmitted
	a.result = &result
	if err := a.progress.DeleteCheckpoint(ctx, a.key); err != nil {
		a.log.WithError(err).Warn("failed to delete checkpoint after submit")
	}
	a.stopTimerLocked()

	a.log.WithFields(logrus.Fields{
		"attempt":    a.id,
		"score":      score,
		"total":      total,
		"percentage": percentage,
		"expired":    expired,
	}).Info("attempt submitted")

	published := result
	a.broadcastLocked(domain.AttemptEvent{Type: domain.EventSubmitted, AttemptID: a.id, Result: &published})
	return result, nil
}

func (a *Attempt) tickLocked(ctx context.Context) int {
	if a.closed || a.phase != domain.PhaseInProgress || a.budget == 0 || a.remaining == 0 {
		return a.remaining
	}
	a.remaining--
	a.broadcastLocked(domain.AttemptEvent{Type: domain.EventTick, AttemptID: a.id, TimeRemaining: a.remaining})
	if a.remaining == 0 {
		if _, err := a.submitLocked(ctx, true); err != nil {
			a.log.WithError(err).Error("automatic submit failed")
		}
	}
	return a.remaining
}

// recomputeLocked scores the answers against the bank. It is the source of truth at submit.
func (a *Attempt) recomputeLocked() int {
	score := 0
	for _, q := range a.quiz.Questions {
		if q.IsCorrect(a.answers[q.ID]) {
			score++
		}
	}
	return score
}

func (a *Attempt) resetLocked() {
	a.id = a.newID()
	a.phase = domain.PhaseInProgress
	a.index = 0
	a.answers = make(map[string]string)
	a.answered = make(map[string]struct{})
	a.score = 0
	a.remaining = a.budget
	a.startedAt = a.now()
	a.result = nil
}

func (a *Attempt) checkpointLocked() domain.Checkpoint {
	answers := make(map[string]string, len(a.answers))
	for id, option := range a.answers {
		answers[id] = option
	}
	answered := make([]string, 0, len(a.answered))
	for id := range a.answered {
		answered = append(answered, id)
	}
	sort.Strings(answered)
	return domain.Checkpoint{
		QuestionIndex: a.index,
		Answers:       answers,
		Score:         a.score,
		Answered:      answered,
	}
}

// saveCheckpointLocked is best effort: a failed write never undoes the user's action.
func (a *Attempt) saveCheckpointLocked(ctx context.Context) {
	if err := a.progress.SaveCheckpoint(ctx, a.key, a.checkpointLocked()); err != nil {
		a.log.WithError(err).Warn("failed to save checkpoint")
	}
}

func (a *Attempt) restore(ctx context.Context) error {
	cp, ok, err := a.progress.LoadCheckpoint(ctx, a.key)
	switch {
	case errors.Is(err, domain.ErrMalformedCheckpoint):
		a.discardCheckpoint(ctx, err)
		return nil
	case err != nil:
		return fmt.Errorf("load checkpoint: %w", err)
	case !ok:
		return nil
	}
	if err := a.applyCheckpoint(cp); err != nil {
		a.discardCheckpoint(ctx, err)
		return nil
	}
	a.log.WithFields(logrus.Fields{"index": a.index, "answered": len(a.answered)}).Info("attempt resumed from checkpoint")
	return nil
}

// applyCheckpoint validates cp against the bank before touching any state.
func (a *Attempt) applyCheckpoint(cp domain.Checkpoint) error {
	count := len(a.quiz.Questions)
	if cp.QuestionIndex < 0 || cp.QuestionIndex >= count {
		return fmt.Errorf("%w: question index %d out of range", domain.ErrMalformedCheckpoint, cp.QuestionIndex)
	}
	answers := make(map[string]string, len(cp.Answers))
	answered := make(map[string]struct{}, len(cp.Answered))
	for id, option := range cp.Answers {
		q, ok := a.quiz.Question(id)
		if !ok {
			return fmt.Errorf("%w: unknown question %q", domain.ErrMalformedCheckpoint, id)
		}
		if !q.HasOption(option) {
			return fmt.Errorf("%w: option %q not in question %q", domain.ErrMalformedCheckpoint, option, id)
		}
		answers[id] = option
		answered[id] = struct{}{}
	}
	for _, id := range cp.Answered {
		if _, ok := a.quiz.Question(id); !ok {
			return fmt.Errorf("%w: unknown answered question %q", domain.ErrMalformedCheckpoint, id)
		}
		answered[id] = struct{}{}
	}

	a.index = cp.QuestionIndex
	a.answers = answers
	a.answered = answered
	a.score = a.recomputeLocked()
	if a.score != cp.Score {
		a.log.WithFields(logrus.Fields{"stored": cp.Score, "recomputed": a.score}).Warn("checkpoint score recomputed")
	}
	return nil
}

func (a *Attempt) discardCheckpoint(ctx context.Context, cause error) {
	a.log.WithError(cause).Warn("discarding malformed checkpoint")
	if err := a.progress.DeleteCheckpoint(ctx, a.key); err != nil {
		a.log.WithError(err).Warn("failed to delete malformed checkpoint")
	}
}
