package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PassThreshold is the minimum percentage required to pass a quiz.
const PassThreshold = 70

// Phase is the lifecycle state of an attempt.
type Phase string

const (
	PhaseInProgress  Phase = "in_progress"
	PhaseSubmitted   Phase = "submitted"
	PhaseUnavailable Phase = "unavailable"
)

// Question models an MCQ question. Answer holds the correct option text, not its index.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

// HasOption reports whether option is one of the question's options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// IsCorrect reports whether option is the correct answer.
func (q Question) IsCorrect(option string) bool {
	return option != "" && option == q.Answer
}

// Public strips the correct answer so the question can be sent to clients.
func (q Question) Public() PublicQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return PublicQuestion{ID: q.ID, Prompt: q.Prompt, Options: opts}
}

// Validate checks that the question is complete and the answer matches exactly one option.
func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("%w: question id is required", ErrInvalidQuiz)
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: question %s has no prompt", ErrInvalidQuiz, q.ID)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: question %s needs at least two options", ErrInvalidQuiz, q.ID)
	}
	matches := 0
	for _, o := range q.Options {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("%w: question %s has an empty option", ErrInvalidQuiz, q.ID)
		}
		if o == q.Answer {
			matches++
		}
	}
	if strings.TrimSpace(q.Answer) == "" {
		return fmt.Errorf("%w: question %s has no answer", ErrInvalidQuiz, q.ID)
	}
	if matches != 1 {
		return fmt.Errorf("%w: answer of question %s must match exactly one option", ErrInvalidQuiz, q.ID)
	}
	return nil
}

// PublicQuestion is the client-facing view of a question.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// Quiz is the ordered question list of one topic.
type Quiz struct {
	Topic      string     `json:"topic"`
	Slug       string     `json:"slug"`
	CoverPhoto string     `json:"coverPhoto,omitempty"`
	Questions  []Question `json:"questions"`
}

// Validate mirrors the admin authoring rules: a topic and at least one complete question.
func (q Quiz) Validate() error {
	if strings.TrimSpace(q.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidQuiz)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrInvalidQuiz)
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return err
		}
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %s", ErrInvalidQuiz, question.ID)
		}
		seen[question.ID] = struct{}{}
	}
	return nil
}

// Question looks up a question by id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Summary returns the catalog view of the quiz.
func (q Quiz) Summary() TopicSummary {
	return TopicSummary{
		Topic:         q.Topic,
		Slug:          q.Slug,
		CoverPhoto:    q.CoverPhoto,
		QuestionCount: len(q.Questions),
	}
}

// TopicSummary is a catalog entry for the topic list.
type TopicSummary struct {
	Topic         string `json:"topic"`
	Slug          string `json:"slug"`
	CoverPhoto    string `json:"coverPhoto,omitempty"`
	QuestionCount int    `json:"questionCount"`
}

var whitespace = regexp.MustCompile(`\s+`)

// Slug lowercases a topic name and replaces whitespace runs with '-'.
func Slug(topic string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(topic)), "-")
}

// CheckpointKey identifies the single resumable attempt of a user on a topic.
// Anonymous attempts are told apart by Client, an id owned by one browser or connection.
type CheckpointKey struct {
	Username string
	Client   string
	Topic    string
}

// Anonymous reports whether the key belongs to an attempt without a user.
func (k CheckpointKey) Anonymous() bool {
	return k.Username == ""
}

// String renders the key as "user/topic". Anonymous attempts use "~client",
// or "-" when no client id is set.
func (k CheckpointKey) String() string {
	owner := k.Username
	switch {
	case owner != "":
	case k.Client != "":
		owner = "~" + k.Client
	default:
		owner = "-"
	}
	return owner + "/" + Slug(k.Topic)
}

// Checkpoint is a persisted snapshot of in-progress attempt state. The timer is never checkpointed.
type Checkpoint struct {
	QuestionIndex int               `json:"currentQuestionIndex"`
	Answers       map[string]string `json:"selectedOptions"`
	Score         int               `json:"score"`
	Answered      []string          `json:"answeredQuestions"`
}

// HistoryEntry is an immutable record of one completed attempt.
type HistoryEntry struct {
	AttemptID      string    `json:"attemptId"`
	Username       string    `json:"username"`
	Topic          string    `json:"topic"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Percentage     int       `json:"percentage"`
	TimeTaken      float64   `json:"timeTaken"`
	Date           time.Time `json:"date"`
}

// Passed reports whether the entry met the pass threshold.
func (e HistoryEntry) Passed() bool {
	return Passed(e.Percentage)
}

// Result is the outcome of a submitted attempt.
type Result struct {
	AttemptID      string  `json:"attemptId"`
	Topic          string  `json:"topic"`
	Score          int     `json:"score"`
	TotalQuestions int     `json:"totalQuestions"`
	Percentage     int     `json:"percentage"`
	Passed         bool    `json:"passed"`
	TimeTaken      float64 `json:"timeTaken"`
	Expired        bool    `json:"expired"`
}

// Percentage computes round(score/total*100) with half-up rounding.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (score*200 + total) / (2 * total)
}

// Passed reports whether a percentage meets PassThreshold.
func Passed(percentage int) bool {
	return percentage >= PassThreshold
}

// Role distinguishes quiz takers from operators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a registered quiz taker.
type User struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// AttemptView is a client snapshot of an attempt.
type AttemptView struct {
	AttemptID     string          `json:"attemptId"`
	Topic         string          `json:"topic"`
	Phase         Phase           `json:"phase"`
	QuestionIndex int             `json:"questionIndex"`
	QuestionCount int             `json:"questionCount"`
	Question      *PublicQuestion `json:"question,omitempty"`
	Selected      string          `json:"selected,omitempty"`
	Answered      bool            `json:"answered"`
	AnsweredCount int             `json:"answeredCount"`
	Progress      float64         `json:"progress"`
	TimeRemaining int             `json:"timeRemaining,omitempty"`
	Timed         bool            `json:"timed"`
	CanNext       bool            `json:"canNext"`
	CanSubmit     bool            `json:"canSubmit"`
	Result        *Result         `json:"result,omitempty"`
}

// EventType names an attempt notification.
type EventType string

const (
	EventTick      EventType = "tick"
	EventSubmitted EventType = "submitted"
	EventReset     EventType = "reset"
)

// AttemptEvent is pushed to attempt subscribers.
type AttemptEvent struct {
	Type          EventType `json:"type"`
	AttemptID     string    `json:"attemptId"`
	TimeRemaining int       `json:"timeRemaining"`
	Result        *Result   `json:"result,omitempty"`
}

// UserStats summarizes a user's history.
type UserStats struct {
	TotalTests   int `json:"totalTests"`
	Accuracy     int `json:"accuracy"`
	AverageScore int `json:"averageScore"`
	AverageTime  int `json:"averageTime"`
}

// UserSummary is a per-user row of the admin overview.
type UserSummary struct {
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	QuizzesTaken int     `json:"quizzesTaken"`
	AverageScore float64 `json:"averageScore"`
}

// Overview is the admin dashboard snapshot.
type Overview struct {
	TotalUsers     int            `json:"totalUsers"`
	TotalQuizzes   int            `json:"totalQuizzes"`
	TotalAttempts  int            `json:"totalAttempts"`
	AverageScore   float64        `json:"averageScore"`
	Users          []UserSummary  `json:"users"`
	RecentAttempts []HistoryEntry `json:"recentAttempts"`
}

// Validate checks the registration fields of a user.
func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if whitespace.MatchString(u.Username) {
		return fmt.Errorf("%w: username must not contain spaces", ErrInvalidUser)
	}
	if strings.ContainsAny(u.Username, "/~") {
		return fmt.Errorf("%w: username must not contain '/' or '~'", ErrInvalidUser)
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: email %q is not valid", ErrInvalidUser, u.Email)
	}
	return nil
}
