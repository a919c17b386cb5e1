package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizdeck/internal/domain"
)

// SessionRepository tracks live attempts (in-memory, Redis, etc), one per checkpoint key.
type SessionRepository interface {
	// GetOrCreate returns the live attempt for key or registers the one built by create.
	GetOrCreate(key string, create func() (*Attempt, error)) (*Attempt, error)
	Get(key string) (*Attempt, bool)
	// Remove drops key only while it still maps to attempt.
	Remove(key string, attempt *Attempt)
}

// QuizRepository is the question bank: topic name or slug to ordered questions.
type QuizRepository interface {
	GetQuiz(ctx context.Context, topic string) (domain.Quiz, error)
	ListTopics(ctx context.Context) ([]domain.TopicSummary, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

// ProgressStore persists checkpoints and the append-only history log.
type ProgressStore interface {
	// LoadCheckpoint reports ok=false when no checkpoint exists and returns
	// domain.ErrMalformedCheckpoint when a stored one cannot be decoded.
	LoadCheckpoint(ctx context.Context, key domain.CheckpointKey) (domain.Checkpoint, bool, error)
	SaveCheckpoint(ctx context.Context, key domain.CheckpointKey, cp domain.Checkpoint) error
	DeleteCheckpoint(ctx context.Context, key domain.CheckpointKey) error
	AppendHistory(ctx context.Context, entry domain.HistoryEntry) error
	LoadHistory(ctx context.Context) ([]domain.HistoryEntry, error)
}

// UserRepository is the user lookup used for login.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, username string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// ServiceConfig holds attempt policy shared by all attempts of a service.
type ServiceConfig struct {
	TimeLimit          time.Duration // zero disables the countdown
	RequireAllAnswered bool
	Now                func() time.Time
	Ticker             TickerFunc
	Logger             logrus.FieldLogger
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	progress ProgressStore
	users    UserRepository
	cfg      ServiceConfig
	log      logrus.FieldLogger
}

func NewQuizService(sessions SessionRepository, quizzes QuizRepository, progress ProgressStore, users UserRepository, cfg ServiceConfig) *QuizService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &QuizService{
		sessions: sessions,
		quizzes:  quizzes,
		progress: progress,
		users:    users,
		cfg:      cfg,
		log:      cfg.Logger,
	}
}

// Topics lists the quiz catalog.
func (s *QuizService) Topics(ctx context.Context) ([]domain.TopicSummary, error) {
	return s.quizzes.ListTopics(ctx)
}

// Start opens (or rejoins) the attempt of username on topic and registers the caller
// as one of its holders; every Start must be paired with a Release. An empty username
// starts a fresh anonymous attempt. Unknown or empty topics produce an attempt in the
// unavailable phase rather than an error.
func (s *QuizService) Start(ctx context.Context, username, topic string) (*Attempt, error) {
	if username == "" {
		return s.StartAnonymous(ctx, "", topic)
	}
	u, err := s.users.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, &u, domain.CheckpointKey{Username: username}, topic)
}

// StartAnonymous opens the attempt of an anonymous client on topic. Attempts of
// different clients never share state; an empty clientID gets a fresh one. The
// result of an anonymous attempt is not recorded in the history.
func (s *QuizService) StartAnonymous(ctx context.Context, clientID, topic string) (*Attempt, error) {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return s.start(ctx, nil, domain.CheckpointKey{Client: clientID}, topic)
}

func (s *QuizService) start(ctx context.Context, user *domain.User, key domain.CheckpointKey, topic string) (*Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, topic)
	if errors.Is(err, domain.ErrQuizNotFound) {
		quiz = domain.Quiz{Topic: topic, Slug: domain.Slug(topic)}
	} else if err != nil {
		return nil, fmt.Errorf("load quiz %q: %w", topic, err)
	}
	key.Topic = quiz.Topic

	create := func() (*Attempt, error) {
		attempt, err := NewAttempt(ctx, AttemptConfig{
			Key:                key,
			User:               user,
			Quiz:               quiz,
			Progress:           s.progress,
			TimeLimit:          s.cfg.TimeLimit,
			RequireAllAnswered: s.cfg.RequireAllAnswered,
			Now:                s.cfg.Now,
			Ticker:             s.cfg.Ticker,
			Logger:             s.log,
		})
		if err != nil {
			return nil, err
		}
		attempt.StartTimer()
		return attempt, nil
	}
	// A registered attempt may be closed by its last holder between lookup and
	// acquire; the registry then replaces it on the next lookup.
	for i := 0; i < maxStartRetries; i++ {
		attempt, err := s.sessions.GetOrCreate(key.String(), create)
		if err != nil {
			return nil, err
		}
		if attempt.acquire() {
			return attempt, nil
		}
	}
	return nil, fmt.Errorf("start %s: attempt closed concurrently", key)
}

const maxStartRetries = 3

// Attempt returns the live attempt registered under key.
func (s *QuizService) Attempt(key domain.CheckpointKey) (*Attempt, error) {
	attempt, ok := s.sessions.Get(key.String())
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return attempt, nil
}

// Release drops the caller's hold on attempt. The last holder to leave tears the
// attempt down and removes it from the registry; its checkpoint survives for resume.
func (s *QuizService) Release(attempt *Attempt) {
	if attempt.release() {
		s.sessions.Remove(attempt.Key().String(), attempt)
	}
}

// CreateQuiz validates and stores an authored quiz, replacing any quiz with the same topic.
func (s *QuizService) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	quiz.Slug = domain.Slug(quiz.Topic)
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	s.log.WithFields(logrus.Fields{"topic": quiz.Topic, "questions": len(quiz.Questions)}).Info("quiz saved")
	return quiz, nil
}

// Register creates a user account.
func (s *QuizService) Register(ctx context.Context, username, email string) (domain.User, error) {
	user := domain.User{
		Username:  username,
		Email:     email,
		Role:      domain.RoleUser,
		CreatedAt: s.cfg.Now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return domain.User{}, err
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Login looks a user up by name.
func (s *QuizService) Login(ctx context.Context, username string) (domain.User, error) {
	return s.users.GetUser(ctx, username)
}
