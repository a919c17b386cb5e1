package memory

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizdeck/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (SQLite, Postgres, static data).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, topic string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// QuizWriter is implemented by loaders that accept authored quizzes.
type QuizWriter interface {
	StoreQuiz(ctx context.Context, quiz domain.Quiz) error
}

// ErrReadOnlyLoader is returned by SaveQuiz when the loader cannot store quizzes.
var ErrReadOnlyLoader = errors.New("quiz loader is read-only")

// QuizRepository caches quizzes with TTL to avoid repeated backing store hits.
// Entries are keyed by topic slug, so a topic name and its slug share one entry.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, topic string) (domain.Quiz, error) {
	slug := domain.Slug(topic)
	if quiz, ok := r.cached(slug); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		if quiz, ok := r.cached(slug); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, topic)
		if err != nil {
			return domain.Quiz{}, err
		}

		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[slug] = cachedQuiz{quiz: quiz, expiresAt: expiresAt}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// ListTopics always reads through to the loader; the catalog is small.
func (r *QuizRepository) ListTopics(ctx context.Context) ([]domain.TopicSummary, error) {
	quizzes, err := r.loader.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	topics := make([]domain.TopicSummary, 0, len(quizzes))
	for _, q := range quizzes {
		topics = append(topics, q.Summary())
	}
	return topics, nil
}

// SaveQuiz writes through to the loader and drops the cached copy.
func (r *QuizRepository) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	writer, ok := r.loader.(QuizWriter)
	if !ok {
		return ErrReadOnlyLoader
	}
	if err := writer.StoreQuiz(ctx, quiz); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.cache, domain.Slug(quiz.Topic))
	r.mu.Unlock()
	return nil
}

func (r *QuizRepository) cached(slug string) (domain.Quiz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[slug]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader is a loader backed by an in-memory map keyed by slug (useful for tests/demos).
type StaticQuizLoader struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes ...domain.Quiz) *StaticQuizLoader {
	l := &StaticQuizLoader{quizzes: make(map[string]domain.Quiz, len(quizzes))}
	for _, q := range quizzes {
		q.Slug = domain.Slug(q.Topic)
		l.quizzes[q.Slug] = q
	}
	return l
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, topic string) (domain.Quiz, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if quiz, ok := l.quizzes[domain.Slug(topic)]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (l *StaticQuizLoader) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	quizzes := make([]domain.Quiz, 0, len(l.quizzes))
	for _, q := range l.quizzes {
		quizzes = append(quizzes, q)
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].Topic < quizzes[j].Topic })
	return quizzes, nil
}

func (l *StaticQuizLoader) StoreQuiz(_ context.Context, quiz domain.Quiz) error {
	quiz.Slug = domain.Slug(quiz.Topic)
	l.mu.Lock()
	l.quizzes[quiz.Slug] = quiz
	l.mu.Unlock()
	return nil
}
