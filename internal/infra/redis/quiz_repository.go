package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"quizdeck/internal/domain"
)

// QuizLoader fetches quiz content from the backing store (SQLite, Postgres, static data).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, topic string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// QuizWriter is implemented by loaders that accept authored quizzes.
type QuizWriter interface {
	StoreQuiz(ctx context.Context, quiz domain.Quiz) error
}

var ErrReadOnlyLoader = errors.New("quiz loader is read-only")

// QuizRepository caches whole quizzes as JSON in Redis and falls back to a loader on miss.
// Entries live at quiz:{slug} with a jittered TTL.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	log    logrus.FieldLogger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration, logger logrus.FieldLogger) *QuizRepository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, topic string) (domain.Quiz, error) {
	slug := domain.Slug(topic)
	if quiz, ok := r.cached(ctx, slug); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, slug); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, topic)
		if err != nil {
			return domain.Quiz{}, err
		}

		raw, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, err
		}
		// a failed cache fill only costs another load
		if err := r.client.Set(ctx, quizKey(slug), raw, r.ttlWithJitter()).Err(); err != nil {
			r.log.WithError(err).WithField("topic", topic).Warn("failed to cache quiz")
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// ListTopics reads through to the loader.
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

// SaveQuiz writes through to the loader and evicts the cached copy.
func (r *QuizRepository) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	writer, ok := r.loader.(QuizWriter)
	if !ok {
		return ErrReadOnlyLoader
	}
	if err := writer.StoreQuiz(ctx, quiz); err != nil {
		return err
	}
	return r.client.Del(ctx, quizKey(domain.Slug(quiz.Topic))).Err()
}

func (r *QuizRepository) cached(ctx context.Context, slug string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, quizKey(slug)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.WithError(err).Warn("quiz cache read failed")
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		r.log.WithError(err).WithField("slug", slug).Warn("dropping undecodable cached quiz")
		return domain.Quiz{}, false
	}
	return quiz, true
}

func quizKey(slug string) string {
	return "quiz:" + slug
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
