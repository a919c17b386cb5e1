package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"quizdeck/internal/app"
	"quizdeck/internal/domain"
	"quizdeck/internal/i18n"
	"quizdeck/internal/infra/memory"
)

type testEnv struct {
	server   *httptest.Server
	service  *app.QuizService
	progress *memory.ProgressStore
	ticks    chan time.Time
}

func newTestEnv(t *testing.T, timeLimit time.Duration) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tr, err := i18n.New("en", logger)
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	ticks := make(chan time.Time, 8)
	progress := memory.NewProgressStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	users := memory.NewUserStore(domain.User{Username: "alice", Email: "alice@example.com", Role: domain.RoleUser})
	service := app.NewQuizService(memory.NewSessionStore(), quizRepo, progress, users, app.ServiceConfig{
		TimeLimit:          timeLimit,
		RequireAllAnswered: true,
		Ticker: func() (<-chan time.Time, func()) {
			return ticks, func() {}
		},
		Logger: logger,
	})

	router := NewRouter(NewAPI(service, logger), NewWSHandler(service, tr, logger), tr, logger)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, service: service, progress: progress, ticks: ticks}
}

func (e *testEnv) url(path string) string {
	return e.server.URL + path
}

func sampleQuiz() domain.Quiz {
	opts := []string{"A", "B", "C", "D"}
	return domain.Quiz{
		Topic: "DBMS",
		Questions: []domain.Question{
			{ID: "1", Prompt: "Which key uniquely identifies a row?", Options: opts, Answer: "A"},
			{ID: "2", Prompt: "Which normal form removes partial dependencies?", Options: opts, Answer: "B"},
			{ID: "3", Prompt: "Which isolation level prevents phantom reads?", Options: opts, Answer: "C"},
		},
	}
}

func mustDo(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
