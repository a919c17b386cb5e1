package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"quizdeck/internal/app"
	"quizdeck/internal/domain"
)

// API serves the REST side: catalog, accounts, history and admin authoring.
type API struct {
	service *app.QuizService
	log     logrus.FieldLogger
}

func NewAPI(service *app.QuizService, logger logrus.FieldLogger) *API {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &API{service: service, log: logger}
}

// Routes registers the REST endpoints under r.
func (a *API) Routes(r chi.Router) {
	r.Get("/topics", a.handleTopics)
	r.Post("/users", a.handleRegister)
	r.Post("/login", a.handleLogin)
	r.Get("/users/{username}/history", a.handleHistory)
	r.Get("/users/{username}/stats", a.handleStats)
	r.Route("/admin", func(r chi.Router) {
		r.Get("/overview", a.handleOverview)
		r.Post("/quizzes", a.handleCreateQuiz)
	})
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (a *API) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := a.service.Topics(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := a.service.Register(r.Context(), body.Username, body.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := a.service.Login(r.Context(), body.Username)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.service.History(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.UserStats(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := a.service.Overview(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (a *API) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	saved, err := a.service.CreateQuiz(r.Context(), quiz)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved.Summary())
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidUser),
		errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorPayload struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Message: message})
}
