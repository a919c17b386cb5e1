package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"quizdeck/internal/app"
	"quizdeck/internal/config"
	"quizdeck/internal/domain"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Import quizzes from a data.json question bank",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := cfg.Quiz.SeedFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no seed file given")
			}
			logger := config.NewLogger(cfg)
			b, err := openBackends(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			n, err := seedFromFile(cmd.Context(), newService(cfg, b, logger), path)
			if err != nil {
				return err
			}
			logger.WithField("topics", n).Info("seeded quizzes")
			return nil
		},
	}
}

// seedDocument is the question bank layout: topic name to its ordered questions.
type seedDocument struct {
	Quizzes map[string][]seedQuestion `json:"quizzes"`
}

type seedQuestion struct {
	ID       seedID   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// seedID accepts numeric or string ids.
type seedID string

func (id *seedID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = seedID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id must be a string or number: %w", err)
	}
	*id = seedID(n.String())
	return nil
}

// parseSeed decodes a question bank into quizzes ordered by topic.
func parseSeed(r io.Reader) ([]domain.Quiz, error) {
	var doc seedDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	quizzes := make([]domain.Quiz, 0, len(doc.Quizzes))
	for topic, questions := range doc.Quizzes {
		quiz := domain.Quiz{Topic: topic, Slug: domain.Slug(topic)}
		for i, q := range questions {
			id := string(q.ID)
			if id == "" {
				id = strconv.Itoa(i + 1)
			}
			quiz.Questions = append(quiz.Questions, domain.Question{
				ID:      id,
				Prompt:  q.Question,
				Options: q.Options,
				Answer:  q.Answer,
			})
		}
		quizzes = append(quizzes, quiz)
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].Topic < quizzes[j].Topic })
	return quizzes, nil
}

// seedFromFile imports every topic of path through the service so each quiz is validated.
func seedFromFile(ctx context.Context, service *app.QuizService, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	quizzes, err := parseSeed(f)
	if err != nil {
		return 0, err
	}
	for _, quiz := range quizzes {
		if _, err := service.CreateQuiz(ctx, quiz); err != nil {
			return 0, fmt.Errorf("seed %q: %w", quiz.Topic, err)
		}
	}
	return len(quizzes), nil
}
