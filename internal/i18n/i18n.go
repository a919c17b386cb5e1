package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"math"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"quizdeck/internal/domain"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

// Translator owns the message bundle and hands out localizers per language.
type Translator struct {
	bundle   *i18n.Bundle
	fallback string
	log      logrus.FieldLogger
}

// New loads every embedded locale file. fallback is the language used when a
// request names none or an unknown one.
func New(fallback string, logger logrus.FieldLogger) (*Translator, error) {
	tag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", fallback, err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		logger.WithField("file", e.Name()).Debug("loaded locale file")
	}
	return &Translator{bundle: bundle, fallback: tag.String(), log: logger}, nil
}

// Localizer builds a localizer for the given languages or Accept-Language values.
func (t *Translator) Localizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(t.bundle, append(langs, t.fallback)...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func (t *Translator) localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return t.Localizer()
}

// T translates a message by ID.
func (t *Translator) T(ctx context.Context, msgID string) string {
	return t.localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func (t *Translator) Td(ctx context.Context, msgID string, data map[string]any) string {
	return t.localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message by ID.
func (t *Translator) Tp(ctx context.Context, msgID string, count int) string {
	return t.localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

func (t *Translator) localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	s, err := t.localizerFromCtx(ctx).Localize(cfg)
	if err != nil {
		t.log.WithError(err).WithField("id", cfg.MessageID).Warn("missing translation")
		return cfg.MessageID
	}
	return s
}

// Verdict is the pass or fail headline of a result.
func (t *Translator) Verdict(ctx context.Context, passed bool) string {
	if passed {
		return t.T(ctx, "Congratulations")
	}
	return t.T(ctx, "TryAgain")
}

// TimeTaken renders whole seconds as "Xm Ys".
func (t *Translator) TimeTaken(ctx context.Context, seconds float64) string {
	total := int(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	return t.Td(ctx, "TimeTaken", map[string]any{"Minutes": total / 60, "Seconds": total % 60})
}

// Summary renders the score line of a result.
func (t *Translator) Summary(ctx context.Context, r domain.Result) string {
	return t.Td(ctx, "ScoreSummary", map[string]any{
		"Score":      r.Score,
		"Total":      r.TotalQuestions,
		"Percentage": r.Percentage,
	})
}
