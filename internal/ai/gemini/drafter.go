package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/ai"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var systemPrompt string

const defaultMaxLogLength = 200

// Drafter asks Gemini for an application note.
type Drafter struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewDrafter(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Drafter {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Drafter{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

type draftRequest struct {
	Profile *profile.Profile `json:"profile"`
	Posting *jobs.Posting    `json:"posting"`
	Score   *jobs.Score      `json:"score,omitempty"`
}

func (d *Drafter) Draft(ctx context.Context, p *profile.Profile, posting *jobs.Scored) (*ai.Note, error) {
	if p == nil {
		return nil, errors.New("profile is required")
	}
	if posting == nil || posting.Posting == nil {
		return nil, errors.New("posting is required")
	}

	payload, err := json.MarshalIndent(draftRequest{Profile: p, Posting: posting.Posting, Score: posting.Score}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal draft payload: %w", err)
	}
	message := string(payload)

	fields := logger.PostingFields(posting.Posting)
	d.logger.Debug("gemini generate content request", append(fields,
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, d.maxLogLen)),
	)...)

	raw, err := d.generator.GenerateContent(ctx, systemPrompt, message)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("gemini generate content response", append(fields,
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, d.maxLogLen)),
	)...)

	note, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	note.Raw = raw
	return note, nil
}

func parseResponse(raw string) (*ai.Note, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	message := coerceString(data["message"])
	if message == "" {
		return nil, errors.New("gemini response has no message")
	}

	return &ai.Note{
		Message:    message,
		Highlights: coerceStrings(data["highlights"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return nil
}
