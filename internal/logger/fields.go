package logger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
)

const (
	FieldRunID    = "run_id"
	FieldSource   = "source"
	FieldTier     = "tier"
	FieldTerm     = "term"
	FieldLocation = "location"
	FieldURL      = "url"
	FieldCompany  = "company"
	FieldTitle    = "title"

	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// SourceFields describes an adapter taking part in a run.
func SourceFields(source, tier string) []zap.Field {
	return StringFields(
		StringField{Key: FieldSource, Value: source},
		StringField{Key: FieldTier, Value: tier},
	)
}

// CallFields describes a single adapter call.
func CallFields(term, location string) []zap.Field {
	return StringFields(
		StringField{Key: FieldTerm, Value: term},
		StringField{Key: FieldLocation, Value: location},
	)
}

// PostingFields identifies a posting in log entries.
func PostingFields(p *jobs.Posting) []zap.Field {
	if p == nil {
		return nil
	}
	return StringFields(
		StringField{Key: FieldURL, Value: p.SourceURL},
		StringField{Key: FieldSource, Value: p.Source},
		StringField{Key: FieldTitle, Value: p.Title},
		StringField{Key: FieldCompany, Value: p.Company},
	)
}

// CommonFields returns standard zap fields that describe the AI provider and model.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the common AI fields to the provided logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}
