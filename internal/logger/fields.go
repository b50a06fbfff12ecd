package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldCatalogVersion is the structured log field key for the active catalog version.
	FieldCatalogVersion = "catalog_version"
	// FieldIndexBackend is the structured log field key for the vector index backend.
	FieldIndexBackend = "index_backend"
	// FieldProvider is the structured log field key for the embedding provider name.
	FieldProvider = "embedding_provider"
	// FieldModel is the structured log field key for the embedding model identifier.
	FieldModel = "embedding_model"
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

// CatalogFields returns the fields that identify a catalog and the index serving it.
func CatalogFields(version, backend string) []zap.Field {
	return StringFields(
		StringField{Key: FieldCatalogVersion, Value: version},
		StringField{Key: FieldIndexBackend, Value: backend},
	)
}

// EmbeddingFields returns the fields that describe an embedding provider and model.
func EmbeddingFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}
