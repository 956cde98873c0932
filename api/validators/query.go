package validators

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
)

// ParseQueryInt reads an integer query parameter, clamping to [min, max].
// A missing or empty value yields defaultVal; a malformed one is a
// validation error.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be an integer").
			WithDetails(map[string]any{"field": key})
	}
	if parsed < min {
		return min, nil
	}
	if parsed > max {
		return max, nil
	}
	return parsed, nil
}

// ParseQueryBool reads a boolean query parameter ("true"/"false").
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, key+" must be true or false").
			WithDetails(map[string]any{"field": key})
	}
	return parsed, nil
}

// ParseQueryUUID reads an optional uuid query parameter. Returns nil when
// the parameter is absent.
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a valid uuid").
			WithDetails(map[string]any{"field": key})
	}
	return &parsed, nil
}

// ParsePathUUID parses a uuid taken from a route parameter.
func ParsePathUUID(name, raw string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" must be a valid uuid").
			WithDetails(map[string]any{"field": name})
	}
	return parsed, nil
}
