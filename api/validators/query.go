package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
)

const maxCursorLen = 256

func queryParam(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func invalidQuery(key, msg string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// ParseQueryInt reads an integer query parameter bounded by [min, max].
// A missing parameter yields defaultVal.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := queryParam(r, key)
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(key, "query parameter must be numeric", nil)
	}
	if value < min || value > max {
		return 0, invalidQuery(key, "query parameter out of range", map[string]any{"min": min, "max": max})
	}
	return value, nil
}

// ParseQueryBool accepts the strconv.ParseBool spellings (true, 1, false, 0...).
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	raw := queryParam(r, key)
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidQuery(key, "query parameter must be a boolean", nil)
	}
	return value, nil
}

// ParseQueryCursor returns the raw pagination cursor, rejecting oversized values.
func ParseQueryCursor(r *http.Request) (string, error) {
	raw := queryParam(r, "cursor")
	if len(raw) > maxCursorLen {
		return "", invalidQuery("cursor", "cursor too long", nil)
	}
	return raw, nil
}
