package errors

import (
	"math"
	"strings"
	"unicode"
)

// ValidateFinite returns an ErrCodeInvalidArgument error when v is NaN or ±Inf.
// name identifies the offending argument in the message.
func ValidateFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidArgument, "%s must be finite, got %g", name, v)
	}
	return nil
}

// ValidatePositive returns an ErrCodeInvalidArgument error unless v is a
// finite number strictly greater than zero.
func ValidatePositive(name string, v float64) error {
	if err := ValidateFinite(name, v); err != nil {
		return err
	}
	if v <= 0 {
		return New(ErrCodeInvalidArgument, "%s must be positive, got %g", name, v)
	}
	return nil
}

// ValidatePath checks a file path given on the command line: it must be
// non-empty, at most maxPathLength bytes and free of control characters.
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path %q contains control characters", path)
		}
	}
	return nil
}

// ValidateURL validates a cache backend URL. Only the schemes the cache
// backends understand are accepted.
func ValidateURL(rawURL string, schemes ...string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	for _, s := range schemes {
		if strings.HasPrefix(rawURL, s+"://") {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "URL must use one of the schemes %v", schemes)
}
