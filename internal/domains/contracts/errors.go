package contracts

import (
	"errors"
	"strings"
)

const (
	ErrorCategoryAPI           = "api"
	ErrorCategoryCrypto        = "crypto"
	ErrorCategoryStorage       = "storage"
	ErrorCategoryNetwork       = "network"
	ErrorCategoryIdentity      = "identity"
	ErrorCategoryGroup         = "group"
	ErrorCategoryMlsProcessing = "mls_processing"
	ErrorCategoryIntent        = "intent"
)

func normalizeErrorCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case ErrorCategoryCrypto:
		return ErrorCategoryCrypto
	case ErrorCategoryStorage:
		return ErrorCategoryStorage
	case ErrorCategoryNetwork:
		return ErrorCategoryNetwork
	case ErrorCategoryIdentity:
		return ErrorCategoryIdentity
	case ErrorCategoryGroup:
		return ErrorCategoryGroup
	case ErrorCategoryMlsProcessing:
		return ErrorCategoryMlsProcessing
	case ErrorCategoryIntent:
		return ErrorCategoryIntent
	default:
		return ErrorCategoryAPI
	}
}

// IsRetryableCategory reports whether an error in the given category
// represents a transient condition worth retrying (e.g. after backoff)
// rather than a permanent rejection. Mls processing errors such as
// epoch-skew collisions are retryable; group permission and intent
// validation errors are not.
func IsRetryableCategory(category string) bool {
	switch normalizeErrorCategory(category) {
	case ErrorCategoryNetwork, ErrorCategoryMlsProcessing:
		return true
	default:
		return false
	}
}

func WrapCategorizedError(category string, err error) error {
	if err == nil {
		return nil
	}
	var existing *CategorizedError
	if errors.As(err, &existing) {
		return &CategorizedError{
			Category: normalizeErrorCategory(existing.Category),
			Err:      existing.Err,
		}
	}
	return &CategorizedError{
		Category: normalizeErrorCategory(category),
		Err:      err,
	}
}

func ErrorCategory(err error) string {
	var classified *CategorizedError
	if errors.As(err, &classified) {
		return normalizeErrorCategory(classified.Category)
	}
	return ErrorCategoryAPI
}
