package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/grimwaves/internal/cache"
	"github.com/desertthunder/grimwaves/internal/shared"
)

// Category is the retry taxonomy bucket an error falls into. The category,
// not the error value, decides whether and how a task is retried.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryExecScopeClosed
	CategoryExecScopeMismatch
	CategoryExecScopeMissing
	CategoryValidation
	CategoryNotFound
	CategoryNetwork
	CategoryData
	CategorySystem
	CategoryCache
)

func (c Category) String() string {
	switch c {
	case CategoryExecScopeClosed:
		return "exec_scope_closed"
	case CategoryExecScopeMismatch:
		return "exec_scope_mismatch"
	case CategoryExecScopeMissing:
		return "exec_scope_missing"
	case CategoryValidation:
		return "validation"
	case CategoryNotFound:
		return "not_found"
	case CategoryNetwork:
		return "network"
	case CategoryData:
		return "data"
	case CategorySystem:
		return "system"
	case CategoryCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Terminal reports whether the category never warrants a retry.
func (c Category) Terminal() bool {
	return c == CategoryValidation || c == CategoryNotFound
}

// ExecScope reports whether the category is an executor scope failure,
// which gets a scope reset and one immediate re-run before the normal
// retry policy applies.
func (c Category) ExecScope() bool {
	switch c {
	case CategoryExecScopeClosed, CategoryExecScopeMismatch, CategoryExecScopeMissing:
		return true
	}
	return false
}

// Classify buckets an error. Sentinel and type matches run first; message
// content is the fallback for scope failures surfaced by wrapped errors
// that lost their sentinel.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	switch {
	case errors.Is(err, ErrScopeClosed):
		return CategoryExecScopeClosed
	case errors.Is(err, ErrScopeMismatch):
		return CategoryExecScopeMismatch
	case errors.Is(err, ErrScopeMissing):
		return CategoryExecScopeMissing
	}

	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return CategoryValidation
	case errors.Is(err, shared.ErrNoDataFound),
		errors.Is(err, shared.ErrReleaseNotFound):
		return CategoryNotFound
	}

	var cacheErr *cache.CacheError
	if errors.As(err, &cacheErr) {
		return CategoryCache
	}

	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, shared.ErrTimeout),
		errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrAPIRequest),
		errors.As(err, &netErr),
		errors.As(err, &urlErr):
		return CategoryNetwork
	}

	var jsonSyntaxErr *json.SyntaxError
	var jsonTypeErr *json.UnmarshalTypeError
	var numErr *strconv.NumError
	switch {
	case errors.As(err, &jsonSyntaxErr),
		errors.As(err, &jsonTypeErr),
		errors.As(err, &numErr):
		return CategoryData
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return CategorySystem
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "scope is closed") || strings.Contains(msg, "closed scope"):
		return CategoryExecScopeClosed
	case strings.Contains(msg, "different executor scope") || strings.Contains(msg, "different scope"):
		return CategoryExecScopeMismatch
	case strings.Contains(msg, "no active executor scope") || strings.Contains(msg, "no active scope"):
		return CategoryExecScopeMissing
	}

	return CategoryUnknown
}
