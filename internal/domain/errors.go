package domain

import "errors"

var (
	// ErrInvalidSpec signals a malformed patient spec.
	ErrInvalidSpec = errors.New("invalid patient spec")
	// ErrServiceUnavailable signals an unreachable embedding or index backend.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrTimeout signals an exceeded deadline on a network call.
	ErrTimeout = errors.New("timeout")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMOutput signals unusable language-model output.
	ErrLLMOutput = errors.New("language model returned unusable output")
	// ErrTrialNotFound signals a missing trial record.
	ErrTrialNotFound = errors.New("trial not found")
)
