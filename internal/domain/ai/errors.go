package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrConfiguration indicates bad credentials/endpoint. Fatal — never retried.
var ErrConfiguration = errors.New("ai configuration error")

// ErrAnalysisFailed indicates transient failures exhausted the retry budget.
var ErrAnalysisFailed = errors.New("ai analysis failed")
