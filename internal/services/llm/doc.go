// Package llm provides an OpenRouter-compatible chat client used by the
// judgment service.
//
// Every request asks for a JSON object response. CompleteJSON sends a plain
// system/user pair; CompleteJSONWithImages appends inline images to the user
// turn as base64 data URLs and targets the configured vision model, which the
// reference selector needs to look at candidate stills.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive the raw JSON payload.
// Client.CompleteJSONWithImages: same, with images attached.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: decode a payload, tolerating code fences and leading prose.
//
// # Retry Behaviour
//
// Requests run under cenkalti/backoff. HTTP 408/429/5xx, network timeouts and
// empty completions are retried with a doubling delay (base 1s, max 10s, up to
// 5 attempts by default); a Retry-After header replaces the next delay.
// WithRetryObserver sees each scheduled retry. Context cancellation aborts
// retries immediately.
//
// Final errors carry services markers: ErrConfiguration for rejected
// credentials, ErrTransient when retryable failures exhaust the budget and
// ErrExternalTool for everything else. Undecodable payloads wrap
// ErrMalformedPayload.
package llm
