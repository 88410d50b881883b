// Shared retry wrapper for outbound provider calls (completion providers, the decision service, toxicity scoring).
//
// Transient failures (connection errors, timeouts, rate limiting) are retried with exponential backoff plus jitter. Whatever the outcome, callers see either a value or a *ProviderError.
package retry
