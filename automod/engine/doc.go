// Moderation engine for chat platform messages.
//
// Each inbound message is scored for toxicity and matched against the first policy rule whose range contains the score. The rule's actions (delete, warn, timeout, escalate, or a deferred decision) run in order through a Registry of handlers. Every attempt is persisted to the action log, and escalation thresholds are evaluated after each successful action so that, for example, a third warning in the window triggers a timeout exactly once.
//
// The engine does not talk to a chat platform directly; see the Platform interface, and `cmd/modbot` for a daemon built on this package.
package engine
