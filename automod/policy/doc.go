// Declarative moderation policy: ordered toxicity-range rules, windowed escalation thresholds, role exemptions and appeals settings.
//
// A Policy is loaded once at startup (see Load) and is immutable afterwards. Evaluation is pure.
package policy
