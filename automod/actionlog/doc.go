// Persistent log of executed moderation actions, plus user appeals against them.
//
// The action log is append-only and is the only source of truth for windowed escalation counts. Implementations: GormStore (sqlite or postgres), MemStore (tests and dry runs), and KafkaTee, which mirrors writes onto a Kafka topic.
package actionlog
