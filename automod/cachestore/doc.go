// Short-lived string cache with a fixed TTL, with in-process (LRU) and redis implementations.
//
// modbot uses it for the decision-service tool catalog and for dropping redelivered messages.
package cachestore
