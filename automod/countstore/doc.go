// Windowed counters (hour/day/total buckets) with redis and in-memory implementations, plus a simple quota built on them.
package countstore
