package model

import (
	"strconv"
)

// CounterKeyPrefix namespaces the per-second request counters in the store.
// The "requests:{unix_seconds}" convention is shared with every reader and
// must not change.
const CounterKeyPrefix = "requests:"

// CounterKey returns the store key for the counter of a given Unix second.
func CounterKey(ts int64) string {
	return CounterKeyPrefix + strconv.FormatInt(ts, 10)
}
