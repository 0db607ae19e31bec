// Package rollout provides deterministic user bucketing for feature flag rollouts.
package rollout

import "hash/fnv"

// Bucket returns a deterministic bucket (0-99) for the given user and flag.
//
// The algorithm is frozen across every SDK implementation:
//
//	bucket = FNV-1a/32("<userID>:<flagKey>") mod 100
//
// Identical (userID, flagKey) inputs must yield identical buckets in every
// client, in every language; changing the hash, the delimiter, or the
// input order silently re-buckets every user.
func Bucket(userID, flagKey string) int {
	if userID == "" {
		return -1 // Invalid: no user context
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID + ":" + flagKey))
	return int(h.Sum32() % 100)
}

// InRollout reports whether the user is enrolled at the given percentage.
// Percentages at or above 100 always enroll and at or below 0 never
// enroll, independent of the hash; between the two, the user is enrolled
// when their bucket is strictly below the percentage.
func InRollout(userID, flagKey string, percentage int) bool {
	if percentage >= 100 {
		return true
	}
	if percentage <= 0 || userID == "" {
		return false
	}
	return Bucket(userID, flagKey) < percentage
}
