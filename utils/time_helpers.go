package utils

import "time"

// Timestamps are stored in DynamoDB as RFC3339 UTC strings (they compare
// lexicographically) and travel on the sync wire as epoch milliseconds.

// NowRFC3339 returns the current UTC time in the storage format.
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ToEpochMs converts a stored RFC3339 timestamp to epoch milliseconds.
// Empty or unparseable values yield 0.
func ToEpochMs(ts string) int64 {
	if ts == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// MaxEpochMs returns the greatest epoch-ms value among the given stored
// timestamps, or 0 if none parse.
func MaxEpochMs(timestamps ...string) int64 {
	var max int64
	for _, ts := range timestamps {
		if ms := ToEpochMs(ts); ms > max {
			max = ms
		}
	}
	return max
}

// AfterCursor reports whether the stored timestamp is strictly newer than
// the cursor. Empty timestamps are never newer.
func AfterCursor(ts string, cursor time.Time) bool {
	ms := ToEpochMs(ts)
	return ms > 0 && ms > cursor.UnixMilli()
}
