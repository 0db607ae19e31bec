package rollout

import (
	"fmt"
	"hash/fnv"
	"testing"
)

func TestBucket_Deterministic(t *testing.T) {
	userID := "user-123"
	flagKey := "feature_x"

	bucket1 := Bucket(userID, flagKey)
	bucket2 := Bucket(userID, flagKey)

	if bucket1 != bucket2 {
		t.Errorf("Bucket is not deterministic: got %d and %d", bucket1, bucket2)
	}

	if bucket1 < 0 || bucket1 >= 100 {
		t.Errorf("Bucket out of range: %d", bucket1)
	}
}

func TestBucket_FrozenAlgorithm(t *testing.T) {
	// The bucket must equal FNV-1a/32("userID:flagKey") mod 100. This pins
	// the exact hash and input format the whole SDK family agrees on.
	userID := "user-123"
	flagKey := "feature_x"

	h := fnv.New32a()
	h.Write([]byte(userID + ":" + flagKey))
	want := int(h.Sum32() % 100)

	if got := Bucket(userID, flagKey); got != want {
		t.Errorf("Bucket(%q, %q) = %d, want %d", userID, flagKey, got, want)
	}
}

func TestBucket_EmptyUserID(t *testing.T) {
	if bucket := Bucket("", "feature_x"); bucket != -1 {
		t.Errorf("Expected -1 for empty userID, got %d", bucket)
	}
}

func TestBucket_Distribution(t *testing.T) {
	flagKey := "feature_x"
	bucketCounts := make([]int, 100)

	for i := 0; i < 10000; i++ {
		bucket := Bucket(fmt.Sprintf("user-%d", i), flagKey)
		if bucket >= 0 && bucket < 100 {
			bucketCounts[bucket]++
		}
	}

	// Each bucket should hold ~100 of 10000 users; allow 50% variance.
	for i, count := range bucketCounts {
		if count < 50 || count > 150 {
			t.Errorf("Bucket %d has %d users, expected ~100", i, count)
		}
	}
}

func TestInRollout_Extremes(t *testing.T) {
	for i := 0; i < 50; i++ {
		userID := fmt.Sprintf("user-%d", i)
		if !InRollout(userID, "flag", 100) {
			t.Errorf("100%% rollout must enroll every user, excluded %q", userID)
		}
		if InRollout(userID, "flag", 0) {
			t.Errorf("0%% rollout must enroll nobody, enrolled %q", userID)
		}
	}

	// 100% enrolls even without a user id; anything below does not.
	if !InRollout("", "flag", 100) {
		t.Error("100%% rollout must enroll anonymous users")
	}
	if InRollout("", "flag", 99) {
		t.Error("anonymous users must never be enrolled below 100%%")
	}
}

func TestInRollout_Monotonic(t *testing.T) {
	// If a user is enrolled at pct1, they stay enrolled at every pct2 > pct1.
	for i := 0; i < 200; i++ {
		userID := fmt.Sprintf("user-%d", i)
		enrolled := false
		for pct := 0; pct <= 100; pct++ {
			in := InRollout(userID, "checkout_v2", pct)
			if enrolled && !in {
				t.Fatalf("user %q enrolled at a lower percentage but excluded at %d", userID, pct)
			}
			enrolled = in
		}
	}
}

func TestBucket_DifferentFlagsIndependent(t *testing.T) {
	userID := "user-123"
	b1 := Bucket(userID, "flag_a")
	b2 := Bucket(userID, "flag_b")

	// Not a hard guarantee for any single pair, but these two known inputs
	// hash to different buckets; a regression here means the flag key is no
	// longer part of the hash input.
	if b1 == b2 {
		t.Logf("flag_a and flag_b both bucket to %d; verifying flag key participates", b1)
		h := fnv.New32a()
		h.Write([]byte(userID + ":flag_a"))
		if int(h.Sum32()%100) != b1 {
			t.Error("flag key is not part of the hash input")
		}
	}
}
