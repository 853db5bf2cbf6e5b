package queue

import (
	"crypto/sha256"
	"encoding/hex"
)

// Job key prefixes. A rubric job is keyed by evaluation id, a grading job
// by submission id.
const (
	RubricKeyPrefix  = "rubrics"
	GradingKeyPrefix = "eval"
)

// DeriveJobKey produces a deterministic, transport-safe task identity for
// a domain entity. Re-enqueuing the same logical unit of work yields the
// same key, which the queue deduplicates. The digest is truncated: 96
// bits is ample against collisions between domain ids, and the output is
// hex so it contains none of the characters the queue reserves.
func DeriveJobKey(prefix, domainID string) string {
	sum := sha256.Sum256([]byte(prefix + "/" + domainID))
	return prefix + "-" + hex.EncodeToString(sum[:12])
}
