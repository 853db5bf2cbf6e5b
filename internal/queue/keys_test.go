package queue

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveJobKeyDeterministic(t *testing.T) {
	first := DeriveJobKey(RubricKeyPrefix, "42")
	second := DeriveJobKey(RubricKeyPrefix, "42")
	require.Equal(t, first, second)
}

func TestDeriveJobKeyDistinct(t *testing.T) {
	keys := map[string]bool{
		DeriveJobKey(RubricKeyPrefix, "1"):  true,
		DeriveJobKey(RubricKeyPrefix, "2"):  true,
		DeriveJobKey(GradingKeyPrefix, "1"): true,
		DeriveJobKey(GradingKeyPrefix, "2"): true,
	}
	require.Len(t, keys, 4)
}

func TestDeriveJobKeyCharset(t *testing.T) {
	// Task ids travel through Redis key names; keep them to a safe alphabet.
	safe := regexp.MustCompile(`^[a-z]+-[0-9a-f]{24}$`)

	require.Regexp(t, safe, DeriveJobKey(RubricKeyPrefix, "7"))
	require.Regexp(t, safe, DeriveJobKey(GradingKeyPrefix, "900000"))
}
