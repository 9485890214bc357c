package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractString(t *testing.T) {
	kv := []any{"grove_id", "g-1", "tree_count", 4, "heir_id", "h-9", "dangling"}

	assert.Equal(t, "g-1", ExtractString(kv, "grove_id"))
	assert.Equal(t, "h-9", ExtractString(kv, "heir_id"))
	assert.Empty(t, ExtractString(kv, "tree_count"), "non-string value")
	assert.Empty(t, ExtractString(kv, "dangling"), "key without value")
	assert.Empty(t, ExtractString(nil, "grove_id"))
}
