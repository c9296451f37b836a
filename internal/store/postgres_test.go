package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTableNames_MatchTheDurableSchema pins the row-to-table mapping gorm
// relies on; the rest of Postgres needs a live database and goes untested.
func TestTableNames_MatchTheDurableSchema(t *testing.T) {
	assert.Equal(t, "relay_patch_history", patchRow{}.TableName())
	assert.Equal(t, "relay_tts_queue_state", queueRow{}.TableName())
}
