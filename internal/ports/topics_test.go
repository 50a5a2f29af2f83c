package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunTopics(t *testing.T) {
	assert.Equal(t, []string{"run:abc", "run:abc:log", "run:abc:error"}, RunTopics("abc"))
}

func TestRunIDFromTopic(t *testing.T) {
	for _, topic := range RunTopics("r-1") {
		id, ok := RunIDFromTopic(topic)
		assert.True(t, ok, topic)
		assert.Equal(t, "r-1", id)
	}

	_, ok := RunIDFromTopic("graph.events")
	assert.False(t, ok)
	_, ok = RunIDFromTopic("run:")
	assert.False(t, ok)
}
