package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient(&Config{Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewClient(&Config{Provider: "anthropic", APIKey: "k", Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewClient(&Config{Provider: "anthropic", Logger: zap.NewNop()})
	assert.Error(t, err)

	_, err = NewClient(&Config{Provider: "openai", Logger: zap.NewNop()})
	assert.EqualError(t, err, "unsupported LLM provider: openai")
}
