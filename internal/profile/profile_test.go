package profile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	dir := t.TempDir()
	p := &Profile{Data: dir}
	require.NoError(t, p.Validate())

	assert.Equal(t, "dev", p.Mode)
	assert.Equal(t, "sqlite", p.Driver)
	assert.Equal(t, "openrouter", p.LLMProvider)
	assert.Equal(t, time.Second, p.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, p.RetryMaxDelay)
	assert.Equal(t, filepath.Join(dir, "procura_dev.db"), p.DSN)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	p := &Profile{Data: t.TempDir(), Driver: "oracle"}
	assert.Error(t, p.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	p := &Profile{Data: t.TempDir(), LLMProvider: "carrier-pigeon"}
	assert.Error(t, p.Validate())
}

func TestRetriesFor(t *testing.T) {
	p := &Profile{}
	assert.Equal(t, 5, p.RetriesFor("openrouter"))
	assert.Equal(t, 3, p.RetriesFor("openai"))
	assert.Equal(t, 3, p.RetriesFor("unknown"))

	p.MaxRetries = map[string]int{"openai": 7}
	assert.Equal(t, 7, p.RetriesFor("openai"))
}
