package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactedConfig_Nil(t *testing.T) {
	assert.Nil(t, RedactedConfig(nil))
}

func TestRedactedConfig_MasksSensitiveKeys(t *testing.T) {
	cfg := map[string]any{
		"password":          "hunter2",
		"api_key":           "abc123",
		"connection_string": "postgres://u:p@host/db",
		"client_secret":     "shh",
		"auth_token":        "tok",
		"root_path":         "/data/docs",
		"tenant_id":         "f00d",
	}

	out := RedactedConfig(cfg)

	assert.Equal(t, redactedConfigValue, out["password"])
	assert.Equal(t, redactedConfigValue, out["api_key"])
	assert.Equal(t, redactedConfigValue, out["connection_string"])
	assert.Equal(t, redactedConfigValue, out["client_secret"])
	assert.Equal(t, redactedConfigValue, out["auth_token"])
	assert.Equal(t, "/data/docs", out["root_path"])
	assert.Equal(t, "f00d", out["tenant_id"])
}

func TestRedactedConfig_RecursesIntoNestedMaps(t *testing.T) {
	cfg := map[string]any{
		"auth": map[string]any{
			"password": "hunter2",
			"username": "alice",
		},
	}

	out := RedactedConfig(cfg)

	nested, ok := out["auth"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, redactedConfigValue, nested["password"])
	assert.Equal(t, "alice", nested["username"])
}

func TestRedactedConfig_DoesNotMutateInput(t *testing.T) {
	cfg := map[string]any{"password": "hunter2"}

	_ = RedactedConfig(cfg)

	assert.Equal(t, "hunter2", cfg["password"])
}

func TestRedactedConfig_CaseInsensitive(t *testing.T) {
	cfg := map[string]any{"API_KEY": "abc123", "Password": "x"}

	out := RedactedConfig(cfg)

	assert.Equal(t, redactedConfigValue, out["API_KEY"])
	assert.Equal(t, redactedConfigValue, out["Password"])
}
