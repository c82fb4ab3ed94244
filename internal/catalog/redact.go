package catalog

import "strings"

// sensitiveConfigKeySubstrings flags a source_config/rag_config map key as secret
// if its name (case-insensitive) contains any of these. Mirrors config.maskSecret's
// intent for the KB-level config blobs, which config.Config never sees.
var sensitiveConfigKeySubstrings = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"connection_string",
	"credential",
}

const redactedConfigValue = "████████"

// RedactedConfig returns a copy of cfg with every value whose key looks like a
// secret replaced by a fixed placeholder. Used by the info and status commands
// before printing a knowledge base's source_config/rag_config (SPEC_FULL §12
// item 3) so operators can inspect configuration without leaking credentials.
func RedactedConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		if isSensitiveConfigKey(k) {
			out[k] = redactedConfigValue
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = RedactedConfig(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveConfigKey(key string) bool {
	lower := strings.ToLower(key)
	for _, substr := range sensitiveConfigKeySubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}
