package config

import (
	"fmt"
	"strings"
)

// Parse reads configuration content as JSONC. An empty document yields the
// base config unchanged; anything that does not open with `{` is rejected.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}

	if !strings.HasPrefix(trimmed, "{") {
		return Config{}, nil, fmt.Errorf("config must be a JSONC object (expected '{', got %q)", trimmed[:1])
	}
	return parseJSONC(content, base)
}
