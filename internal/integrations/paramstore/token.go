package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// tokenPayload is the JSON shape stored in SSM for provider credentials.
type tokenPayload struct {
	Token string `json:"token"`
}

// FetchToken reads a JSON {"token": "..."} parameter and returns the token.
func FetchToken(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("paramstore: getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch token: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal token value as JSON: %w", err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", fmt.Errorf("paramstore: token %q is empty", name)
	}
	return tp.Token, nil
}

// TokenName joins a parameter prefix and a token leaf, e.g.
// "/triage-agent" + "gemini-token".
func TokenName(prefix, leaf string) string {
	return strings.TrimRight(strings.TrimSpace(prefix), "/") + "/" + strings.TrimLeft(leaf, "/")
}
