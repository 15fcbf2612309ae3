// Package oauth carries correlation data through a provider redirect round
// trip. The state token is URL-safe base64 over JSON — opaque, but NOT signed:
// it provides no integrity or authenticity guarantee, and any party that knows
// a uid can forge one. The wire shape is frozen for compatibility with states
// already in flight; do not strengthen it here.
package oauth

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// StatePayload is the correlation object threaded through the redirect.
// Created when authorization starts, consumed once on callback, never stored.
type StatePayload struct {
	UID    string `json:"uid"`
	Column string `json:"column"`
	Nonce  string `json:"nonce"`
	TS     int64  `json:"ts"`
}

// EncodeState serializes payload to JSON and encodes it URL-safe: base64 with
// '+' as '-', '/' as '_', and no '=' padding. Returns "" when payload is not
// a JSON object or cannot be serialized.
func EncodeState(payload any) string {
	if payload == nil {
		return ""
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeState reverses EncodeState, tolerating proxies that rewrite the
// URL-safe alphabet or restore padding. When base64/JSON parsing fails it
// falls back to the legacy colon-delimited form "uid:column". Returns nil if
// both strategies fail or state is empty.
func DecodeState(state string) map[string]any {
	s := strings.TrimSpace(state)
	if s == "" {
		return nil
	}
	if m := decodeBase64JSON(s); m != nil {
		return m
	}
	return decodeLegacy(s)
}

func decodeBase64JSON(s string) map[string]any {
	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(s)
	if rem := len(normalized) % 4; rem != 0 {
		normalized += strings.Repeat("=", 4-rem)
	}
	raw, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func decodeLegacy(s string) map[string]any {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return nil
	}
	return map[string]any{"uid": parts[0], "column": parts[1]}
}
