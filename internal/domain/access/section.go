package access

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Section is one category of access state for a founder record: the providers
// they selected, free-text context, and per-provider grant data.
type Section struct {
	Selected     []string                 `json:"selected"`
	OtherText    string                   `json:"otherText"`
	Explanation  string                   `json:"explanation"`
	Providers    map[string]ProviderGrant `json:"providers"`
	LastSyncedAt string                   `json:"last_synced_at,omitempty"`
}

// ProviderGrant is an open field bag for one provider's credential/status
// record. Only authorized/updated_at/granted_at drive logic; everything else
// (tokens, account ids) passes through untouched.
type ProviderGrant map[string]any

// Authorized reports whether the grant carries authorized == true.
func (g ProviderGrant) Authorized() bool {
	v, ok := g["authorized"].(bool)
	return ok && v
}

// GrantedAt returns the granted_at timestamp string, if any.
func (g ProviderGrant) GrantedAt() string {
	v, _ := g["granted_at"].(string)
	return v
}

// UpdatedAt returns the updated_at timestamp string, if any.
func (g ProviderGrant) UpdatedAt() string {
	v, _ := g["updated_at"].(string)
	return v
}

func (g ProviderGrant) clone() ProviderGrant {
	out := make(ProviderGrant, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

// mergeOver overlays in's fields on top of g. Fields absent from in survive.
func (g ProviderGrant) mergeOver(in ProviderGrant) ProviderGrant {
	out := g.clone()
	for k, v := range in {
		out[k] = v
	}
	return out
}

func emptySection() Section {
	return Section{
		Selected:  []string{},
		Providers: map[string]ProviderGrant{},
	}
}

// NormalizeSection coerces arbitrary, partial, or legacy-shaped input into the
// canonical Section shape. Nil and non-object inputs yield the empty section.
// Idempotent: normalizing an already-normalized section changes nothing.
func NormalizeSection(raw any) Section {
	switch v := raw.(type) {
	case Section:
		return normalizeShaped(v)
	case *Section:
		if v == nil {
			return emptySection()
		}
		return normalizeShaped(*v)
	case map[string]any:
		return normalizeMap(v)
	default:
		return emptySection()
	}
}

func normalizeShaped(in Section) Section {
	out := emptySection()
	out.Selected = filterSelected(anyStrings(in.Selected))
	out.OtherText = in.OtherText
	out.Explanation = in.Explanation
	for key, grant := range in.Providers {
		out.Providers[key] = grant.clone()
	}
	out.LastSyncedAt = in.LastSyncedAt
	return out
}

func normalizeMap(in map[string]any) Section {
	out := emptySection()

	switch sel := in["selected"].(type) {
	case []any:
		out.Selected = filterSelected(sel)
	case []string:
		out.Selected = filterSelected(anyStrings(sel))
	}

	if s, ok := in["otherText"].(string); ok && s != "" {
		out.OtherText = s
	} else if s, ok := in["other"].(string); ok {
		// Legacy field name carried by older saved rows.
		out.OtherText = s
	}

	if s, ok := in["explanation"].(string); ok {
		out.Explanation = s
	}

	if providers, ok := in["providers"].(map[string]any); ok {
		for key, value := range providers {
			entry, ok := value.(map[string]any)
			if !ok {
				// Non-object provider entries are dropped, not rejected.
				continue
			}
			out.Providers[key] = ProviderGrant(entry).clone()
		}
	}

	if s, ok := in["last_synced_at"].(string); ok {
		out.LastSyncedAt = s
	}

	return out
}

// filterSelected keeps non-empty strings, deduplicated. The emptiness check
// trims whitespace but the retained value is the original, untrimmed string.
func filterSelected(items []any) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, item := range items {
		s, ok := item.(string)
		if !ok || len(strings.TrimSpace(s)) == 0 {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func anyStrings(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// MergeSections combines two sections without losing data. Selected becomes
// the union of both sides plus every merged provider key; provider records are
// shallow-merged per key with incoming fields winning; free-text fields follow
// incoming-if-non-empty precedence. Last write wins per field; divergent
// concurrent merges are not reconciled beyond that.
func MergeSections(existing, incoming any) Section {
	ex := NormalizeSection(existing)
	in := NormalizeSection(incoming)

	out := emptySection()
	for key, grant := range ex.Providers {
		out.Providers[key] = grant.clone()
	}
	for key, grant := range in.Providers {
		out.Providers[key] = out.Providers[key].mergeOver(grant)
	}

	out.Selected = unionSelected(ex.Selected, in.Selected)
	out.Selected = unionSelected(out.Selected, providerKeys(out.Providers))

	out.OtherText = pickText(in.OtherText, ex.OtherText)
	out.Explanation = pickText(in.Explanation, ex.Explanation)
	out.LastSyncedAt = pickText(in.LastSyncedAt, ex.LastSyncedAt)
	return out
}

// MarkProviderAuthorized records a completed authorization for providerID,
// merging data over the previous grant and authorization defaults. The first
// grant pins granted_at; later grants refresh updated_at only, unless data
// carries its own timestamps (data fields always win). Returns a new Section;
// the input is never mutated. Empty providerID is a no-op.
func MarkProviderAuthorized(section any, providerID string, data ProviderGrant, now time.Time) Section {
	out := NormalizeSection(section)
	if providerID == "" {
		return out
	}

	stamp := now.UTC().Format(time.RFC3339)
	granted := stamp
	prev := out.Providers[providerID]
	if g := prev.GrantedAt(); g != "" {
		granted = g
	}

	next := prev.clone()
	next["authorized"] = true
	next["updated_at"] = stamp
	next["granted_at"] = granted
	for k, v := range data {
		next[k] = v
	}

	out.Providers[providerID] = next
	out.Selected = unionSelected(out.Selected, []string{providerID})
	return out
}

// Map returns the section in its plain JSON-object form.
func (s Section) Map() map[string]any {
	raw, err := json.Marshal(NormalizeSection(s))
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// DecodeSectionJSON normalizes a stored JSON column value. Empty or invalid
// payloads yield the empty section.
func DecodeSectionJSON(raw []byte) Section {
	if len(raw) == 0 {
		return emptySection()
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return emptySection()
	}
	return normalizeMap(m)
}

func unionSelected(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	out := append([]string{}, base...)
	for _, s := range base {
		seen[s] = struct{}{}
	}
	for _, s := range extra {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func providerKeys(providers map[string]ProviderGrant) []string {
	keys := make([]string, 0, len(providers))
	for key := range providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func pickText(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}
