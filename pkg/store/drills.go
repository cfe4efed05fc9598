package store

import (
	"encoding/json"
	"strings"
)

// The drills payload shape is not contractually fixed by the external
// report generator, so records at rest may hold a proper JSON array, a
// JSON string that itself encodes an array, or a single bare string.
// DecodeDrills is the one place that tolerance lives.

// DecodeDrills normalizes a stored drills payload to an ordered string
// slice. It never fails: an undecodable non-empty payload degrades to a
// one-element slice holding the raw text.
func DecodeDrills(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return compactDrills(list)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return drillsFromText(text)
	}

	// Not valid JSON at all; treat the raw bytes as one opaque drill.
	return drillsFromText(string(raw))
}

func drillsFromText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}
	// The string may itself be an encoded array.
	if strings.HasPrefix(text, "[") {
		var list []string
		if err := json.Unmarshal([]byte(text), &list); err == nil {
			return compactDrills(list)
		}
	}
	return []string{text}
}

func compactDrills(list []string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// EncodeDrills serializes drills as a JSON array for storage.
func EncodeDrills(drills []string) []byte {
	if drills == nil {
		drills = []string{}
	}
	raw, err := json.Marshal(drills)
	if err != nil {
		return []byte("[]")
	}
	return raw
}
