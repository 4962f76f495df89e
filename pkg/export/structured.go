package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// structuredRewriter handles the diarization result JSON. Three regions are
// updated independently: the speaker list, the segment list, and the
// label-keyed statistics map. Each record resolves through an immutable
// original label, so repeated passes and re-renames always find the right
// speaker even after a display name has replaced the visible field.
type structuredRewriter struct{}

func (structuredRewriter) Rewrite(path string, names map[string]string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return Result{Outcome: ParseFailed, Detail: err.Error()}, nil
	}

	changed := rewriteSpeakerList(doc, names)
	changed = rewriteSegmentList(doc, names) || changed
	changed = rewriteStatsMap(doc, names) || changed

	if !changed {
		return Result{Outcome: Unchanged}, nil
	}

	doc["updatedAt"] = time.Now().UTC().Format(time.RFC3339)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return Result{}, fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := replaceFile(path, buf.Bytes()); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Changed}, nil
}

// rewriteSpeakerList updates displayName on speaker records. A speaker's
// label is the immutable join key and is never rewritten. Any originalLabel
// on a speaker record belongs to the engine (the raw diarizer turn label)
// and is left alone.
func rewriteSpeakerList(doc map[string]interface{}, names map[string]string) bool {
	list, ok := doc["speakers"].([]interface{})
	if !ok {
		return false
	}
	changed := false
	for _, item := range list {
		rec, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		label, ok := stringField(rec, "label")
		if !ok {
			continue
		}
		name, ok := names[label]
		if !ok {
			continue
		}
		if current, _ := stringField(rec, "displayName"); current != name {
			rec["displayName"] = name
			changed = true
		}
	}
	return changed
}

// rewriteSegmentList updates the visible speaker field on segment records.
// The first rewrite captures the stable label into originalLabel; later
// passes resolve through that marker, never through the already-renamed
// visible value.
func rewriteSegmentList(doc map[string]interface{}, names map[string]string) bool {
	list, ok := doc["segments"].([]interface{})
	if !ok {
		return false
	}
	changed := false
	for _, item := range list {
		rec, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		field := "speakerLabel"
		visible, ok := stringField(rec, field)
		if !ok {
			field = "speaker"
			if visible, ok = stringField(rec, field); !ok {
				continue
			}
		}

		origin, marked := stringField(rec, "originalLabel")
		if !marked || origin == "" {
			origin = visible
		}
		name, ok := names[origin]
		if !ok || visible == name {
			continue
		}

		if !marked {
			rec["originalLabel"] = origin
		}
		rec[field] = name
		changed = true
	}
	return changed
}

// rewriteStatsMap moves statistics entries from label keys to display-name
// keys. An entry moves only when its target key is free: no other entry may
// be staying at it and no second entry may want it. Contended entries keep
// their current keys; a later pass can still move them once the contention
// is gone. The origin travels with a moved entry in originalLabel, so moved
// entries keep resolving through the true label. Swapped display names move
// both entries cleanly because targets are computed against the post-move
// key set.
func rewriteStatsMap(doc map[string]interface{}, names map[string]string) bool {
	stats, ok := doc["speakerStats"].(map[string]interface{})
	if !ok {
		return false
	}

	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	targets := make(map[string]string, len(stats))
	wantCount := make(map[string]int, len(stats))
	staying := make(map[string]bool, len(stats))
	for _, key := range keys {
		desired := key
		if name, ok := names[statsOrigin(key, stats[key])]; ok {
			desired = name
		}
		targets[key] = desired
		if desired == key {
			staying[key] = true
		} else {
			wantCount[desired]++
		}
	}

	changed := false
	rebuilt := make(map[string]interface{}, len(stats))
	for _, key := range keys {
		value := stats[key]
		desired := targets[key]
		if desired == key || wantCount[desired] > 1 || staying[desired] {
			rebuilt[key] = value
			continue
		}
		if rec, ok := value.(map[string]interface{}); ok {
			if _, marked := stringField(rec, "originalLabel"); !marked {
				rec["originalLabel"] = key
			}
		}
		rebuilt[desired] = value
		changed = true
	}
	if changed {
		doc["speakerStats"] = rebuilt
	}
	return changed
}

// statsOrigin resolves the stable label a statistics entry belongs to: the
// capture-once marker when present, otherwise the entry's current key.
func statsOrigin(key string, value interface{}) string {
	if rec, ok := value.(map[string]interface{}); ok {
		if origin, ok := stringField(rec, "originalLabel"); ok && origin != "" {
			return origin
		}
	}
	return key
}

// stringField reads a string-typed field from a decoded record.
func stringField(rec map[string]interface{}, key string) (string, bool) {
	v, ok := rec[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
