package version

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// patchOp is one RFC 6902 JSON Patch operation.
type patchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// diff computes an RFC 6902 patch from oldJSON to newJSON, plus the set
// of top-level field names that changed.
//
// No library in the retrieval pack generates RFC 6902 patches (only
// applies them, or generates RFC 7396 merge patches) — see DESIGN.md for
// the justification — so patch generation here is hand-rolled over the
// decoded document tree, while patch application (stateAt reconstruction,
// in store.go) does use a real third-party library.
func diff(oldJSON, newJSON []byte) (delta []byte, changedFields []string, err error) {
	var oldDoc, newDoc map[string]interface{}
	if len(oldJSON) > 0 {
		if err := json.Unmarshal(oldJSON, &oldDoc); err != nil {
			return nil, nil, fmt.Errorf("version: decode previous state: %w", err)
		}
	}
	if err := json.Unmarshal(newJSON, &newDoc); err != nil {
		return nil, nil, fmt.Errorf("version: decode new state: %w", err)
	}
	// A first version diffs against an empty object, so every top-level
	// field of the new state counts as changed.
	if oldDoc == nil {
		oldDoc = map[string]interface{}{}
	}

	var ops []patchOp
	diffValue("", toIface(oldDoc), toIface(newDoc), &ops)

	changed := map[string]bool{}
	for _, op := range ops {
		changed[topLevelField(op.Path)] = true
	}
	fields := make([]string, 0, len(changed))
	for f := range changed {
		if f != "" {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)

	encoded, err := json.Marshal(ops)
	if err != nil {
		return nil, nil, fmt.Errorf("version: encode delta: %w", err)
	}
	return encoded, fields, nil
}

func toIface(m map[string]interface{}) interface{} {
	if m == nil {
		return nil
	}
	return m
}

func topLevelField(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		return unescapePointer(trimmed[:idx])
	}
	return unescapePointer(trimmed)
}

func diffValue(path string, oldVal, newVal interface{}, ops *[]patchOp) {
	if oldVal == nil && newVal == nil {
		return
	}
	if oldVal == nil {
		*ops = append(*ops, patchOp{Op: "add", Path: path, Value: newVal})
		return
	}
	if newVal == nil {
		*ops = append(*ops, patchOp{Op: "remove", Path: path})
		return
	}

	oldMap, oldIsMap := oldVal.(map[string]interface{})
	newMap, newIsMap := newVal.(map[string]interface{})
	if oldIsMap && newIsMap {
		diffObject(path, oldMap, newMap, ops)
		return
	}

	if !reflect.DeepEqual(oldVal, newVal) {
		*ops = append(*ops, patchOp{Op: "replace", Path: path, Value: newVal})
	}
}

func diffObject(path string, oldMap, newMap map[string]interface{}, ops *[]patchOp) {
	keys := map[string]bool{}
	for k := range oldMap {
		keys[k] = true
	}
	for k := range newMap {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		childPath := path + "/" + escapePointer(k)
		oldChild, hadOld := oldMap[k]
		newChild, hasNew := newMap[k]
		switch {
		case !hadOld && hasNew:
			*ops = append(*ops, patchOp{Op: "add", Path: childPath, Value: newChild})
		case hadOld && !hasNew:
			*ops = append(*ops, patchOp{Op: "remove", Path: childPath})
		default:
			diffValue(childPath, oldChild, newChild, ops)
		}
	}
}

func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	s = strings.ReplaceAll(s, "/", "~1")
	return s
}

func unescapePointer(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	s = strings.ReplaceAll(s, "~0", "~")
	return s
}
