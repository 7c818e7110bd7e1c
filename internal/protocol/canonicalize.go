package protocol

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CanonicalizeIntentParams renders an intent-parameter bag as a stable,
// order-independent string suitable for hashing into an executor plan
// digest. Map keys are sorted; non-plain values (funcs, channels, anything
// that cannot be rendered as JSON-like data) are dropped rather than
// causing the whole digest to fail; a circular reference is broken the same
// way a value cannot be serialized twice.
//
// unserializable is true, and droppedPaths names every path that was
// dropped, whenever the input was not fully representable — the caller
// (C5) uses this to decide whether to emit intent_params_unserializable.
func CanonicalizeIntentParams(params map[string]any) (canonical string, unserializable bool, droppedPaths []string) {
	return CanonicalizeAny(params)
}

// CanonicalizeAny runs the same canonicalization over any JSON-like value,
// not just a top-level parameter map — used for hashing step lists into an
// executorPlanDigest (spec §4.5.1 step 3).
func CanonicalizeAny(v any) (canonical string, unserializable bool, droppedPaths []string) {
	seen := map[uintptr]bool{}
	var dropped []string
	out := canonicalizeValue(v, seen, &dropped, "$")
	return out, len(dropped) > 0, dropped
}

func canonicalizeValue(v any, seen map[uintptr]bool, dropped *[]string, path string) string {
	if v == nil {
		return "null"
	}

	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return strconv.Quote(t.UTC().Format(time.RFC3339Nano))
	case map[string]any:
		return canonicalizeMap(t, v, seen, dropped, path)
	case []any:
		return canonicalizeSlice(t, v, seen, dropped, path)
	}

	// Reflect for other concrete numeric/slice/map shapes produced by
	// collaborators that don't round-trip through encoding/json.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			for _, k := range rv.MapKeys() {
				m[k.String()] = rv.MapIndex(k).Interface()
			}
			return canonicalizeMap(m, v, seen, dropped, path)
		}
	case reflect.Slice, reflect.Array:
		s := make([]any, rv.Len())
		for i := range s {
			s[i] = rv.Index(i).Interface()
		}
		return canonicalizeSlice(s, v, seen, dropped, path)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Bool:
		if rv.Bool() {
			return "true"
		}
		return "false"
	case reflect.String:
		return strconv.Quote(rv.String())
	}

	*dropped = append(*dropped, path)
	return "null"
}

// referenceKey returns the reference-identity pointer of a map/slice value
// for cycle detection, and false for everything else.
func referenceKey(v any) (uintptr, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	}
	return 0, false
}

func canonicalizeMap(m map[string]any, raw any, seen map[uintptr]bool, dropped *[]string, path string) string {
	if key, ok := referenceKey(raw); ok {
		if seen[key] {
			*dropped = append(*dropped, path+" (circular)")
			return "null"
		}
		seen[key] = true
		defer delete(seen, key)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		child := canonicalizeValue(m[k], seen, dropped, fmt.Sprintf("%s.%s", path, k))
		parts = append(parts, strconv.Quote(k)+":"+child)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func canonicalizeSlice(s []any, raw any, seen map[uintptr]bool, dropped *[]string, path string) string {
	if key, ok := referenceKey(raw); ok {
		if seen[key] {
			*dropped = append(*dropped, path+" (circular)")
			return "null"
		}
		seen[key] = true
		defer delete(seen, key)
	}

	parts := make([]string, 0, len(s))
	for i, e := range s {
		parts = append(parts, canonicalizeValue(e, seen, dropped, fmt.Sprintf("%s[%d]", path, i)))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
