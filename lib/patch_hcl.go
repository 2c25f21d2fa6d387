// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package lib

// PatchSliceOfMaps rewrites the single element lists of maps that the HCL
// v1 decoder produces for blocks into plain maps, so a block such as
// "collective { ... }" can be decoded into a struct. Paths named in skip
// (dotted, e.g. "provider") are kept as lists because they may repeat.
func PatchSliceOfMaps(m map[string]interface{}, skip []string) map[string]interface{} {
	out, _ := patchValue("", m, skip).(map[string]interface{})
	return out
}

func patchValue(name string, v interface{}, skip []string) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			key := k
			if name != "" {
				key = name + "." + k
			}
			out[k] = patchValue(key, val, skip)
		}
		return out

	case []map[string]interface{}:
		list := make([]interface{}, len(x))
		for i := range x {
			list[i] = x[i]
		}
		return patchValue(name, list, skip)

	case []interface{}:
		if len(x) == 1 && !skipped(skip, name) {
			if m, ok := x[0].(map[string]interface{}); ok {
				return patchValue(name, m, skip)
			}
		}
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = patchValue(name, val, skip)
		}
		return out

	default:
		return v
	}
}

func skipped(skip []string, name string) bool {
	for _, s := range skip {
		if s == name {
			return true
		}
	}
	return false
}
