package document

import (
	"fmt"
	"sort"

	"github.com/solatis/firewrite/internal/types"
)

// FromNative converts a Go map into a document. Go maps are unordered, so
// keys are sorted; callers that need a specific transform order should build
// a types.Mapping directly. types.Value entries pass through unchanged, which
// is how sentinels are placed in native input.
func FromNative(m map[string]any) (types.Mapping, error) {
	v, err := fromNativeMap(m)
	if err != nil {
		return nil, err
	}
	return v.Fields, nil
}

func fromNative(x any) (types.Value, error) {
	switch t := x.(type) {
	case types.Value:
		return t, nil
	case types.Mapping:
		return types.Map(t...), nil
	case map[string]any:
		return fromNativeMap(t)
	case []any:
		items := make([]types.Value, 0, len(t))
		for i, e := range t {
			item, err := fromNative(e)
			if err != nil {
				return types.Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, item)
		}
		return types.Array(items...), nil
	case []types.Value:
		return types.Array(t...), nil
	default:
		return types.Scalar(x), nil
	}
}

func fromNativeMap(m map[string]any) (types.Value, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make(types.Mapping, 0, len(keys))
	for _, k := range keys {
		v, err := fromNative(m[k])
		if err != nil {
			return types.Value{}, fmt.Errorf("%s: %w", k, err)
		}
		fields = append(fields, types.F(k, v))
	}
	return types.Map(fields...), nil
}
