package helm

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Values represents helm chart values as a map.
type Values map[string]any

// Merge combines multiple Values maps with later maps taking precedence.
// Nested maps are replaced, not merged; use DeepMerge for that.
func Merge(valueMaps ...Values) Values {
	result := make(Values)
	for _, m := range valueMaps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// DeepMerge merges override into base recursively. Maps are merged key by
// key; any other value in override replaces the one in base. Neither input
// is modified.
func DeepMerge(base, override Values) Values {
	result := make(Values, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		baseMap, baseOK := asValues(result[k])
		overrideMap, overrideOK := asValues(v)
		if baseOK && overrideOK {
			result[k] = DeepMerge(baseMap, overrideMap)
			continue
		}
		result[k] = v
	}
	return result
}

func asValues(v any) (Values, bool) {
	switch m := v.(type) {
	case Values:
		return m, true
	case map[string]any:
		return Values(m), true
	default:
		return nil, false
	}
}

// ToMap converts values and every nested Values to plain maps, the form the
// Helm engine expects.
func (v Values) ToMap() map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = plain(val)
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case Values:
		return t.ToMap()
	case map[string]any:
		return Values(t).ToMap()
	case []Values:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = item.ToMap()
		}
		return items
	case []any:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = plain(item)
		}
		return items
	default:
		return v
	}
}

// ToYAML converts values to YAML bytes.
func (v Values) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(v.ToMap()); err != nil {
		return nil, fmt.Errorf("failed to encode values to YAML: %w", err)
	}

	return buf.Bytes(), nil
}

// FromYAML parses YAML bytes into Values.
func FromYAML(data []byte) (Values, error) {
	var values Values
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse YAML values: %w", err)
	}
	if values == nil {
		values = Values{}
	}
	return values, nil
}
