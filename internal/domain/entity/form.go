package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/emr/console/internal/resource"
)

// Decode converts submitted form values into dst, a pointer to a payload
// struct, by way of its json tags. Empty optional inputs are omitted so the
// payload keeps its zero value.
func Decode(fields []Field, form url.Values, dst any) error {
	obj := make(map[string]any, len(fields))
	problems := map[string]string{}

	for _, f := range fields {
		if f.Kind == KindMultiSelect {
			vals := append(append([]string(nil), form[f.Name]...), form[f.Name+"[]"]...)
			obj[f.Name] = nonEmpty(vals)
			continue
		}
		raw := strings.TrimSpace(form.Get(f.Name))
		switch f.Kind {
		case KindBool:
			obj[f.Name] = raw == "on" || raw == "true" || raw == "1"
		case KindNumber:
			if raw == "" {
				continue
			}
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				problems[f.Name] = f.Label + " must be a number."
				continue
			}
			obj[f.Name] = n
		case KindInteger:
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				problems[f.Name] = f.Label + " must be a whole number."
				continue
			}
			obj[f.Name] = n
		default:
			if raw == "" {
				continue
			}
			obj[f.Name] = raw
		}
	}
	if len(problems) > 0 {
		return &resource.ValidationError{Fields: problems}
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode form: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return resource.NewValidationError(te.Field, "This value has the wrong type.")
		}
		return &resource.ValidationError{Fields: map[string]string{"": "The form could not be read."}}
	}
	return nil
}

// nonEmpty also splits comma-separated entries, so a multi-value field can
// be entered in a single text input.
func nonEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Flatten renders a record as display strings keyed by json path. Nested
// objects produce dotted keys; arrays of scalars are joined with ", ".
func Flatten(rec any) map[string]string {
	out := map[string]string{}
	b, err := json.Marshal(rec)
	if err != nil {
		return out
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return out
	}
	flattenInto(out, "", obj)
	return out
}

func flattenInto(out map[string]string, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flattenInto(out, key, val)
		default:
			out[key] = display(val)
		}
	}
}

func display(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			if m, ok := p.(map[string]any); ok {
				parts = append(parts, displayObject(m))
				continue
			}
			parts = append(parts, display(p))
		}
		return strings.Join(parts, ", ")
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// displayObject prefers a name-like field of an embedded object.
func displayObject(m map[string]any) string {
	for _, k := range []string{"name", "title", "label", "id"} {
		if v, ok := m[k]; ok {
			return display(v)
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return display(m[keys[0]])
}

// FormValues returns the values of rec that prefill the edit form.
func FormValues(rec any, fields []Field) url.Values {
	flat := Flatten(rec)
	vals := url.Values{}
	for _, f := range fields {
		v, ok := flat[f.Name]
		if !ok {
			continue
		}
		switch f.Kind {
		case KindMultiSelect:
			for _, part := range strings.Split(v, ", ") {
				if part != "" {
					vals.Add(f.Name, part)
				}
			}
		case KindBool:
			if v == "Yes" {
				vals.Set(f.Name, "on")
			}
		case KindDate:
			if len(v) > len("2006-01-02") {
				v = v[:len("2006-01-02")]
			}
			vals.Set(f.Name, v)
		default:
			vals.Set(f.Name, v)
		}
	}
	return vals
}
