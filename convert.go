package modelq

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/modelkit/modelq/schema"
)

// Convert maps a raw storage row to its display shape: storage names are
// replaced by property aliases and scalar values are coerced to the
// field's declared type.
func (m *Model) Convert(raw map[string]interface{}) map[string]interface{} {
	if raw == nil {
		return nil
	}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		f := m.def.LookUpField(k)
		if f == nil {
			out[k] = v
			continue
		}
		out[f.PropertyName()] = coerce(f, v)
	}
	return out
}

// Cast maps a display-shaped object back to its storage shape: property
// aliases revert to storage names and nested association objects reduce
// to their key scalar, so Cast(Convert(row)) restores the original
// foreign-key values.
func (m *Model) Cast(obj map[string]interface{}) map[string]interface{} {
	if obj == nil {
		return nil
	}
	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		f := m.def.LookUpField(k)
		if f == nil {
			out[k] = v
			continue
		}
		out[f.Name] = m.castValue(f, v)
	}
	return out
}

func (m *Model) castValue(f *schema.Field, v interface{}) interface{} {
	nested, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	// reduce the association object to its key
	if mapping, err := m.def.InferMapping(f); err == nil {
		if key, ok := nested[mapping.ParentField]; ok {
			return key
		}
	}
	if !f.IsPrimitive() {
		if target, err := m.db.registry.Get(f.Type); err == nil {
			if pk, err := target.PrimaryField(); err == nil {
				if key, ok := nested[pk.Name]; ok {
					return key
				}
			}
		}
	}
	return v
}

// coerce converts a scalar to the Go type matching the field's declared
// type. Unconvertible values pass through unchanged.
func coerce(f *schema.Field, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch f.Type {
	case schema.TypeInteger, schema.TypeCounter:
		switch n := v.(type) {
		case int64:
			return n
		case int:
			return int64(n)
		case float64:
			return int64(n)
		case string:
			if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
				return parsed
			}
		}
	case schema.TypeNumber:
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		case int:
			return float64(n)
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				return parsed
			}
		}
	case schema.TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b
		case int64:
			return b != 0
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	case schema.TypeDate, schema.TypeDateTime:
		switch t := v.(type) {
		case time.Time:
			return t
		case string:
			if parsed, err := now.Parse(t); err == nil {
				return parsed
			}
		}
	}
	return v
}

// scanRow copies a converted row into dest, a pointer to a struct. Fields
// match by `modelq` tag first, then by name with the first letter
// lowered.
func scanRow(row map[string]interface{}, dest interface{}) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: scan destination must be a non-nil struct pointer, got %T", ErrInvalidQuery, dest)
	}
	return scanStruct(row, rv.Elem())
}

// scanRows copies converted rows into dest, a pointer to a slice of
// structs.
func scanRows(rows []map[string]interface{}, dest interface{}) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("%w: scan destination must be a non-nil slice pointer, got %T", ErrInvalidQuery, dest)
	}
	slice := rv.Elem()
	elemType := slice.Type().Elem()
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("%w: scan destination elements must be structs, got %s", ErrInvalidQuery, elemType)
	}

	out := reflect.MakeSlice(slice.Type(), 0, len(rows))
	for _, row := range rows {
		elem := reflect.New(elemType).Elem()
		if err := scanStruct(row, elem); err != nil {
			return err
		}
		out = reflect.Append(out, elem)
	}
	slice.Set(out)
	return nil
}

func scanStruct(row map[string]interface{}, elem reflect.Value) error {
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		name := sf.Tag.Get("modelq")
		if name == "-" {
			continue
		}
		if name == "" {
			name = lowerFirst(sf.Name)
		}
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		if err := assign(elem.Field(i), v); err != nil {
			return fmt.Errorf("field %s: %w", sf.Name, err)
		}
	}
	return nil
}

func assign(field reflect.Value, v interface{}) error {
	value := reflect.ValueOf(v)
	if value.Type().AssignableTo(field.Type()) {
		field.Set(value)
		return nil
	}
	if value.Type().ConvertibleTo(field.Type()) {
		field.Set(value.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", v, field.Type())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
