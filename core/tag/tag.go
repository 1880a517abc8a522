package tag

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTag = "default"
	maxDepth   = 16
)

var durationType = reflect.TypeFor[time.Duration]()

var (
	ErrTargetMustBePointer = errors.New("tag: target must be a pointer")
	ErrTargetIsNil         = errors.New("tag: target is nil")
	ErrUnsupportedType     = errors.New("tag: unsupported type")
	ErrMaxDepthExceeded    = errors.New("tag: struct nested too deep")
	ErrInvalidTagValue     = errors.New("tag: malformed map entry")
)

// FieldError 指出哪个字段的 default 无法解析，Path 形如 Session.DefaultTTL
type FieldError struct {
	Path  string
	Kind  reflect.Kind
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("tag: default %q for %s (%s): %v", e.Value, e.Path, e.Kind, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ApplyDefaults fills zero-valued fields of the struct pointed to by target from
// their `default` tags. Nested structs and pointers to structs are walked.
//
//	type HTTP struct {
//	    Timeout time.Duration `default:"10s"`
//	    Codes   []int         `default:"401,419"`
//	}
func ApplyDefaults(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer {
		return ErrTargetMustBePointer
	}
	if v.IsNil() {
		return ErrTargetIsNil
	}
	if v.Elem().Kind() != reflect.Struct {
		return ErrUnsupportedType
	}
	return applyStruct(v.Elem(), "", 0)
}

func applyStruct(v reflect.Value, prefix string, depth int) error {
	if depth >= maxDepth {
		return ErrMaxDepthExceeded
	}

	t := v.Type()
	for i := range t.NumField() {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}

		path := field.Name
		if prefix != "" {
			path = prefix + "." + field.Name
		}
		raw, hasTag := field.Tag.Lookup(defaultTag)

		switch {
		case fv.Kind() == reflect.Struct && fv.Type() != reflect.TypeFor[time.Time]():
			if err := applyStruct(fv, path, depth+1); err != nil {
				return err
			}
		case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
			// nil 指针只有在带 default 标签时才初始化
			if fv.IsNil() {
				if !hasTag {
					continue
				}
				fv.Set(reflect.New(fv.Type().Elem()))
			}
			if err := applyStruct(fv.Elem(), path, depth+1); err != nil {
				return err
			}
		case hasTag && fv.IsZero():
			if err := parse(fv, raw); err != nil {
				return &FieldError{Path: path, Kind: fv.Kind(), Value: raw, Err: err}
			}
		}
	}
	return nil
}

func parse(v reflect.Value, raw string) error {
	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(raw))
		}
	}

	raw = strings.TrimSpace(raw)
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Type() == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			v.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Slice:
		if raw == "" {
			v.Set(reflect.MakeSlice(v.Type(), 0, 0))
			return nil
		}
		parts := strings.Split(raw, ",")
		s := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, p := range parts {
			if err := parse(s.Index(i), p); err != nil {
				return err
			}
		}
		v.Set(s)
	case reflect.Map:
		// key:value,key:value
		m := reflect.MakeMap(v.Type())
		for pair := range strings.SplitSeq(raw, ",") {
			k, val, ok := strings.Cut(pair, ":")
			if !ok {
				return ErrInvalidTagValue
			}
			kv := reflect.New(v.Type().Key()).Elem()
			vv := reflect.New(v.Type().Elem()).Elem()
			if err := parse(kv, k); err != nil {
				return err
			}
			if err := parse(vv, val); err != nil {
				return err
			}
			m.SetMapIndex(kv, vv)
		}
		v.Set(m)
	default:
		return ErrUnsupportedType
	}
	return nil
}
