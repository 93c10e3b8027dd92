package postgres

import (
	"reflect"
	"sync"
)

// structMeta caches the db-tagged fields of a struct type.
type structMeta struct {
	columns  []string
	fields   []int // indices of tagged fields, parallel to the own columns
	own      int   // number of own (non-embedded) columns at the head of columns
	embedded []int
}

var metaCache sync.Map // reflect.Type -> *structMeta

func metaFor(t reflect.Type) *structMeta {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := metaCache.Load(t); ok {
		return cached.(*structMeta)
	}

	meta := &structMeta{}
	if t.Kind() == reflect.Struct {
		for i := range t.NumField() {
			f := t.Field(i)
			if f.Anonymous {
				meta.embedded = append(meta.embedded, i)
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			meta.fields = append(meta.fields, i)
			meta.columns = append(meta.columns, tag)
		}
		meta.own = len(meta.columns)
		for _, i := range meta.embedded {
			meta.columns = append(meta.columns, metaFor(t.Field(i).Type).columns...)
		}
	}

	metaCache.Store(t, meta)
	return meta
}

// DBColumns lists the db tag names of T, embedded structs included.
func DBColumns[T any]() []string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		t = reflect.TypeOf((*T)(nil)).Elem()
	}
	cols := metaFor(t).columns
	return append([]string(nil), cols...)
}

// StructToMap returns column → value for every db-tagged field of v.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metaFor(rv.Type())
	out := make(map[string]any, len(meta.columns))
	collect(rv, meta, out)
	return out
}

func collect(rv reflect.Value, meta *structMeta, out map[string]any) {
	for k, idx := range meta.fields {
		out[meta.columns[k]] = rv.Field(idx).Interface()
	}
	for _, idx := range meta.embedded {
		fv := rv.Field(idx)
		for fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				break
			}
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Struct {
			collect(fv, metaFor(fv.Type()), out)
		}
	}
}
