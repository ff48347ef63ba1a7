package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// identify derives the structural ID of a definition. Nested definitions and graph
// nodes contribute their own IDs; functions contribute the definition's sequence
// number, so two definitions holding closures are never considered equal; other
// reference types contribute their address.
func identify(def *Definition, seq uint64) string {
	h := xxhash.New()
	enc := &hasher{d: h, seq: seq}
	enc.str(def.Type.Name)
	if def.Type.State != nil {
		// Stateful nodes own a state cell; each construction is a distinct instance.
		enc.tag('u')
		enc.uint(seq)
	}
	keys := make([]string, 0, len(def.Properties))
	for k := range def.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		enc.str(k)
		enc.value(def.Properties[k])
	}
	return def.Type.Name + ":" + strconv.FormatUint(h.Sum64(), 36)
}

// HashStrings returns a compact hash of a string sequence.
func HashStrings(parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 36)
}

type hasher struct {
	d   *xxhash.Digest
	seq uint64
}

func (h *hasher) tag(b byte) { _, _ = h.d.Write([]byte{b}) }

func (h *hasher) str(s string) {
	h.tag('s')
	h.uint(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

func (h *hasher) uint(n uint64) {
	_, _ = h.d.WriteString(strconv.FormatUint(n, 10))
	h.tag(';')
}

func (h *hasher) value(v any) {
	switch val := v.(type) {
	case nil:
		h.tag('n')
	case *Definition:
		h.tag('D')
		h.str(val.ID())
	case *GraphNode:
		h.tag('G')
		h.str(val.ID())
	case *Error:
		h.tag('E')
		h.str(val.Code)
		h.str(val.Message)
		h.strings(val.Path)
		h.strings(val.RemotePath)
		h.value(val.Data)
	case error:
		h.tag('e')
		h.str(val.Error())
	case string:
		h.str(val)
	case bool:
		if val {
			h.tag('T')
		} else {
			h.tag('F')
		}
	case int:
		h.number(float64(val))
	case int64:
		h.number(float64(val))
	case int32:
		h.number(float64(val))
	case uint:
		h.number(float64(val))
	case uint64:
		h.number(float64(val))
	case float32:
		h.number(float64(val))
	case float64:
		h.number(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			h.str(val.String())
			return
		}
		h.number(f)
	default:
		h.reflect(reflect.ValueOf(v))
	}
}

// number hashes every numeric kind by value so value(3) equals value(3.0)
// after a JSON round trip.
func (h *hasher) number(f float64) {
	h.tag('#')
	_, _ = h.d.WriteString(strconv.FormatUint(math.Float64bits(f), 16))
}

func (h *hasher) strings(list []string) {
	h.tag('[')
	for _, s := range list {
		h.str(s)
	}
	h.tag(']')
}

func (h *hasher) reflect(rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Func:
		h.tag('f')
		if rv.IsNil() {
			h.tag('n')
			return
		}
		h.uint(h.seq)
	case reflect.Slice, reflect.Array:
		h.tag('[')
		for i := 0; i < rv.Len(); i++ {
			h.value(rv.Index(i).Interface())
		}
		h.tag(']')
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			h.tag('p')
			h.uint(uint64(rv.Pointer()))
			return
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		h.tag('{')
		for _, k := range keys {
			h.str(k.String())
			h.value(rv.MapIndex(k).Interface())
		}
		h.tag('}')
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		h.tag('p')
		h.uint(uint64(rv.Pointer()))
	default:
		h.str(fmt.Sprintf("%#v", rv.Interface()))
	}
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}
