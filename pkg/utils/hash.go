package utils

import (
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// StructuralHash 计算任意值的结构化哈希：map 按 key 排序，数值统一为 float64 文本，
// 因此 YAML 解析出的 int(3) 与 JSON 解析出的 float64(3) 得到同一个哈希。
// 用于缓存 key，不依赖任何序列化格式。
func StructuralHash(parts ...any) uint64 {
	d := xxhash.New()
	writeParts(d, parts)
	return d.Sum64()
}

// StructuralKey 返回与 StructuralHash 相同规则的规范编码本身。
// 结构相等当且仅当编码相等，适合做不允许碰撞的 map key。
func StructuralKey(parts ...any) string {
	var b strings.Builder
	writeParts(&b, parts)
	return b.String()
}

func writeParts(d io.StringWriter, parts []any) {
	for _, p := range parts {
		writeValue(d, reflect.ValueOf(p))
		_, _ = d.WriteString("\x1e")
	}
}

func writeValue(d io.StringWriter, v reflect.Value) {
	if !v.IsValid() {
		_, _ = d.WriteString("n;")
		return
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			_, _ = d.WriteString("n;")
			return
		}
		writeValue(d, v.Elem())
	case reflect.String:
		_, _ = d.WriteString("s")
		_, _ = d.WriteString(strconv.Itoa(v.Len()))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(v.String())
	case reflect.Bool:
		if v.Bool() {
			_, _ = d.WriteString("t;")
		} else {
			_, _ = d.WriteString("f;")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeNumber(d, float64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		writeNumber(d, float64(v.Uint()))
	case reflect.Float32, reflect.Float64:
		writeNumber(d, v.Float())
	case reflect.Slice, reflect.Array:
		_, _ = d.WriteString("[")
		for i := 0; i < v.Len(); i++ {
			writeValue(d, v.Index(i))
			_, _ = d.WriteString(",")
		}
		_, _ = d.WriteString("]")
	case reflect.Map:
		keys := v.MapKeys()
		sorted := make([]string, len(keys))
		byName := make(map[string]reflect.Value, len(keys))
		for i, k := range keys {
			name := mapKey(k)
			sorted[i] = name
			byName[name] = k
		}
		sort.Strings(sorted)
		_, _ = d.WriteString("{")
		for _, name := range sorted {
			_, _ = d.WriteString(name)
			_, _ = d.WriteString("=")
			writeValue(d, v.MapIndex(byName[name]))
			_, _ = d.WriteString(",")
		}
		_, _ = d.WriteString("}")
	case reflect.Struct:
		t := v.Type()
		_, _ = d.WriteString("S{")
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			_, _ = d.WriteString(t.Field(i).Name)
			_, _ = d.WriteString("=")
			writeValue(d, v.Field(i))
			_, _ = d.WriteString(",")
		}
		_, _ = d.WriteString("}")
	default:
		_, _ = d.WriteString("?")
		_, _ = d.WriteString(v.Type().String())
		_, _ = d.WriteString(";")
	}
}

func writeNumber(d io.StringWriter, f float64) {
	if f == 0 {
		f = math.Abs(f) // -0 与 0 视为相同
	}
	_, _ = d.WriteString("d")
	_, _ = d.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	_, _ = d.WriteString(";")
}

func mapKey(k reflect.Value) string {
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(k.Float(), 'g', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(k.Bool())
	default:
		return k.Type().String()
	}
}
