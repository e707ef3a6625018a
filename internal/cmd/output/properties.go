package output

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/utc"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var caser = cases.Title(language.English)

// Properties flattens a struct, or a pointer to one, into property/value
// rows labelled from the json tags. Nested structs are prefixed with their
// own label and slices are listed one item per line.
func Properties(data any) (Data, bool) {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return Data{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return Data{}, false
	}
	d := Data{
		Headers:         []string{"Property", "Value"},
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
	appendRows(&d, "", v)
	return d, true
}

func appendRows(d *Data, prefix string, v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		label, ok := fieldLabel(field)
		if !ok {
			continue
		}
		if prefix != "" {
			label = prefix + " " + label
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct && !isTime(fv) {
			appendRows(d, label, fv)
			continue
		}
		d.Rows = append(d.Rows, []string{label, cell(fv)})
	}
}

func fieldLabel(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name, true
	}
	return caser.String(strings.ReplaceAll(name, "_", " ")), true
}

func isTime(v reflect.Value) bool {
	switch v.Interface().(type) {
	case time.Time, utc.Time:
		return true
	}
	return false
}

func cell(v reflect.Value) string {
	switch x := v.Interface().(type) {
	case utc.Time:
		if x.IsZero() {
			return "-"
		}
		return x.Time.Format(time.RFC3339)
	case time.Time:
		if x.IsZero() {
			return "-"
		}
		return x.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	}
	if v.Kind() == reflect.Slice {
		if v.Len() == 0 {
			return "-"
		}
		items := make([]string, v.Len())
		for i := range items {
			items[i] = fmt.Sprintf("%v", v.Index(i).Interface())
		}
		return strings.Join(items, "\n")
	}
	return fmt.Sprintf("%v", v.Interface())
}
