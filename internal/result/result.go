// Package result assembles the persisted form of an analysis run.
package result

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

// Encode converts a result into its storage record. Sections left nil stay nil so the store
// writes NULL for stages that never ran.
func Encode(r *models.AnalysisResult) *models.AnalysisRecord {
	rec := &models.AnalysisRecord{
		ID:          r.ID,
		UploadID:    r.UploadID,
		UserID:      r.UserID,
		ProcessedAt: r.ProcessedAt,
	}
	if r.SummaryStatistics != nil {
		rec.SummaryStatistics = Normalize(r.SummaryStatistics)
	}
	if r.ExtractedKeywords != nil {
		rec.ExtractedKeywords = Normalize(r.ExtractedKeywords)
	}
	if r.SentimentScores != nil {
		rec.SentimentScores = Normalize(r.SentimentScores)
	}
	if r.TimeSeriesAnalysis != nil {
		rec.TimeSeriesAnalysis = Normalize(r.TimeSeriesAnalysis)
	}
	if r.CorrelationAnalysis != nil {
		rec.CorrelationAnalysis = Normalize(r.CorrelationAnalysis)
	}
	if len(r.ProcessingErrors) > 0 {
		rec.ProcessingErrors = Normalize(r.ProcessingErrors)
	}
	return rec
}

var (
	timeType          = reflect.TypeOf(time.Time{})
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Normalize rewrites v into a tree whose leaves are only string, int64, float64, bool or nil,
// nested in map[string]any and []any. Structs follow their json tags, times become RFC 3339
// strings, and NaN or infinite floats become nil.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	return normalize(reflect.ValueOf(v))
}

func normalize(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return normalize(v.Elem())
	}

	if v.Type() == timeType {
		return v.Interface().(time.Time).UTC().Format(time.RFC3339)
	}
	if v.Kind() != reflect.String && v.Type().Implements(textMarshalerType) {
		b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil
		}
		return string(b)
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return float64(u)
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case reflect.String:
		return v.String()
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = normalize(iter.Value())
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = normalize(v.Index(i))
		}
		return out
	case reflect.Struct:
		return normalizeStruct(v)
	}
	return fmt.Sprint(v.Interface())
}

func normalizeStruct(v reflect.Value) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitEmpty := jsonName(f)
		if name == "-" {
			continue
		}
		fv := v.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		if omitEmpty && (fv.Kind() == reflect.Slice || fv.Kind() == reflect.Map) && fv.Len() == 0 {
			continue
		}
		out[name] = normalize(fv)
	}
	return out
}

func jsonName(f reflect.StructField) (string, bool) {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return f.Name, false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "-" && opts == "" {
		return "-", false
	}
	if name == "" {
		name = f.Name
	}
	omit := false
	for _, o := range strings.Split(opts, ",") {
		if o == "omitempty" {
			omit = true
		}
	}
	return name, omit
}

func mapKey(k reflect.Value) string {
	switch {
	case k.Kind() == reflect.String:
		return k.String()
	case k.Type() == timeType:
		return k.Interface().(time.Time).UTC().Format(time.RFC3339)
	case k.Type().Implements(textMarshalerType):
		if b, err := k.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(k.Interface())
}
