package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"discovery/pkg/interview"
)

// dateLayouts are the accepted calendar formats for date questions.
//
//nolint:gochecknoglobals // fixed parse table
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// Validate checks raw against the question's type rules. The reason is empty when ok.
func Validate(q *interview.Question, raw any) (ok bool, reason string) {
	if IsEmpty(raw) {
		if q.Required {
			return false, fmt.Sprintf("%s is required", q.ID)
		}
		return true, ""
	}

	switch q.Type {
	case interview.QuestionText:
		if _, isString := raw.(string); !isString {
			return false, "response must be text"
		}
		return true, ""

	case interview.QuestionNumber:
		if _, isNum := ToNumber(raw); !isNum {
			return false, "response must be a number"
		}
		return true, ""

	case interview.QuestionYesNo:
		if _, isBool := ToYesNo(raw); !isBool {
			return false, "response must be yes or no"
		}
		return true, ""

	case interview.QuestionScale:
		n, isNum := ToNumber(raw)
		if !isNum {
			return false, "response must be a number on the scale"
		}
		if len(q.Options) > 0 && !contains(q.Options, scaleString(raw, n)) {
			return false, fmt.Sprintf("response must be one of: %s", strings.Join(q.Options, ", "))
		}
		return true, ""

	case interview.QuestionMultipleChoice:
		if len(q.Options) == 0 {
			return true, ""
		}
		s, isString := raw.(string)
		if !isString || !contains(q.Options, s) {
			return false, fmt.Sprintf("response must be one of: %s", strings.Join(q.Options, ", "))
		}
		return true, ""

	case interview.QuestionMultipleSelect:
		items, isList := ToStringList(raw)
		if !isList {
			return false, "response must be a list of selections"
		}
		if len(q.Options) == 0 {
			return true, ""
		}
		var invalid []string
		for _, item := range items {
			if !contains(q.Options, item) {
				invalid = append(invalid, item)
			}
		}
		if len(invalid) > 0 {
			return false, fmt.Sprintf("invalid selections: %s (must be one of: %s)",
				strings.Join(invalid, ", "), strings.Join(q.Options, ", "))
		}
		return true, ""

	case interview.QuestionDate:
		if _, isDate := ToDate(raw); !isDate {
			return false, "response must be a valid date"
		}
		return true, ""

	default:
		return false, "unknown question type"
	}
}

// IsEmpty reports whether raw counts as "no answer".
func IsEmpty(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// ToNumber coerces numbers of any numeric kind, json.Number and numeric strings to a
// finite float64.
func ToNumber(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		rv := reflect.ValueOf(raw)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			f = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		default:
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToYesNo maps the accepted yes/no literals to a bool.
func ToYesNo(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true":
			return true, true
		case "no", "false":
			return false, true
		}
	}
	return false, false
}

// ToStringList accepts []string or a []any of strings.
func ToStringList(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				s = fmt.Sprint(item)
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// ToDate parses a date answer.
func ToDate(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func scaleString(raw any, n float64) string {
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
