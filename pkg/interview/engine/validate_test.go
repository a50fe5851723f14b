package engine

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"discovery/pkg/interview"
)

func TestValidate(t *testing.T) {
	scale := interview.Question{ID: "s", Type: interview.QuestionScale, Required: true, Options: []string{"1", "2", "3"}}
	choice := interview.Question{ID: "c", Type: interview.QuestionMultipleChoice, Required: true, Options: []string{"A", "B"}}
	multi := interview.Question{ID: "m", Type: interview.QuestionMultipleSelect, Required: true, Options: []string{"x", "y"}}

	tests := []struct {
		name       string
		q          interview.Question
		raw        any
		wantOK     bool
		wantReason string
	}{
		{"required nil", interview.Question{ID: "t", Type: interview.QuestionText, Required: true}, nil, false, "required"},
		{"optional empty", interview.Question{ID: "t", Type: interview.QuestionNumber}, "", true, ""},
		{"text ok", interview.Question{ID: "t", Type: interview.QuestionText}, "hello", true, ""},
		{"text wrong kind", interview.Question{ID: "t", Type: interview.QuestionText}, 12.0, false, "text"},
		{"number float", interview.Question{ID: "n", Type: interview.QuestionNumber}, 4200.5, true, ""},
		{"number string", interview.Question{ID: "n", Type: interview.QuestionNumber}, " 4200 ", true, ""},
		{"number unsigned", interview.Question{ID: "n", Type: interview.QuestionNumber}, uint(3), true, ""},
		{"number json", interview.Question{ID: "n", Type: interview.QuestionNumber}, json.Number("12"), true, ""},
		{"number junk", interview.Question{ID: "n", Type: interview.QuestionNumber}, "lots", false, "number"},
		{"number infinite", interview.Question{ID: "n", Type: interview.QuestionNumber}, "Inf", false, "number"},
		{"yes_no bool", interview.Question{ID: "y", Type: interview.QuestionYesNo}, false, true, ""},
		{"yes_no string", interview.Question{ID: "y", Type: interview.QuestionYesNo}, "true", true, ""},
		{"yes_no other", interview.Question{ID: "y", Type: interview.QuestionYesNo}, "maybe", false, "yes or no"},
		{"scale string member", scale, "2", true, ""},
		{"scale number member", scale, 3.0, true, ""},
		{"scale small int", scale, int8(2), true, ""},
		{"scale out of range", scale, "7", false, "must be one of"},
		{"scale not numeric", scale, "high", false, "number"},
		{"choice member", choice, "B", true, ""},
		{"choice case differs", choice, "b", false, "must be one of"},
		{"multi ok", multi, []any{"x", "y"}, true, ""},
		{"multi string slice", multi, []string{"y"}, true, ""},
		{"multi offender", multi, []any{"x", "z"}, false, "z"},
		{"multi not list", multi, "x", false, "list"},
		{"multi required empty", multi, []any{}, false, "required"},
		{"date iso", interview.Question{ID: "d", Type: interview.QuestionDate}, "2026-03-15", true, ""},
		{"date rfc3339", interview.Question{ID: "d", Type: interview.QuestionDate}, "2026-03-15T10:00:00Z", true, ""},
		{"date bad", interview.Question{ID: "d", Type: interview.QuestionDate}, "2026-13-45", false, "valid date"},
		{"unknown type", interview.Question{ID: "u", Type: "essay"}, "x", false, "unknown question type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := Validate(&tt.q, tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantReason == "" {
				assert.Empty(t, reason)
			} else {
				assert.Contains(t, reason, tt.wantReason)
			}
		})
	}
}

func TestToNumber(t *testing.T) {
	n, ok := ToNumber("12.5")
	assert.True(t, ok)
	assert.InDelta(t, 12.5, n, 1e-9)

	type score float32
	for _, raw := range []any{uint(3), uint64(3), int8(3), int16(3), int32(3), float32(3), score(3), json.Number("3")} {
		n, ok := ToNumber(raw)
		assert.True(t, ok, "%T", raw)
		assert.InDelta(t, 3, n, 1e-9, "%T", raw)
	}

	for _, raw := range []any{true, nil, json.Number("three"), []int{3}, math.NaN()} {
		_, ok := ToNumber(raw)
		assert.False(t, ok, "%T", raw)
	}
}
