package document

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spence/internal/model"
)

type sample struct {
	When     time.Time          `json:"when"`
	Ptr      *float64           `json:"ptr"`
	Values   map[string]float64 `json:"values"`
	Name     string             `json:"name"`
	Skipped  string             `json:"-"`
	Optional string             `json:"optional,omitempty"`
	Count    uint8              `json:"count"`
	hidden   int
}

func TestSanitize_Primitives(t *testing.T) {
	tests := []struct {
		input any
		want  any
		name  string
	}{
		{name: "nil", input: nil, want: ""},
		{name: "float32", input: float32(1.5), want: float64(1.5)},
		{name: "NaN", input: math.NaN(), want: float64(0)},
		{name: "infinity", input: math.Inf(1), want: float64(0)},
		{name: "int", input: 7, want: int64(7)},
		{name: "uint16", input: uint16(9), want: int64(9)},
		{name: "bool", input: true, want: true},
		{name: "string", input: "coffee", want: "coffee"},
		{name: "period key type", input: model.PeriodEvening, want: "evening"},
		{name: "midnight time", input: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), want: "2026-03-01"},
		{name: "timestamp", input: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), want: "2026-03-01T09:30:00Z"},
		{name: "complex", input: complex(1, 2), want: "(1+2i)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestSanitize_Collections(t *testing.T) {
	input := map[any]any{
		"list":  []int{1, 2},
		"tuple": [2]float32{0.5, 1},
		"none":  nil,
		3:       "three",
		"nested": map[string]any{
			"drop": (*int)(nil),
			"keep": []any{nil, 1.0},
		},
	}

	got := Sanitize(input)
	want := map[string]any{
		"list":  []any{int64(1), int64(2)},
		"tuple": []any{float64(0.5), float64(1)},
		"3":     "three",
		"nested": map[string]any{
			"keep": []any{"", float64(1)},
		},
	}
	assert.Equal(t, want, got)
}

func TestSanitize_Struct(t *testing.T) {
	s := sample{
		When:    time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Name:    "groceries",
		Skipped: "secret",
		Count:   4,
		Values:  map[string]float64{"a": math.NaN()},
		hidden:  1,
	}

	got := Sanitize(&s)
	want := map[string]any{
		"when":   "2026-01-02",
		"name":   "groceries",
		"count":  int64(4),
		"values": map[string]any{"a": float64(0)},
	}
	assert.Equal(t, want, got)
}

func TestSanitize_Idempotent(t *testing.T) {
	value := 3.25
	inputs := []any{
		nil,
		math.NaN(),
		[]any{nil, 1, 2.5, "x", []int{1}, map[string]any{"k": nil}},
		map[string]any{
			"a": map[int][]float64{1: {math.Inf(-1), 2}},
			"b": [3]bool{true, false, true},
			"c": &value,
		},
		sample{Name: "n", Ptr: &value, When: time.Date(2026, 5, 5, 13, 0, 0, 0, time.UTC)},
		model.Forecast{
			UserID: "user-1",
			DailyPredictions: []model.DailyPrediction{
				{Date: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), PredictedAmount: 12.5},
			},
		},
	}

	for _, input := range inputs {
		once := Sanitize(input)
		twice := Sanitize(once)
		assert.Equal(t, once, twice)
	}
}

func TestToDocument(t *testing.T) {
	doc := ToDocument(model.ModelOrder{P: 2, D: 1, Q: 1})
	assert.Equal(t, Document{"p": int64(2), "d": int64(1), "q": int64(1)}, doc)

	require.NotNil(t, ToDocument("not a map"))
	assert.Empty(t, ToDocument("not a map"))
}
