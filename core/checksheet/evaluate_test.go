package checksheet

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core"
)

func fptr(f float64) *float64 { return &f }

var pressSheet = CheckSheet{
	ID:    "cs1",
	Title: "Press inspection",
	Items: []Item{
		{Key: "guards_ok", Label: "Guards in place", Kind: KindBool, Required: true},
		{Key: "oil_level", Label: "Oil level", Kind: KindNumber, Required: true, Min: fptr(2), Max: fptr(5)},
		{Key: "remarks", Label: "Remarks", Kind: KindText},
	},
	IsActive: true,
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		inputs     map[string]ResponseInput
		wantPassed bool
		wantErrs   []string // failing fields
	}{
		{
			name: "all good",
			inputs: map[string]ResponseInput{
				"guards_ok": {Value: true},
				"oil_level": {Value: 3.5},
				"remarks":   {Value: "clean"},
			},
			wantPassed: true,
		},
		{
			name: "bounds are inclusive",
			inputs: map[string]ResponseInput{
				"guards_ok": {Value: "true"},
				"oil_level": {Value: "5"},
			},
			wantPassed: true,
		},
		{
			name: "number out of range",
			inputs: map[string]ResponseInput{
				"guards_ok": {Value: true},
				"oil_level": {Value: 1.9},
			},
			wantPassed: false,
		},
		{
			name: "bool false fails",
			inputs: map[string]ResponseInput{
				"guards_ok": {Value: false},
				"oil_level": {Value: 4},
			},
			wantPassed: false,
		},
		{
			name: "missing required",
			inputs: map[string]ResponseInput{
				"oil_level": {Value: 4},
				"remarks":   {Value: " "},
			},
			wantErrs: []string{"responses.guards_ok"},
		},
		{
			name: "wrong kinds and unknown item",
			inputs: map[string]ResponseInput{
				"guards_ok": {Value: "maybe"},
				"oil_level": {Value: "lots"},
				"remarks":   {Value: 12.0},
				"color":     {Value: "red"},
			},
			wantErrs: []string{"responses.guards_ok", "responses.oil_level", "responses.remarks", "responses.color"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responses, passed, err := Evaluate(pressSheet, tt.inputs)
			if len(tt.wantErrs) > 0 {
				require.Error(t, err)
				vErr, ok := err.(*core.ValidationError)
				require.True(t, ok)
				fields := make([]string, 0, len(vErr.Fields))
				for _, f := range vErr.Fields {
					fields = append(fields, f.Field)
				}
				assert.ElementsMatch(t, tt.wantErrs, fields)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPassed, passed)
			for key := range tt.inputs {
				if tt.inputs[key].Value == " " {
					continue
				}
				assert.Contains(t, responses, key)
			}
		})
	}
}

func TestPassRate(t *testing.T) {
	assert.Equal(t, 0.0, PassRate(0, 0))
	assert.Equal(t, 66.67, PassRate(2, 3))
	assert.Equal(t, 100.0, PassRate(4, 4))
}

func TestParseYAML(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	t.Run("valid file", func(t *testing.T) {
		src := `
check_sheets:
  - title: Daily press inspection
    frequency: Daily
    items:
      - {key: oil_level, label: Oil level, kind: number, required: true, min: 2, max: 5}
      - {key: guards_ok, label: Guards in place, kind: bool, required: true}
  - title: Weekly walkaround
    frequency: weekly
    items:
      - {key: notes, label: Notes, kind: text}
`
		sheets, err := ParseYAML(strings.NewReader(src), validate)
		require.NoError(t, err)
		require.Len(t, sheets, 2)
		assert.Equal(t, FrequencyDaily, sheets[0].Frequency)
		require.Len(t, sheets[0].Items, 2)
		assert.Equal(t, 5.0, *sheets[0].Items[0].Max)
		assert.Nil(t, sheets[1].Items[0].Min)
	})

	t.Run("unknown field", func(t *testing.T) {
		src := "check_sheets:\n  - title: x\n    colour: red\n"
		_, err := ParseYAML(strings.NewReader(src), validate)
		assert.Error(t, err)
	})

	t.Run("invalid bounds", func(t *testing.T) {
		src := `
check_sheets:
  - title: Broken
    frequency: daily
    items:
      - {key: temp, label: Temperature, kind: number, min: 10, max: 1}
`
		_, err := ParseYAML(strings.NewReader(src), validate)
		assert.Error(t, err)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ParseYAML(strings.NewReader("check_sheets: []\n"), validate)
		assert.Error(t, err)
	})
}
