package checksheet

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/thinkquality/thinkquality/core"
)

// Evaluate checks the responses against the items of cs.
// Every required item must be answered with a value of its kind.
// A bool item passes when true, a number item when within [Min, Max], a text item always.
// The completion passes iff every answered item passes.
func Evaluate(cs CheckSheet, inputs map[string]ResponseInput) (map[string]Response, bool, error) {
	var fldErrs []core.FieldError
	known := make(map[string]bool, len(cs.Items))
	responses := make(map[string]Response, len(inputs))
	passed := true

	for _, it := range cs.Items {
		known[it.Key] = true
		fld := "responses." + it.Key

		in, ok := inputs[it.Key]
		if !ok || isBlank(in.Value) {
			if it.Required {
				fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: "this item is required"})
			}
			continue
		}

		resp := Response{Comment: core.CleanString(in.Comment)}
		switch it.Kind {
		case KindBool:
			b, ok := toBool(in.Value)
			if !ok {
				fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: "must be true or false"})
				continue
			}
			resp.Value, resp.Passed = b, b
		case KindNumber:
			n, ok := toNumber(in.Value)
			if !ok {
				fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: "must be a number"})
				continue
			}
			resp.Value = n
			resp.Passed = (it.Min == nil || n >= *it.Min) && (it.Max == nil || n <= *it.Max)
		case KindText:
			s, ok := in.Value.(string)
			if !ok {
				fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: "must be a text"})
				continue
			}
			resp.Value, resp.Passed = core.CleanString(s), true
		}
		responses[it.Key] = resp
		passed = passed && resp.Passed
	}

	for key := range inputs {
		if !known[key] {
			fldErrs = append(fldErrs, core.FieldError{Field: "responses." + key, Error: "unknown item"})
		}
	}
	if len(fldErrs) > 0 {
		return nil, false, core.NewValidationError(nil, fldErrs...)
	}
	return responses, passed, nil
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func toBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return b, err == nil
	}
	return false, false
}

func toNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case json.Number:
		n, err := val.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return n, err == nil
	}
	return 0, false
}

// PassRate returns passed/total as a percentage rounded to 2 decimals.
func PassRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	r, _ := strconv.ParseFloat(fmt.Sprintf("%.2f", float64(passed)*100/float64(total)), 64)
	return r
}
