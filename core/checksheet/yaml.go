package checksheet

import (
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// yamlFile is the layout of a check sheet import file:
//
//	check_sheets:
//	  - title: Daily press inspection
//	    frequency: daily
//	    items:
//	      - {key: oil_level, label: Oil level (bar), kind: number, required: true, min: 2, max: 5}
//	      - {key: guards_ok, label: Guards in place, kind: bool, required: true}
type yamlFile struct {
	CheckSheets []NewCheckSheet `yaml:"check_sheets"`
}

// ParseYAML decodes and validates the check sheets of an import file.
func ParseYAML(r io.Reader, validate *validator.Validate) ([]NewCheckSheet, error) {
	var f yamlFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding yaml")
	}
	if len(f.CheckSheets) == 0 {
		return nil, errors.New("no check sheets found")
	}
	for i := range f.CheckSheets {
		if err := f.CheckSheets[i].Validate(validate); err != nil {
			return nil, errors.Wrapf(err, "check sheet #%d (%s)", i+1, f.CheckSheets[i].Title)
		}
	}
	return f.CheckSheets, nil
}
