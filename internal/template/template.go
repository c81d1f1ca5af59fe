// Package template parses and represents the declarative schema a dataset is
// validated against, including self-consistency checks and discovery of
// template files by id and version.
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// DType is the logical column type a template may declare.
type DType string

const (
	DTypeInt64     DType = "int64"
	DTypeFloat64   DType = "float64"
	DTypeString    DType = "string"
	DTypeBool      DType = "bool"
	DTypeDate      DType = "date"
	DTypeTimestamp DType = "timestamp"
	DTypeGeometry  DType = "geometry"
)

// Numeric reports whether range constraints are meaningful for the dtype.
func (d DType) Numeric() bool {
	return d == DTypeInt64 || d == DTypeFloat64
}

// Range bounds a numeric column inclusively. Either side may be open.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Column declares expectations for a single dataset column.
type Column struct {
	Name     string `json:"name" validate:"required"`
	DType    DType  `json:"dtype" validate:"required,oneof=int64 float64 string bool date timestamp geometry"`
	Required bool   `json:"required,omitempty"`
	Unique   bool   `json:"unique,omitempty"`
	Enum     []any  `json:"enum,omitempty"`
	Range    *Range `json:"range,omitempty"`

	enumSet map[string]struct{}
}

// EnumContains reports membership of a canonicalized cell value in the
// declared enum. Always true when no enum is declared.
func (c *Column) EnumContains(canonical string) bool {
	if c.enumSet == nil {
		return true
	}
	_, ok := c.enumSet[canonical]
	return ok
}

// Template is the root declarative schema. Loaded once per run, read-only
// thereafter.
type Template struct {
	TemplateID        string   `json:"template_id" validate:"required"`
	Version           string   `json:"version" validate:"required,semver"`
	Label             string   `json:"label,omitempty"`
	AllowExtraColumns *bool    `json:"allow_extra_columns,omitempty"`
	NullEquivalents   []string `json:"null_equivalents,omitempty"`
	Columns           []Column `json:"columns" validate:"required,min=1,dive"`

	byName map[string]*Column
}

var structValidate = validator.New(validator.WithRequiredStructEnabled())

// Load reads, schema-checks, and consistency-checks a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "cannot read template file", Cause: err}
	}
	return Parse(data, path)
}

// Parse decodes template JSON and runs all self-validation layers. The path
// argument is used only for error reporting.
func Parse(data []byte, path string) (*Template, error) {
	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, &LoadError{Path: path, Message: "invalid template JSON", Cause: err}
	}

	if err := validateAgainstSchema(data); err != nil {
		return nil, &LoadError{Path: path, Message: "template does not match companion schema", Cause: err}
	}

	if err := structValidate.Struct(&tpl); err != nil {
		return nil, &LoadError{Path: path, Message: "template field validation failed", Cause: err}
	}

	if errs := tpl.ValidateSelf(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, &LoadError{Path: path, Message: "inconsistent template: " + strings.Join(msgs, "; ")}
	}

	tpl.compile()
	return &tpl, nil
}

// ValidateSelf returns every structural inconsistency found in the template.
// An empty slice means the template is usable.
func (t *Template) ValidateSelf() []error {
	var errs []error
	if len(t.Columns) == 0 {
		errs = append(errs, fmt.Errorf("template declares no columns"))
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for i := range t.Columns {
		c := &t.Columns[i]
		if _, dup := seen[c.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate column name %q", c.Name))
		}
		seen[c.Name] = struct{}{}

		if c.Range != nil {
			if !c.DType.Numeric() {
				errs = append(errs, fmt.Errorf("column %q: range declared on non-numeric dtype %s", c.Name, c.DType))
			} else if c.Range.Min != nil && c.Range.Max != nil && *c.Range.Min > *c.Range.Max {
				errs = append(errs, fmt.Errorf("column %q: range min %v above max %v", c.Name, *c.Range.Min, *c.Range.Max))
			}
		}
		if c.Enum != nil && len(c.Enum) == 0 {
			errs = append(errs, fmt.Errorf("column %q: enum declared but empty", c.Name))
		}
		if c.DType == DTypeGeometry && (c.Unique || c.Enum != nil) {
			errs = append(errs, fmt.Errorf("column %q: unique/enum constraints not supported for geometry", c.Name))
		}
	}
	return errs
}

// Column returns the declaration for a column name, or nil.
func (t *Template) Column(name string) *Column {
	return t.byName[name]
}

// RequiredColumns returns the names of all required columns in declaration
// order.
func (t *Template) RequiredColumns() []string {
	var out []string
	for i := range t.Columns {
		if t.Columns[i].Required {
			out = append(out, t.Columns[i].Name)
		}
	}
	return out
}

// ExtraColumnsAllowed reports whether undeclared physical columns are
// tolerated silently. Defaults to true when the template is silent.
func (t *Template) ExtraColumnsAllowed() bool {
	return t.AllowExtraColumns == nil || *t.AllowExtraColumns
}

// IsNullEquivalent reports whether a raw cell value should be treated as null
// per the template's null_equivalents list.
func (t *Template) IsNullEquivalent(raw string) bool {
	for _, v := range t.NullEquivalents {
		if raw == v {
			return true
		}
	}
	return false
}

func (t *Template) compile() {
	t.byName = make(map[string]*Column, len(t.Columns))
	for i := range t.Columns {
		c := &t.Columns[i]
		t.byName[c.Name] = c
		if len(c.Enum) > 0 {
			c.enumSet = make(map[string]struct{}, len(c.Enum))
			for _, v := range c.Enum {
				c.enumSet[canonicalEnumValue(c.DType, v)] = struct{}{}
			}
		}
	}
}

// canonicalEnumValue normalizes a JSON enum member so that cell values can be
// compared after dtype coercion. JSON numbers decode as float64.
func canonicalEnumValue(d DType, v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if d == DTypeInt64 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// CanonicalValue normalizes a raw cell value for enum membership and
// uniqueness tracking, so "07" and "7" collide for int64 columns.
func (c *Column) CanonicalValue(raw string) string {
	switch c.DType {
	case DTypeInt64:
		if n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			return strconv.FormatInt(n, 10)
		}
	case DTypeFloat64:
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	case DTypeBool:
		if b, err := parseBool(raw); err == nil {
			return strconv.FormatBool(b)
		}
	}
	return raw
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "1":
		return true, nil
	case "false", "f", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", raw)
}

func validateAgainstSchema(doc []byte) error {
	return ValidateDocument(doc, companionSchema)
}

// ValidateDocument checks a template document against a JSON-Schema. Used
// with an alternate schema when callers override the embedded companion one.
func ValidateDocument(doc, schema []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation could not run: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
