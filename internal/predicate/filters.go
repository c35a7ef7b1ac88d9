package predicate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/spf13/cast"

	"github.com/looplj/authcore/internal/pkg/xtime"
)

// FieldType is the declared filter type of an entity field.
type FieldType int

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeText
	FieldTypeTextArea
	FieldTypeNumber
	FieldTypeDropdown
	FieldTypeReference
	FieldTypeDate
	FieldTypeDateTime
	FieldTypeBool
)

// String returns string representation of FieldType.
func (t FieldType) String() string {
	switch t {
	case FieldTypeText:
		return "text"
	case FieldTypeTextArea:
		return "textarea"
	case FieldTypeNumber:
		return "number"
	case FieldTypeDropdown:
		return "dropdown"
	case FieldTypeReference:
		return "reference"
	case FieldTypeDate:
		return "date"
	case FieldTypeDateTime:
		return "datetime"
	case FieldTypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// FieldDef declares how one filterable field maps onto a column.
// Date and datetime columns hold unix seconds.
type FieldDef struct {
	Column string
	Type   FieldType
}

// Filter configuration errors. An unrecognized field or type is a programmer
// error surfaced loudly, never silently ignored.
var (
	ErrUnknownField     = errors.New("predicate: filter references unknown field")
	ErrUnknownFieldType = errors.New("predicate: filter field has unknown type")
	ErrBadFilterValue   = errors.New("predicate: filter value cannot be parsed")
)

// dateUpperSuffix marks a filter key as the upper bound of a date range.
const dateUpperSuffix = "_to"

// FieldFilters builds the conjunction of per-field filters over the declared
// fields. Dispatch per declared type: text/textarea match case-insensitive
// substrings, number and bool compare equal after parsing, dropdown/reference
// compare string-equal, date/datetime compare as ranges where a key suffixed
// "_to" is an inclusive upper bound and all others are lower bounds, both at
// calendar-date granularity. Empty filter values are skipped.
func FieldFilters(fields map[string]FieldDef, filters map[string]string) (Predicate, error) {
	ps := make([]Predicate, 0, len(filters))

	for key, value := range filters {
		if strings.TrimSpace(value) == "" {
			continue
		}

		def, upper, err := resolveField(fields, key)
		if err != nil {
			return Predicate{}, err
		}

		p, err := fieldFilter(def, value, upper)
		if err != nil {
			return Predicate{}, err
		}

		ps = append(ps, p)
	}

	return And(ps...), nil
}

func resolveField(fields map[string]FieldDef, key string) (FieldDef, bool, error) {
	if def, ok := fields[key]; ok {
		return def, false, nil
	}

	if base, ok := strings.CutSuffix(key, dateUpperSuffix); ok {
		if def, found := fields[base]; found && (def.Type == FieldTypeDate || def.Type == FieldTypeDateTime) {
			return def, true, nil
		}
	}

	return FieldDef{}, false, fmt.Errorf("%w: %q", ErrUnknownField, key)
}

func fieldFilter(def FieldDef, value string, upper bool) (Predicate, error) {
	switch def.Type {
	case FieldTypeText, FieldTypeTextArea:
		return Raw(sql.ContainsFold(def.Column, value)), nil

	case FieldTypeNumber:
		n, err := cast.ToFloat64E(value)
		if err != nil {
			return Predicate{}, fmt.Errorf("%w: field %q value %q: %v", ErrBadFilterValue, def.Column, value, err)
		}

		return Raw(sql.EQ(def.Column, n)), nil

	case FieldTypeDropdown, FieldTypeReference:
		return Raw(sql.EQ(def.Column, value)), nil

	case FieldTypeBool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return Predicate{}, fmt.Errorf("%w: field %q value %q: %v", ErrBadFilterValue, def.Column, value, err)
		}

		return Raw(sql.EQ(def.Column, b)), nil

	case FieldTypeDate, FieldTypeDateTime:
		day, err := parseDay(value)
		if err != nil {
			return Predicate{}, fmt.Errorf("%w: field %q value %q: %v", ErrBadFilterValue, def.Column, value, err)
		}

		period := xtime.DayPeriod(day)

		if upper {
			// Inclusive upper bound at calendar-date granularity.
			return Raw(sql.LT(def.Column, period.End.Unix())), nil
		}

		return Raw(sql.GTE(def.Column, period.Start.Unix())), nil

	default:
		return Predicate{}, fmt.Errorf("%w: field %q type %s", ErrUnknownFieldType, def.Column, def.Type)
	}
}

// parseDay parses a filter value and truncates it to its calendar date.
func parseDay(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		t, err = cast.ToTimeE(value)
		if err != nil {
			return time.Time{}, err
		}
	}

	return xtime.Day(t), nil
}
