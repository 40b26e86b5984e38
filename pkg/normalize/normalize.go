// Package normalize coerces loosely typed client input into the canonical
// shapes of the tally document. Every function is pure and lenient: bad
// values are replaced by safe defaults instead of failing.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/aretw0/tally/pkg/core"
)

// Limits applied to account fields.
const (
	MaxNameLen     = 100
	MaxCategoryLen = 100
	MaxTypeLen     = 20
	MaxLabelLen    = 50
	MaxPayment     = 1e9
)

// Account field defaults.
const (
	DefaultType        = "expense"
	DefaultHasReminder = "No"
	DefaultStatus      = "Active"
	DefaultPriority    = "Important"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Text coerces value to a string, removes every tag-like `<...>` span, trims
// the result and truncates it to maxLen runes.
func Text(value any, maxLen int) string {
	s := strings.TrimSpace(toString(value))
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if maxLen >= 0 && utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen])
		s = strings.TrimSpace(s)
	}
	return s
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	case map[string]any, []any:
		// Objects have no useful text form.
		return ""
	}
	return fmt.Sprint(value)
}

// Number parses value as a decimal number and clamps it to [min, max].
// Anything that is not numeric yields min.
func Number(value any, min, max float64) float64 {
	d, ok := toDecimal(value)
	if !ok {
		return min
	}
	lo, hi := decimal.NewFromFloat(min), decimal.NewFromFloat(max)
	if d.LessThan(lo) {
		return min
	}
	if d.GreaterThan(hi) {
		return max
	}
	return d.InexactFloat64()
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil, bool:
		return decimal.Zero, false
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return toDecimal(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case decimal.Decimal:
		return v, true
	}
	s := strings.TrimSpace(toString(value))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Account turns raw into a canonical account. It reports false when raw is
// not an object.
func Account(raw any) (core.Account, bool) {
	obj, ok := asObject(raw)
	if !ok {
		return core.Account{}, false
	}

	acc := core.Account{
		ID:             int(Number(obj["id"], 0, math.MaxInt32)),
		Name:           Text(obj["name"], MaxNameLen),
		Category:       Text(obj["category"], MaxCategoryLen),
		Type:           orDefault(Text(obj["type"], MaxTypeLen), DefaultType),
		MonthlyPayment: Number(obj["monthlyPayment"], 0, MaxPayment),
		AnnualPayment:  Number(obj["annualPayment"], 0, MaxPayment),
		HasReminder:    orDefault(Text(obj["hasReminder"], MaxLabelLen), DefaultHasReminder),
		Status:         orDefault(Text(obj["status"], MaxLabelLen), DefaultStatus),
		Priority:       orDefault(Text(obj["priority"], MaxLabelLen), DefaultPriority),
	}
	if owner := Text(obj["ownerId"], MaxNameLen); owner != "" {
		acc.OwnerID = &owner
	}
	return acc, true
}

// Accounts normalizes a list of accounts, dropping entries that are not
// objects, and assigns ids to entries that have none. It fails only when raw
// is not a sequence at all.
func Accounts(raw any) ([]core.Account, error) {
	var out []core.Account
	switch v := raw.(type) {
	case []core.Account:
		out = make([]core.Account, 0, len(v))
		for _, acc := range v {
			// Typed accounts still go through the field rules.
			n, _ := Account(accountObject(acc))
			out = append(out, n)
		}
	case []any:
		out = make([]core.Account, 0, len(v))
		for _, item := range v {
			if acc, ok := Account(item); ok {
				out = append(out, acc)
			}
		}
	default:
		return nil, fmt.Errorf("%w: accounts must be a list, got %T", core.ErrValidation, raw)
	}
	AssignIDs(out)
	return out, nil
}

// AssignIDs gives every account without an id (id 0) the next id after the
// highest one in the list, in list order.
func AssignIDs(accounts []core.Account) {
	next := 0
	for _, acc := range accounts {
		if acc.ID > next {
			next = acc.ID
		}
	}
	for i := range accounts {
		if accounts[i].ID == 0 {
			next++
			accounts[i].ID = next
		}
	}
}

// Document applies container defaults to every store. It never fails: a
// value that is not an object yields an empty document. A typed
// core.Document is normalized like its JSON form.
func Document(raw any) core.Document {
	doc := core.NewDocument()
	switch v := raw.(type) {
	case *core.Document:
		if v == nil {
			return doc
		}
		return Document(*v)
	case core.Document:
		generic, err := Generic(v)
		if err != nil {
			return doc
		}
		raw = generic
	}
	obj, ok := asObject(raw)
	if !ok {
		return doc
	}

	if accounts, err := Accounts(obj["accounts"]); err == nil {
		doc.Accounts = accounts
	}
	if m, ok := asObject(obj["profile"]); ok {
		doc.Profile = core.Mapping(m)
	}
	if m, ok := asObject(obj["timeline"]); ok {
		doc.Timeline = core.Mapping(m)
	}
	if l, ok := obj["goals"].([]any); ok {
		doc.Goals = l
	}
	if m, ok := asObject(obj["settings"]); ok {
		doc.Settings = core.Mapping(m)
	}
	return doc
}

// Generic converts typed Go values into the generic JSON shape
// (map[string]any, []any, float64, ...). Values already generic are returned
// as is.
func Generic(value any) (any, error) {
	switch value.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return value, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return out, nil
}

func asObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, v != nil
	case core.Mapping:
		return map[string]any(v), v != nil
	}
	return nil, false
}

func accountObject(acc core.Account) map[string]any {
	obj := map[string]any{
		"id":             acc.ID,
		"name":           acc.Name,
		"category":       acc.Category,
		"type":           acc.Type,
		"monthlyPayment": acc.MonthlyPayment,
		"annualPayment":  acc.AnnualPayment,
		"hasReminder":    acc.HasReminder,
		"status":         acc.Status,
		"priority":       acc.Priority,
	}
	if acc.OwnerID != nil {
		obj["ownerId"] = *acc.OwnerID
	}
	return obj
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
