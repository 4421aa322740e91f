// Package query validates the client-controlled pieces of list queries
// (ordering and paging) before they reach SQL. Values are always bound as
// parameters; only identifiers from an allowlist are ever interpolated.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// identifierRegex validates SQL identifiers (column names).
// Must start with a letter or underscore, followed by alphanumeric or underscore.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateIdentifier ensures a column name is syntactically safe.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("identifier too long (max 64 chars): %q", name)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	return nil
}

// Order is a validated ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// SQL renders the term for interpolation into a query.
func (o Order) SQL() string {
	if o.Desc {
		return o.Column + " DESC"
	}
	return o.Column + " ASC"
}

// ParseOrder parses "column", "column asc", "column desc" or "-column" and
// checks the column against allowed. An empty input yields def.
func ParseOrder(input string, allowed []string, def Order) (Order, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}

	var o Order
	if strings.HasPrefix(input, "-") {
		o.Column = strings.TrimSpace(input[1:])
		o.Desc = true
	} else {
		fields := strings.Fields(input)
		if len(fields) > 2 {
			return Order{}, fmt.Errorf("invalid order %q: expected \"column [asc|desc]\"", input)
		}
		o.Column = fields[0]
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
			case "desc":
				o.Desc = true
			default:
				return Order{}, fmt.Errorf("invalid order direction %q", fields[1])
			}
		}
	}

	if err := ValidateIdentifier(o.Column); err != nil {
		return Order{}, err
	}
	o.Column = strings.ToLower(o.Column)
	for _, a := range allowed {
		if a == o.Column {
			return o, nil
		}
	}
	return Order{}, fmt.Errorf("cannot order by %q (allowed: %s)", o.Column, strings.Join(allowed, ", "))
}

// ParsePage reads 1-based page and limit strings, falling back to defaults
// for missing or malformed values and clamping limit to [1, maxLimit].
func ParsePage(pageStr, limitStr string, defLimit, maxLimit int) (page, limit int) {
	page = atoiOr(pageStr, 1)
	if page < 1 {
		page = 1
	}
	limit = clampInt(atoiOr(limitStr, defLimit), 1, maxLimit)
	return page, limit
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// clampInt constrains val to be within [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
