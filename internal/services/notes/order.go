package notes

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// OrderKey selects the field notes are sorted by.
type OrderKey int

const (
	OrderByTitle OrderKey = iota
	OrderByDate
	OrderByColor
)

// Direction selects ascending or descending order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// OrderBy is the (key, direction) pair governing list order.
type OrderBy struct {
	Key       OrderKey
	Direction Direction
}

// DefaultOrder is the order a fresh list starts with.
var DefaultOrder = OrderBy{Key: OrderByTitle, Direction: Ascending}

// WithKey returns o sorted by k, keeping the current direction.
func (o OrderBy) WithKey(k OrderKey) OrderBy {
	o.Key = k
	return o
}

// WithDirection returns o with direction d, keeping the current key.
func (o OrderBy) WithDirection(d Direction) OrderBy {
	o.Direction = d
	return o
}

var keyNames = map[OrderKey]string{
	OrderByTitle: "title",
	OrderByDate:  "date",
	OrderByColor: "color",
}

var directionNames = map[Direction]string{
	Ascending:  "asc",
	Descending: "desc",
}

func (k OrderKey) String() string {
	if s, ok := keyNames[k]; ok {
		return s
	}
	return fmt.Sprintf("OrderKey(%d)", int(k))
}

func (d Direction) String() string {
	if s, ok := directionNames[d]; ok {
		return s
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// String renders the order as "key:direction", e.g. "title:asc".
func (o OrderBy) String() string {
	return o.Key.String() + ":" + o.Direction.String()
}

// ParseOrderBy parses the "key:direction" form produced by String.
// The direction part is optional and defaults to ascending.
func ParseOrderBy(s string) (OrderBy, error) {
	keyPart, dirPart, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")

	var order OrderBy
	found := false
	for k, name := range keyNames {
		if name == keyPart {
			order.Key, found = k, true
			break
		}
	}
	if !found {
		return OrderBy{}, fmt.Errorf("%w: unknown key %q", ErrInvalidOrder, keyPart)
	}

	switch dirPart {
	case "", "asc":
		order.Direction = Ascending
	case "desc":
		order.Direction = Descending
	default:
		return OrderBy{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidOrder, dirPart)
	}
	return order, nil
}

// MarshalText implements encoding.TextMarshaler.
func (o OrderBy) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *OrderBy) UnmarshalText(b []byte) error {
	parsed, err := ParseOrderBy(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Sort returns a new slice holding notes ordered by order. The input is not
// modified. The sort is stable, so notes with equal keys keep the order the
// store delivered them in.
func Sort(notes []Note, order OrderBy) []Note {
	out := slices.Clone(notes)
	if out == nil {
		out = []Note{}
	}

	compare := comparator(order.Key)
	if order.Direction == Descending {
		asc := compare
		compare = func(a, b Note) int { return -asc(a, b) }
	}

	slices.SortStableFunc(out, compare)
	return out
}

func comparator(key OrderKey) func(a, b Note) int {
	switch key {
	case OrderByDate:
		// no timestamp exists, ids grow with creation
		return func(a, b Note) int { return cmp.Compare(a.ID, b.ID) }
	case OrderByColor:
		return func(a, b Note) int { return cmp.Compare(a.Color, b.Color) }
	default:
		return func(a, b Note) int { return strings.Compare(a.Title, b.Title) }
	}
}
