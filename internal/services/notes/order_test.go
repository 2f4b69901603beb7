package notes

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(ns []Note) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Title
	}
	return out
}

func noteIDs(ns []Note) []int64 {
	out := make([]int64, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

// storeOrder mimics what a store delivers: descending id.
var storeOrder = []Note{
	{ID: 4, Title: "b", Color: 2},
	{ID: 3, Title: "B", Color: 1},
	{ID: 2, Title: "a", Color: 2},
	{ID: 1, Title: "b", Color: 0},
	{ID: 0, Title: "A", Color: 1},
}

func TestSort(t *testing.T) {
	tests := []struct {
		name  string
		order OrderBy
		want  []int64
	}{
		{
			name:  "title ascending is case-sensitive, ties keep store order",
			order: OrderBy{Key: OrderByTitle, Direction: Ascending},
			want:  []int64{0, 3, 2, 4, 1},
		},
		{
			name:  "title descending",
			order: OrderBy{Key: OrderByTitle, Direction: Descending},
			want:  []int64{4, 1, 2, 3, 0},
		},
		{
			name:  "date ascending",
			order: OrderBy{Key: OrderByDate, Direction: Ascending},
			want:  []int64{0, 1, 2, 3, 4},
		},
		{
			name:  "date descending",
			order: OrderBy{Key: OrderByDate, Direction: Descending},
			want:  []int64{4, 3, 2, 1, 0},
		},
		{
			name:  "color ascending, ties keep store order",
			order: OrderBy{Key: OrderByColor, Direction: Ascending},
			want:  []int64{1, 3, 0, 4, 2},
		},
		{
			name:  "color descending, ties keep store order",
			order: OrderBy{Key: OrderByColor, Direction: Descending},
			want:  []int64{4, 2, 3, 0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sort(storeOrder, tt.order)
			assert.Equal(t, tt.want, noteIDs(got))
		})
	}
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	in := []Note{{ID: 1, Title: "z"}, {ID: 0, Title: "a"}}
	before := append([]Note(nil), in...)

	out := Sort(in, DefaultOrder)

	assert.Equal(t, before, in)
	assert.Equal(t, []string{"a", "z"}, titles(out))
	out[0].Title = "changed"
	assert.Equal(t, "z", in[0].Title)
}

func TestSort_EmptyAndNil(t *testing.T) {
	assert.Equal(t, []Note{}, Sort(nil, DefaultOrder))
	assert.Equal(t, []Note{}, Sort([]Note{}, DefaultOrder))
}

func TestSort_Deterministic(t *testing.T) {
	faker := gofakeit.New(42)
	in := make([]Note, 200)
	for i := range in {
		in[i] = Note{
			ID:    int64(len(in) - i),
			Title: faker.RandomString([]string{"alpha", "beta", "Gamma", "delta"}),
			Color: faker.Number(0, 3),
		}
	}

	for _, key := range []OrderKey{OrderByTitle, OrderByDate, OrderByColor} {
		for _, dir := range []Direction{Ascending, Descending} {
			order := OrderBy{Key: key, Direction: dir}
			assert.Equal(t, Sort(in, order), Sort(in, order), order.String())
		}
	}
}

func TestSort_TitleAscendingDescending(t *testing.T) {
	in := []Note{{ID: 1, Title: "A"}, {ID: 0, Title: "B"}}

	assert.Equal(t, []string{"A", "B"}, titles(Sort(in, OrderBy{Key: OrderByTitle, Direction: Ascending})))
	assert.Equal(t, []string{"B", "A"}, titles(Sort(in, OrderBy{Key: OrderByTitle, Direction: Descending})))
}

func TestOrderBy_WithKeyKeepsDirection(t *testing.T) {
	o := OrderBy{Key: OrderByTitle, Direction: Descending}

	byColor := o.WithKey(OrderByColor)
	assert.Equal(t, OrderBy{Key: OrderByColor, Direction: Descending}, byColor)

	asc := byColor.WithDirection(Ascending)
	assert.Equal(t, OrderBy{Key: OrderByColor, Direction: Ascending}, asc)
}

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		in      string
		want    OrderBy
		wantErr bool
	}{
		{in: "title:asc", want: OrderBy{Key: OrderByTitle, Direction: Ascending}},
		{in: "DATE:DESC", want: OrderBy{Key: OrderByDate, Direction: Descending}},
		{in: " color ", want: OrderBy{Key: OrderByColor, Direction: Ascending}},
		{in: "updated:asc", wantErr: true},
		{in: "title:sideways", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrderBy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOrder)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()), "String round-trips")
		})
	}
}

func mustParse(t *testing.T, s string) OrderBy {
	t.Helper()
	o, err := ParseOrderBy(s)
	require.NoError(t, err)
	return o
}

func TestOrderBy_TextMarshaling(t *testing.T) {
	var o OrderBy
	require.NoError(t, o.UnmarshalText([]byte("color:desc")))
	assert.Equal(t, OrderBy{Key: OrderByColor, Direction: Descending}, o)

	b, err := o.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "color:desc", string(b))

	assert.Error(t, o.UnmarshalText([]byte("nope")))
}

func TestDefaultOrder(t *testing.T) {
	assert.Equal(t, "title:asc", DefaultOrder.String())
}
