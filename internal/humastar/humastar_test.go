package humastar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignals(t *testing.T) {
	signals, err := ParseSignals([]byte(`{"lng":144.9,"lat":"-37.8","name":"x","on":true,"n":3}`))
	require.NoError(t, err)

	lng, ok := signals.Number("lng")
	assert.True(t, ok)
	assert.InDelta(t, 144.9, lng, 1e-9)

	lat, ok := signals.Number("lat")
	assert.True(t, ok)
	assert.InDelta(t, -37.8, lat, 1e-9)

	_, ok = signals.Number("name")
	assert.False(t, ok)
	_, ok = signals.Number("missing")
	assert.False(t, ok)

	assert.Equal(t, "x", signals.String("name"))
	assert.Empty(t, signals.String("on"))

	pos, ok := signals.Point("lng", "lat")
	assert.True(t, ok)
	assert.InDelta(t, -37.8, pos.Lat(), 1e-9)
	_, ok = signals.Point("lng", "name")
	assert.False(t, ok)
}

func TestSignalsNumber_RejectsNonFinite(t *testing.T) {
	signals := Signals{"a": "NaN", "b": "+Inf", "c": "1e3"}
	_, ok := signals.Number("a")
	assert.False(t, ok)
	_, ok = signals.Number("b")
	assert.False(t, ok)
	c, ok := signals.Number("c")
	assert.True(t, ok)
	assert.Equal(t, 1000.0, c)
}

func TestParseSignals_EmptyBody(t *testing.T) {
	signals, err := ParseSignals([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, signals)

	_, err = ParseSignals([]byte("{"))
	assert.Error(t, err)
}

func TestSignalsInput_Parse(t *testing.T) {
	in := SignalsInput{RawBody: []byte("not json")}
	_, err := in.Parse()
	assert.ErrorContains(t, err, "invalid signals")
}

func TestActionsFor(t *testing.T) {
	defs := []ActionDef{
		{Rel: "delete", Pattern: "/things/%s", Method: "DELETE"},
		{Rel: "book", Pattern: "/things/%s/book", Method: "POST", Title: "Book it"},
	}

	all := ActionsFor("42", defs, nil)
	require.Len(t, all, 2)
	assert.Equal(t, `</things/42>; rel="delete"; method="DELETE"`, all[0].LinkHeader())
	assert.Equal(t, `</things/42/book>; rel="book"; method="POST"; title="Book it"`, all[1].LinkHeader())

	some := ActionsFor("42", defs, func(rel string) bool { return rel != "book" })
	require.Len(t, some, 1)
	assert.Equal(t, "delete", some[0].Rel)
}

func TestPaginationLinks(t *testing.T) {
	tests := []struct {
		name string
		page PageBody[int]
		want []string
	}{
		{
			name: "no limit",
			page: PageBody[int]{Total: 10},
		},
		{
			name: "empty",
			page: PageBody[int]{Limit: 5},
			want: []string{`</t?limit=5&offset=0>; rel="first"`},
		},
		{
			name: "first page",
			page: PageBody[int]{Total: 12, Limit: 5},
			want: []string{
				`</t?limit=5&offset=0>; rel="first"`,
				`</t?limit=5&offset=5>; rel="next"`,
				`</t?limit=5&offset=10>; rel="last"`,
			},
		},
		{
			name: "last page",
			page: PageBody[int]{Total: 12, Offset: 10, Limit: 5},
			want: []string{
				`</t?limit=5&offset=0>; rel="first"`,
				`</t?limit=5&offset=5>; rel="prev"`,
				`</t?limit=5&offset=10>; rel="last"`,
			},
		},
		{
			name: "offset inside first page",
			page: PageBody[int]{Total: 12, Offset: 2, Limit: 5},
			want: []string{
				`</t?limit=5&offset=0>; rel="first"`,
				`</t?limit=5&offset=0>; rel="prev"`,
				`</t?limit=5&offset=7>; rel="next"`,
				`</t?limit=5&offset=10>; rel="last"`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.page.PaginationLinks("/t"))
		})
	}
}

func TestLinksAdd(t *testing.T) {
	l := Links{}
	l.Add("/a", "/b", "next")
	l.Add("/a", "/b", "next")
	l.Add("/a", "/c", "up")
	assert.Equal(t, []string{`</b>; rel="next"`, `</c>; rel="up"`}, l["/a"])

	rel, href := parseLinkHeader(`</c>; rel="up"`)
	assert.Equal(t, "up", rel)
	assert.Equal(t, "/c", href)
}
