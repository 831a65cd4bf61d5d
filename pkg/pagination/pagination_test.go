package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		page, perPage int
		want          Pagination
	}{
		{"defaults", 0, 0, Pagination{Page: 1, PerPage: DefaultPerPage}},
		{"explicit", 3, 10, Pagination{Page: 3, PerPage: 10}},
		{"capped", 1, 1000, Pagination{Page: 1, PerPage: MaxPerPage}},
		{"negative", -2, -5, Pagination{Page: 1, PerPage: DefaultPerPage}},
		{"huge page", math.MaxInt, 100, Pagination{Page: MaxOffset/100 + 1, PerPage: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.page, tt.perPage))
		})
	}
}

func TestFromQuery(t *testing.T) {
	p := FromQuery("2", "5")
	assert.Equal(t, 5, p.Offset())
	assert.Equal(t, 5, p.Limit())

	assert.Equal(t, New(1, DefaultPerPage), FromQuery("abc", ""))
}

func TestOffset_HugePage(t *testing.T) {
	for _, raw := range []string{"9223372036854775807", "99999999999999999999999"} {
		for _, perPage := range []string{"1", "20", "100", "500"} {
			p := FromQuery(raw, perPage)
			assert.GreaterOrEqual(t, p.Offset(), 0, raw+"/"+perPage)
			assert.LessOrEqual(t, p.Offset(), MaxOffset, raw+"/"+perPage)
		}
	}
}

func TestNewResult(t *testing.T) {
	r := NewResult[string](nil, 41, New(1, 20))
	assert.NotNil(t, r.Data)
	assert.Empty(t, r.Data)
	assert.Equal(t, 3, r.TotalPages)

	r = NewResult([]string{"a"}, 0, New(1, 20))
	assert.Equal(t, 0, r.TotalPages)
}

func TestSortOption(t *testing.T) {
	allowed := map[string]string{"occurred_at": "occurred_at", "action": "action"}

	s := NewSortOption(allowed).Parse("-occurred_at, action,deal_id;drop table")
	assert.Equal(t, "occurred_at DESC, action ASC", s.SQL())
	assert.False(t, s.IsEmpty())

	s = NewSortOption(allowed).Parse("")
	assert.True(t, s.IsEmpty())
	assert.Equal(t, "occurred_at DESC", s.SQLWithDefault("occurred_at DESC"))

	var nilSort *SortOption
	assert.Equal(t, "occurred_at DESC", nilSort.SQLWithDefault("occurred_at DESC"))
}
