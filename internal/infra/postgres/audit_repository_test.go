package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dealroom/api/pkg/domain/audit"
	"github.com/dealroom/api/pkg/pagination"
)

func TestAuditOrderBy(t *testing.T) {
	tests := []struct {
		name string
		sort *pagination.SortOption
		want string
	}{
		{"default", nil, "occurred_at DESC, id DESC"},
		{"unknown fields only", pagination.NewSortOption(audit.SortFields).Parse("deal_id"), "occurred_at DESC, id DESC"},
		{"action", pagination.NewSortOption(audit.SortFields).Parse("action"), "action ASC, id DESC"},
		{"several", pagination.NewSortOption(audit.SortFields).Parse("-action,occurred_at"), "action DESC, occurred_at ASC, id DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auditOrderBy(tt.sort))
		})
	}
}
