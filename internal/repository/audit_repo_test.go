package repository

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"marketplace-auth/internal/model"
)

func TestNormalizeAuditQuery(t *testing.T) {
	tests := []struct {
		name      string
		in        model.AuditQuery
		wantPage  int
		wantLimit int
	}{
		{name: "defaults", in: model.AuditQuery{}, wantPage: 1, wantLimit: defaultAuditLimit},
		{name: "negative page", in: model.AuditQuery{Page: -2, Limit: 10}, wantPage: 1, wantLimit: 10},
		{name: "limit capped", in: model.AuditQuery{Page: 3, Limit: 10_000}, wantPage: 3, wantLimit: maxAuditLimit},
		{name: "page capped", in: model.AuditQuery{Page: math.MaxInt, Limit: maxAuditLimit}, wantPage: maxAuditPage, wantLimit: maxAuditLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAuditQuery(tt.in)
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}
}

func TestNormalizeAuditQueryKeepsOffsetPositive(t *testing.T) {
	q := NormalizeAuditQuery(model.AuditQuery{Page: math.MaxInt, Limit: math.MaxInt})
	assert.Positive(t, (q.Page-1)*q.Limit)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 50))
	assert.Equal(t, 1, totalPages(50, 50))
	assert.Equal(t, 2, totalPages(51, 50))
}

func TestNullableID(t *testing.T) {
	assert.Nil(t, nullableID(0))
	assert.Nil(t, nullableID(-1))

	id := nullableID(7)
	if assert.NotNil(t, id) {
		assert.Equal(t, int64(7), *id)
	}
}
