package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateSortKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain column ascends", key: "created_date", want: "created_at ASC"},
		{name: "leading dash descends", key: "-created_date", want: "created_at DESC"},
		{name: "direct column name", key: "total_price", want: "total_price ASC"},
		{name: "descending status", key: "-status", want: "status DESC"},
		{name: "unknown column", key: "password_hash", wantErr: true},
		{name: "empty key", key: "", wantErr: true},
		{name: "dash only", key: "-", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TranslateSortKey(tt.key, orderSortKeys)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrderClauseFallback(t *testing.T) {
	clause, err := orderClause(ListOptions{}, orderSortKeys, "created_at DESC")
	assert.NoError(t, err)
	assert.Equal(t, "created_at DESC", clause)

	_, err = orderClause(ListOptions{SortKey: "nope"}, orderSortKeys, "created_at DESC")
	assert.Error(t, err)
}
