package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterApply(t *testing.T) {
	t.Parallel()

	const query = `SELECT id FROM ledger_history h %s ORDER BY id DESC`

	tests := []struct {
		name     string
		filter   *Filter
		expQuery string
		expArgs  []any
	}{
		{
			name:     "ok/nil",
			expQuery: `SELECT id FROM ledger_history h WHERE 1=1 ORDER BY id DESC`,
			expArgs:  []any{},
		},
		{
			name:     "ok/where",
			filter:   NewFilter("h.run_id LIKE ?", []any{"abc%"}),
			expQuery: `SELECT id FROM ledger_history h WHERE h.run_id LIKE ? ORDER BY id DESC`,
			expArgs:  []any{"abc%"},
		},
		{
			name:     "ok/limit",
			filter:   &Filter{Limit: 5},
			expQuery: `SELECT id FROM ledger_history h WHERE 1=1 ORDER BY id DESC LIMIT ?`,
			expArgs:  []any{5},
		},
		{
			name:     "ok/where_limit",
			filter:   &Filter{Where: "h.direction = ?", Args: []any{"up"}, Limit: 2},
			expQuery: `SELECT id FROM ledger_history h WHERE h.direction = ? ORDER BY id DESC LIMIT ?`,
			expArgs:  []any{"up", 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q, args := tt.filter.Apply(query)
			assert.Equal(t, tt.expQuery, q)
			assert.Equal(t, tt.expArgs, args)
		})
	}
}
