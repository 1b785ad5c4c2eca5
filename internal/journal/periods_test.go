package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/grandlivre/internal/model"
)

func TestOpenPeriod(t *testing.T) {
	e := newEnv(t, nil, nil)

	next, err := e.journal.OpenPeriod(ctx, e.enterprise.ID, date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, model.PeriodOpen, next.Status)
	assert.NotZero(t, next.ID)

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"overlapping start", date(2024, 12, 31), date(2025, 6, 30)},
		{"contained", date(2024, 6, 1), date(2024, 6, 30)},
		{"ends before start", date(2026, 12, 31), date(2026, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.journal.OpenPeriod(ctx, e.enterprise.ID, tt.start, tt.end)
			assert.Equal(t, model.KindInvalidInput, model.Kind(err))
		})
	}

	periods, err := e.journal.Periods(ctx, e.enterprise.ID)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, e.period.ID, periods[0].ID)
	assert.Equal(t, next.ID, periods[1].ID)

	p, err := e.journal.PeriodFor(ctx, e.enterprise.ID, date(2025, 2, 28))
	require.NoError(t, err)
	assert.Equal(t, next.ID, p.ID)
	_, err = e.journal.PeriodFor(ctx, e.enterprise.ID, date(2023, 2, 28))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOpenPeriod_UnknownEnterprise(t *testing.T) {
	e := newEnv(t, nil, nil)
	_, err := e.journal.OpenPeriod(ctx, 9999, date(2030, 1, 1), date(2030, 12, 31))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestClosePeriod(t *testing.T) {
	e := newEnv(t, nil, nil)
	draft, err := e.journal.Create(ctx, e.sale("10"))
	require.NoError(t, err)
	other, err := e.journal.Create(ctx, e.sale("20"))
	require.NoError(t, err)
	_, err = e.journal.Validate(ctx, other.ID, "bob")
	require.NoError(t, err)

	_, err = e.journal.ClosePeriod(ctx, e.period.ID)
	var state *model.InvalidStateError
	require.ErrorAs(t, err, &state, "drafts block closing")
	assert.Contains(t, state.Subject, draft.Number)

	_, err = e.journal.Validate(ctx, draft.ID, "bob")
	require.NoError(t, err)
	closed, err := e.journal.ClosePeriod(ctx, e.period.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	for _, id := range []string{draft.Number, other.Number} {
		entry, err := e.journal.GetByNumber(ctx, e.enterprise.ID, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusClosed, entry.Status)
	}

	// Nothing more can be written into a closed period.
	_, err = e.journal.Create(ctx, e.sale("5"))
	require.ErrorAs(t, err, &state)
	assert.Equal(t, "CLOSED", state.State)

	_, err = e.journal.ClosePeriod(ctx, e.period.ID)
	require.ErrorAs(t, err, &state)
}
