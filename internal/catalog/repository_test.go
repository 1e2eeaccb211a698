package catalog

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/salon-storefront/internal/cart"
)

func newExactMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestMenuQueryUsesBookingColumnsOnly(t *testing.T) {
	assert.NotContains(t, menuQuery, "booking_stylist ")
	assert.NotContains(t, menuQuery, "st.is_active")
	assert.Contains(t, menuQuery, "ss.is_active")
	assert.Contains(t, menuQuery, "s.is_active")
}

func TestRepositoryMenu(t *testing.T) {
	mock := newExactMock(t)

	mock.ExpectQuery(menuQuery).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"service_id", "stylist_id"}).
			AddRow(int64(2), int64(11)).
			AddRow(int64(2), int64(12)).
			AddRow(int64(1), int64(10)).
			AddRow(int64(1), int64(11)).
			AddRow(int64(5), int64(0)))

	menu, err := NewRepository(mock, nil).Menu(context.Background(), "7")

	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 5}, menu.ServiceIDs)
	assert.Equal(t, cart.StylistsMap{1: {10, 11}, 2: {11, 12}}, menu.Stylists)
	assert.Equal(t, []int64{11}, menu.Stylists.Common([]int64{1, 2}))
	assert.False(t, menu.Stylists.HasCommon([]int64{5}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryMenuRejectsNonNumericSalon(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRepository(mock, nil).Menu(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrUnknownSalon)
}

func TestRepositoryMenuQueryError(t *testing.T) {
	mock := newExactMock(t)

	mock.ExpectQuery(menuQuery).
		WithArgs(int64(7)).
		WillReturnError(errors.New("db down"))

	_, err := NewRepository(mock, nil).Menu(context.Background(), "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog: query menu")
}
