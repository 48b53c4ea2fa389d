package billing

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return NewStore(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestOrgByStripeCustomerReturnsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id FROM orgs WHERE stripe_customer_id").
		WithArgs("cus_123").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-1"))

	id, err := store.OrgByStripeCustomer(context.Background(), "cus_123")
	require.NoError(t, err)
	require.Equal(t, "org-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePlanSetsTierAndStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE orgs SET plan_tier").
		WithArgs("growth", "active", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdatePlan(context.Background(), "org-1", "growth", "active")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
