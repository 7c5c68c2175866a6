package sqlstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return fmt.Sprintf("id-%04d", s.n.Add(1)) }

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := database.NewGorm(sqlDB)
	require.NoError(t, err)

	s := New(gdb, &seqIDs{})
	s.now = func() time.Time { return testNow }
	return s, mock
}

var orderColumns = []string{
	"id", "client_id", "total", "delivery_address", "delivery_region", "delivery_commune",
	"delivery_comments", "status", "payment_ref", "approval_link", "capture_id", "paid_amount",
	"failure_reason", "created_at", "updated_at", "captured_at",
}

func orderRows(id string, status models.OrderStatus) *sqlmock.Rows {
	return sqlmock.NewRows(orderColumns).AddRow(
		id, "c1", int64(200), "Main 1", "RM", "Santiago", "", string(status), "PAY-1", "https://approve",
		"", "0", "", testNow, testNow, nil,
	)
}

func itemRows(orderID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"order_id", "position", "product_id", "name", "quantity", "unit_price", "subtotal"}).
		AddRow(orderID, 1, "p1", "X", 2, int64(100), int64(200))
}

func TestClientCreateDuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "clients"`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "clients_email_key"})

	_, err := s.Clients().Create(context.Background(), models.ClientInput{Name: "A", Email: "A@B.com"})
	assert.ErrorIs(t, err, database.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientGetByIDMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "clients" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, err := s.Clients().GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientGetByEmailNormalises(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "clients" WHERE email = \$1`).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "active"}).
			AddRow("c1", "a@b.com", "hash", "user", true))

	c, err := s.Clients().GetByEmail(context.Background(), " A@B.COM ")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "hash", c.PasswordHash)
	assert.Equal(t, models.RoleUser, c.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientUpdateUnknownID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "clients" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	active := false
	c, err := s.Clients().Update(context.Background(), "nope", models.ClientPatch{Active: &active})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductDeleteReportsRemoval(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM "products" WHERE id = \$1`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "products" WHERE id = \$1`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := s.Products().Delete(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Products().Delete(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientDeleteWithOrdersIsReferenced(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM "clients" WHERE id = \$1`).
		WithArgs("c1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "orders_client_id_fkey"})

	removed, err := s.Clients().Delete(context.Background(), "c1")
	assert.False(t, removed)
	assert.ErrorIs(t, err, database.ErrReferenced)
	assert.NotErrorIs(t, err, database.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartClearCountsRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM "cart_items" WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.Cart().Clear(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPaymentRefUnknownOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "orders" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Orders().SetPaymentRef(context.Background(), "nope", "PAY", "link")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderCreateRejectsMismatchedTotal(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.Orders().Create(context.Background(), &models.Order{
		ClientID: "c1",
		Items:    []models.OrderItem{{ProductID: "p1", Quantity: 2, UnitPrice: 100, Subtotal: 200}},
		Total:    1,
	})
	assert.ErrorIs(t, err, database.ErrCheckFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaidAppliesAllEffects(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 .*FOR UPDATE`).WillReturnRows(orderRows("o1", models.OrderStatusPending))
	mock.ExpectQuery(`SELECT \* FROM "order_items" WHERE order_id IN`).WillReturnRows(itemRows("o1"))
	mock.ExpectExec(`UPDATE products\s+SET stock = stock - \$1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "cart_items" WHERE user_id = \$1`).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "orders" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	paid, err := s.Orders().MarkPaid(context.Background(), "o1", models.Capture{
		CaptureID:  "CAP-1",
		PaidAmount: decimal.RequireFromString("0.22"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	assert.Equal(t, "CAP-1", paid.CaptureID)
	require.Len(t, paid.Items, 1)
	assert.Equal(t, 2, paid.Items[0].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaidRollsBackOnInsufficientStock(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 .*FOR UPDATE`).WillReturnRows(orderRows("o1", models.OrderStatusPending))
	mock.ExpectQuery(`SELECT \* FROM "order_items" WHERE order_id IN`).WillReturnRows(itemRows("o1"))
	mock.ExpectExec(`UPDATE products\s+SET stock = stock - \$1`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "products" WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := s.Orders().MarkPaid(context.Background(), "o1", models.Capture{CaptureID: "CAP-1"})
	assert.ErrorIs(t, err, database.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaidAlreadyPaidIsNoop(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 .*FOR UPDATE`).WillReturnRows(orderRows("o1", models.OrderStatusPaid))
	mock.ExpectQuery(`SELECT \* FROM "order_items" WHERE order_id IN`).WillReturnRows(itemRows("o1"))
	mock.ExpectCommit()

	paid, err := s.Orders().MarkPaid(context.Background(), "o1", models.Capture{CaptureID: "CAP-2"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedRejectsPaidOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 .*FOR UPDATE`).WillReturnRows(orderRows("o1", models.OrderStatusPaid))
	mock.ExpectRollback()

	_, err := s.Orders().MarkFailed(context.Background(), "o1", "declined")
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\% off\_now%`, containsPattern("50% off_now"))
}
