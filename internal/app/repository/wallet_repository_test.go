package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instafly/instafly/internal/app/models"
)

const initWalletDB = `
CREATE TABLE IF NOT EXISTS wallets
(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_uuid VARCHAR NOT NULL UNIQUE,
    balance NUMERIC NOT NULL DEFAULT 0,
    total_spent NUMERIC NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (balance >= 0)
);
CREATE TABLE IF NOT EXISTS wallet_transactions
(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_uuid VARCHAR NOT NULL,
    order_uuid VARCHAR,
    type VARCHAR NOT NULL,
    amount NUMERIC NOT NULL,
    balance_before NUMERIC NOT NULL,
    balance_after NUMERIC NOT NULL,
    description VARCHAR NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func setupInMemoryWalletDB(t *testing.T) *sqlx.DB {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("could not create in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(initWalletDB)
	if err != nil {
		t.Fatalf("could not create wallet tables: %v", err)
	}
	return db
}

func createTestWallet(t *testing.T, db *sqlx.DB, repo *WalletRepositoryImpl, userUID uuid.UUID) *models.Wallet {
	now := time.Now().UTC().Truncate(time.Second)
	wallet := &models.Wallet{UserUUID: userUID, CreatedAt: now, UpdatedAt: now}
	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.CreateWallet(context.Background(), tx, wallet))
	require.NoError(t, tx.Commit())
	require.NotZero(t, wallet.ID)
	return wallet
}

func TestWalletRepositoryImpl_CreditAndDebit(t *testing.T) {
	db := setupInMemoryWalletDB(t)
	defer db.Close()
	repo := NewWalletRepository(db)

	userUID := uuid.New()
	createTestWallet(t, db, repo, userUID)

	tx, err := db.Beginx()
	require.NoError(t, err)
	wallet, err := repo.Credit(context.Background(), tx, &userUID, 100)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, 100.0, wallet.Balance)
	assert.Equal(t, 0.0, wallet.TotalSpent)

	tx, err = db.Beginx()
	require.NoError(t, err)
	wallet, err = repo.Debit(context.Background(), tx, &userUID, 30)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, 70.0, wallet.Balance)
	assert.Equal(t, 30.0, wallet.TotalSpent)

	got, err := repo.GetWallet(context.Background(), &userUID)
	require.NoError(t, err)
	assert.Equal(t, 70.0, got.Balance)
}

func TestWalletRepositoryImpl_GetWalletTxSeesUncommittedWrites(t *testing.T) {
	db := setupInMemoryWalletDB(t)
	defer db.Close()
	repo := NewWalletRepository(db)

	userUID := uuid.New()
	createTestWallet(t, db, repo, userUID)

	// The single-connection db means a pool read while the tx is open
	// would block forever; the tx-scoped read must be used instead and
	// must observe the uncommitted credit.
	tx, err := db.Beginx()
	require.NoError(t, err)
	_, err = repo.Credit(context.Background(), tx, &userUID, 50)
	require.NoError(t, err)

	wallet, err := repo.GetWalletTx(context.Background(), tx, &userUID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, wallet.Balance)
	require.NoError(t, tx.Rollback())

	got, err := repo.GetWallet(context.Background(), &userUID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Balance)
}

func TestWalletRepositoryImpl_DebitBelowZeroViolatesCheck(t *testing.T) {
	db := setupInMemoryWalletDB(t)
	defer db.Close()
	repo := NewWalletRepository(db)

	userUID := uuid.New()
	createTestWallet(t, db, repo, userUID)

	tx, err := db.Beginx()
	require.NoError(t, err)
	_, err = repo.Debit(context.Background(), tx, &userUID, 10)
	assert.Error(t, err)
	_ = tx.Rollback()

	got, err := repo.GetWallet(context.Background(), &userUID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Balance)
}

func TestWalletRepositoryImpl_Transactions(t *testing.T) {
	db := setupInMemoryWalletDB(t)
	defer db.Close()
	repo := NewWalletRepository(db)

	userUID := uuid.New()
	createTestWallet(t, db, repo, userUID)

	orderUUID := uuid.New()
	tx, err := db.Beginx()
	require.NoError(t, err)
	wtx := &models.WalletTransaction{
		UserUUID:      userUID,
		OrderUUID:     &orderUUID,
		Type:          models.TransactionDeposit,
		Amount:        100,
		BalanceBefore: 0,
		BalanceAfter:  100,
		Description:   "PIX deposit",
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.AppendTransaction(context.Background(), tx, wtx))
	require.NoError(t, tx.Commit())
	assert.NotZero(t, wtx.ID)

	transactions, err := repo.GetTransactions(context.Background(), &userUID)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, models.TransactionDeposit, transactions[0].Type)
	assert.Equal(t, 100.0, transactions[0].BalanceAfter)

	other := uuid.New()
	transactions, err = repo.GetTransactions(context.Background(), &other)
	require.NoError(t, err)
	assert.Empty(t, transactions)
}
