package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/instafly/instafly/internal/app/models"
)

type WalletRepository interface {
	CreateWallet(ctx context.Context, tx *sqlx.Tx, wallet *models.Wallet) error
	GetWallet(ctx context.Context, userUID *uuid.UUID) (*models.Wallet, error)
	GetWalletTx(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID) (*models.Wallet, error)
	Credit(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID, amount float64) (*models.Wallet, error)
	Debit(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID, amount float64) (*models.Wallet, error)
	AppendTransaction(ctx context.Context, tx *sqlx.Tx, wtx *models.WalletTransaction) error
	GetTransactions(ctx context.Context, userUID *uuid.UUID) ([]models.WalletTransaction, error)
	GetDB() *sqlx.DB
}

type WalletRepositoryImpl struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepositoryImpl {
	return &WalletRepositoryImpl{db: db}
}

func (wr *WalletRepositoryImpl) CreateWallet(ctx context.Context, tx *sqlx.Tx, wallet *models.Wallet) error {
	query := `INSERT INTO wallets (user_uuid, balance, total_spent, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5) returning id;`
	err := tx.QueryRowContext(ctx, query,
		wallet.UserUUID, wallet.Balance, wallet.TotalSpent, wallet.CreatedAt, wallet.UpdatedAt).Scan(&wallet.ID)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

func (wr *WalletRepositoryImpl) GetWallet(ctx context.Context, userUID *uuid.UUID) (*models.Wallet, error) {
	query := `SELECT * FROM wallets WHERE user_uuid = $1;`
	wallet := models.Wallet{}
	err := wr.db.GetContext(ctx, &wallet, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &wallet, nil
}

// GetWalletTx reads the wallet through an open transaction. Balance checks
// and the ledger's balance_before must see the same snapshot the writes do,
// so any read made while a transaction is open goes through here.
func (wr *WalletRepositoryImpl) GetWalletTx(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID) (*models.Wallet, error) {
	query := `SELECT * FROM wallets WHERE user_uuid = $1;`
	wallet := models.Wallet{}
	err := tx.GetContext(ctx, &wallet, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &wallet, nil
}

func (wr *WalletRepositoryImpl) Credit(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID, amount float64) (*models.Wallet, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = CURRENT_TIMESTAMP WHERE user_uuid = $2 returning *;`
	wallet := models.Wallet{}
	err := tx.GetContext(ctx, &wallet, query, amount, userUID)
	if err != nil {
		return nil, fmt.Errorf("credit: %w", err)
	}
	return &wallet, nil
}

// Debit lowers the balance and raises total_spent in one statement; the
// balance CHECK constraint is the hard floor, callers still pre-check.
func (wr *WalletRepositoryImpl) Debit(ctx context.Context, tx *sqlx.Tx, userUID *uuid.UUID, amount float64) (*models.Wallet, error) {
	query := `UPDATE wallets SET balance = balance - $1, total_spent = total_spent + $1, updated_at = CURRENT_TIMESTAMP
			  WHERE user_uuid = $2 returning *;`
	wallet := models.Wallet{}
	err := tx.GetContext(ctx, &wallet, query, amount, userUID)
	if err != nil {
		return nil, fmt.Errorf("debit: %w", err)
	}
	return &wallet, nil
}

func (wr *WalletRepositoryImpl) AppendTransaction(ctx context.Context, tx *sqlx.Tx, wtx *models.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (user_uuid, order_uuid, type, amount, balance_before, balance_after, description, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8) returning id;`
	err := tx.QueryRowContext(ctx, query,
		wtx.UserUUID, wtx.OrderUUID, wtx.Type, wtx.Amount, wtx.BalanceBefore, wtx.BalanceAfter,
		wtx.Description, wtx.CreatedAt).Scan(&wtx.ID)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

func (wr *WalletRepositoryImpl) GetTransactions(ctx context.Context, userUID *uuid.UUID) ([]models.WalletTransaction, error) {
	query := `SELECT * FROM wallet_transactions WHERE user_uuid = $1 ORDER BY created_at DESC;`
	txs := make([]models.WalletTransaction, 0)
	err := wr.db.SelectContext(ctx, &txs, query, userUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return txs, nil
		}
		return nil, fmt.Errorf("read wallet transactions: %w", err)
	}
	return txs, nil
}

func (wr *WalletRepositoryImpl) GetDB() *sqlx.DB {
	return wr.db
}
