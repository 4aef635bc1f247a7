package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanTransaction reads a row in selectTransactionColumns order.
func scanTransaction(s scanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction

	var statusStr string

	var requestID, shortCode, resultDesc sql.NullString

	if err := s.Scan(
		&tx.ID, &requestID, &tx.KeyID, &tx.OwnerID, &shortCode,
		&tx.Amount, &tx.PhoneNumber, &tx.AccountReference, &tx.Description,
		&statusStr, &resultDesc, &tx.CreatedAt, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	tx.RequestID = requestID.String
	tx.BusinessShortCode = shortCode.String
	tx.ResultDesc = resultDesc.String
	tx.Status = transaction.Status(statusStr)

	return &tx, nil
}

const selectTransactionColumns = `
	transaction_id, mpesa_request_id, key_id, owner_id, business_short_code,
	amount, phone_number, account_reference, transaction_desc,
	status, result_desc, created_at, updated_at
`

func refClause(ref transaction.Ref, argIdx int) (string, any) {
	if ref.IsRequestID() {
		return fmt.Sprintf("mpesa_request_id = $%d", argIdx), ref.RequestID
	}

	return fmt.Sprintf("transaction_id = $%d", argIdx), ref.ID
}

func (s *Store) CreateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		INSERT INTO mpesa_transactions (
			transaction_id, mpesa_request_id, key_id, owner_id, business_short_code,
			amount, phone_number, account_reference, transaction_desc,
			status, result_desc, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		tx.ID,
		tx.RequestID,
		tx.KeyID,
		tx.OwnerID,
		tx.BusinessShortCode,
		tx.Amount,
		tx.PhoneNumber,
		tx.AccountReference,
		tx.Description,
		tx.Status,
		tx.ResultDesc,
	).Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating transaction: %w", err)
	}

	return nil
}

func (s *Store) GetTransaction(ctx context.Context, ref transaction.Ref) (*transaction.Transaction, error) {
	where, arg := refClause(ref, 1)
	query := `SELECT ` + selectTransactionColumns + ` FROM mpesa_transactions WHERE ` + where

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM mpesa_transactions WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.KeyID != nil {
		query += fmt.Sprintf(" AND key_id = $%d", argIdx)

		args = append(args, *filter.KeyID)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txs, nil
}

func (s *Store) SetStatusIfPending(ctx context.Context, ref transaction.Ref, status transaction.Status, resultDesc string) (bool, error) {
	where, arg := refClause(ref, 3)
	query := `
		UPDATE mpesa_transactions
		SET status = $1, result_desc = $2, updated_at = NOW()
		WHERE ` + where + ` AND status = 'pending'`

	res, err := s.db.ExecContext(ctx, query, status, resultDesc, arg)
	if err != nil {
		return false, fmt.Errorf("updating status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}

	return n > 0, nil
}
