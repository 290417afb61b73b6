package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"
)

func (s *Service) GetPurchase(ctx context.Context, ref models.PurchaseRef) (*models.Purchase, error) {
	purchase, err := scanPurchase(s.db.QueryRowContext(ctx, queryGetPurchase, ref.ID, string(ref.Kind)))
	if err == sql.ErrNoRows {
		return nil, store.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}
	return purchase, nil
}

// ListExpiredPurchases returns unsettled purchases whose deadline has
// passed, oldest deadlines first, capped at limit.
func (s *Service) ListExpiredPurchases(ctx context.Context, now time.Time, limit int) ([]models.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, queryListExpiredPurchases, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired purchases: %w", err)
	}
	defer rows.Close()

	var purchases []models.Purchase
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, *purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired purchases: %w", err)
	}
	return purchases, nil
}

// ClaimExpired atomically moves an expired open purchase to timeout,
// leaving its freeze in place for the subsequent refund. Returns false
// when another process already claimed or resolved it.
func (s *Service) ClaimExpired(ctx context.Context, ref models.PurchaseRef, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryClaimExpired, ref.ID, string(ref.Kind), now.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim expired purchase: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func scanPurchase(row rowScanner) (*models.Purchase, error) {
	var purchase models.Purchase
	var kindStr, statusStr, priceStr, frozenStr string
	var service, country sql.NullString

	err := row.Scan(&purchase.ID, &kindStr, &purchase.AccountID,
		&priceStr, &frozenStr, &statusStr, &service, &country,
		&purchase.ExpiresAt, &purchase.CreatedAt, &purchase.UpdatedAt)
	if err != nil {
		return nil, err
	}

	purchase.Kind = models.PurchaseKind(kindStr)
	purchase.Status = models.PurchaseStatus(statusStr)
	purchase.Service = service.String
	purchase.Country = country.String

	purchase.Price, err = parseDecimal(priceStr, "price")
	if err != nil {
		return nil, err
	}
	purchase.FrozenAmount, err = parseDecimal(frozenStr, "frozen_amount")
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}
