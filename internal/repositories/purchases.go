// package repositories provides the persistence layer for the purchase ledger.
package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// PurchaseRepository persists completed bundle purchases keyed by
// (user, bundle). Inserts are idempotent: recording an existing purchase is a
// no-op, so a replayed success callback never double-charges the ledger.
type PurchaseRepository struct {
	db *sql.DB
}

// NewPurchaseRepository creates a [PurchaseRepository] over the given database.
func NewPurchaseRepository(db *sql.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Record stores a completed purchase. Duplicate (user, bundle) pairs are ignored.
func (r *PurchaseRepository) Record(userID, setID string, purchasedAt time.Time) error {
	if userID == "" || setID == "" {
		return fmt.Errorf("user id and set id are required")
	}

	query := `
		INSERT OR IGNORE INTO purchases (user_id, set_id, purchase_date) VALUES (?, ?, ?)
	`

	if _, err := r.db.Exec(query, userID, setID, purchasedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to record purchase: %w", err)
	}

	return nil
}

// Has reports whether the user has purchased the bundle.
func (r *PurchaseRepository) Has(userID, setID string) (bool, error) {
	query := `
		SELECT 1 FROM purchases WHERE user_id = ? AND set_id = ?
	`

	var one int
	err := r.db.QueryRow(query, userID, setID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query purchase: %w", err)
	}

	return true, nil
}

// ListSetIDs returns the ids of every bundle the user has purchased.
func (r *PurchaseRepository) ListSetIDs(userID string) ([]string, error) {
	query := `
		SELECT set_id FROM purchases WHERE user_id = ? ORDER BY purchase_date ASC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var setIDs []string
	for rows.Next() {
		var setID string
		if err := rows.Scan(&setID); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		setIDs = append(setIDs, setID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return setIDs, nil
}
