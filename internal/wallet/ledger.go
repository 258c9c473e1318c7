package wallet

import (
	"context"
	"errors"
	"time"

	"backend-runstr/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	// PayoutMinting marks a row claimed by a settler with a mint in flight.
	PayoutMinting PayoutStatus = "minting"
	PayoutMinted  PayoutStatus = "minted"
	PayoutFailed  PayoutStatus = "failed"
)

type Payout struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	WorkoutID string       `json:"workout_id"`
	Amount    int64        `json:"amount"`
	Memo      string       `json:"memo,omitempty"`
	Status    PayoutStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	Attempts  int          `json:"attempts"`
	CreatedAt time.Time    `json:"created_at"`
}

// Ledger keeps one row per payout so failed mints can be retried later.
type Ledger struct {
	db db.Querier
}

func NewLedger(q db.Querier) *Ledger {
	return &Ledger{db: q}
}

// Record inserts a new payout with the given status, normally pending or
// minting when the caller is about to mint it.
func (l *Ledger) Record(ctx context.Context, p Payout, status PayoutStatus) (Payout, error) {
	p.ID = uuid.NewString()
	p.Status = status
	row := l.db.QueryRow(ctx, `
		INSERT INTO reward_payouts (id, user_id, workout_id, amount_sats, memo, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, p.ID, p.UserID, p.WorkoutID, p.Amount, p.Memo, string(p.Status))
	if err := row.Scan(&p.CreatedAt); err != nil {
		return Payout{}, err
	}
	return p, nil
}

func (l *Ledger) MarkStatus(ctx context.Context, id string, status PayoutStatus, errMsg string) error {
	_, err := l.db.Exec(ctx, `
		UPDATE reward_payouts
		SET status=$2, last_error=$3, attempts=attempts+1, updated_at=now()
		WHERE id=$1
	`, id, string(status), errMsg)
	return err
}

// Claim moves a payout to minting so exactly one settler mints it. Pending and
// failed rows are claimable once untouched since staleBefore, as are minting
// rows whose settler never reported back. It reports false when another
// settler holds the row or it is already minted.
func (l *Ledger) Claim(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	var claimed string
	err := l.db.QueryRow(ctx, `
		UPDATE reward_payouts
		SET status='minting', updated_at=now()
		WHERE id=$1 AND status IN ('pending','failed','minting') AND updated_at < $2
		RETURNING id
	`, id, staleBefore).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Unsettled lists unminted payouts untouched since olderThan, oldest first.
func (l *Ledger) Unsettled(ctx context.Context, olderThan time.Time, limit int) ([]Payout, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, user_id, workout_id, amount_sats, COALESCE(memo,''), status, COALESCE(last_error,''), attempts, created_at
		FROM reward_payouts
		WHERE status IN ('pending','failed','minting') AND updated_at < $1
		ORDER BY created_at
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []Payout
	for rows.Next() {
		var p Payout
		var status string
		if err := rows.Scan(&p.ID, &p.UserID, &p.WorkoutID, &p.Amount, &p.Memo, &status, &p.Error, &p.Attempts, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Status = PayoutStatus(status)
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}
