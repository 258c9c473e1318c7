package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"backend-runstr/internal/logging"
)

// mintGrace is how long a payout row must sit untouched before the retry loop
// may claim it. It outlasts a mint request, so a row claimed by Pay is never
// picked up while that mint is still in flight.
const mintGrace = 5 * time.Minute

// Service records a payout in the ledger before asking the minter for it, so
// every attempt leaves a row whether or not the mint succeeds. The payout ID
// doubles as the mint idempotency key.
type Service struct {
	ledger *Ledger
	minter Minter
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service. A nil minter leaves payouts pending.
func NewService(ledger *Ledger, minter Minter, logger *slog.Logger) *Service {
	return &Service{ledger: ledger, minter: minter, logger: logging.OrDiscard(logger), now: time.Now}
}

func (s *Service) Pay(ctx context.Context, userID, workoutID string, amount int64, memo string) (Payout, error) {
	status := PayoutPending
	if s.minter != nil {
		status = PayoutMinting
	}
	payout, err := s.ledger.Record(ctx, Payout{
		UserID:    userID,
		WorkoutID: workoutID,
		Amount:    amount,
		Memo:      memo,
	}, status)
	if err != nil {
		return Payout{}, fmt.Errorf("record payout: %w", err)
	}
	return s.settle(ctx, payout)
}

// RetryUnsettled re-attempts up to limit unminted payouts and returns how many
// were minted. Each row is claimed first; rows claimed elsewhere are skipped.
func (s *Service) RetryUnsettled(ctx context.Context, limit int) (int, error) {
	if s.minter == nil {
		return 0, nil
	}
	staleBefore := s.now().Add(-mintGrace)
	payouts, err := s.ledger.Unsettled(ctx, staleBefore, limit)
	if err != nil {
		return 0, err
	}
	minted := 0
	for _, p := range payouts {
		if ctx.Err() != nil {
			break
		}
		claimed, err := s.ledger.Claim(ctx, p.ID, staleBefore)
		if err != nil {
			s.logger.Warn("payout claim failed", "payout_id", p.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		if settled, err := s.settle(ctx, p); err == nil && settled.Status == PayoutMinted {
			minted++
		}
	}
	return minted, nil
}

// RunRetries calls RetryUnsettled every interval until ctx is done.
func (s *Service) RunRetries(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.RetryUnsettled(ctx, 50); err != nil {
				s.logger.Warn("payout retry failed", "error", err)
			} else if n > 0 {
				s.logger.Info("payouts retried", "minted", n)
			}
		}
	}
}

func (s *Service) settle(ctx context.Context, p Payout) (Payout, error) {
	if s.minter == nil {
		return p, nil
	}

	if mintErr := s.minter.Mint(ctx, p.ID, p.Amount, p.Memo); mintErr != nil {
		p.Status = PayoutFailed
		p.Error = mintErr.Error()
		p.Attempts++
		if err := s.ledger.MarkStatus(ctx, p.ID, PayoutFailed, p.Error); err != nil {
			s.logger.Error("payout status update failed", "payout_id", p.ID, "error", err)
		}
		s.logger.Warn("mint failed", "payout_id", p.ID, "user_id", p.UserID, "amount", p.Amount, "error", mintErr)
		return p, mintErr
	}

	p.Status = PayoutMinted
	p.Error = ""
	p.Attempts++
	if err := s.ledger.MarkStatus(ctx, p.ID, PayoutMinted, ""); err != nil {
		s.logger.Error("payout status update failed", "payout_id", p.ID, "error", err)
	}
	return p, nil
}
