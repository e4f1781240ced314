package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/calder-fi/optio-api/internal/exchange"
	"github.com/calder-fi/optio-api/internal/ledger"
)

// Processor polls the venue for submitted settlements until each reaches a
// terminal state. One background goroutine with a ticker; cancellation comes
// from the server's shutdown context.
type Processor struct {
	db       *Database
	ledger   *ledger.Database
	venue    Venue
	interval time.Duration
}

func NewProcessor(db *Database, ledgerDB *ledger.Database, venue Venue, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Processor{
		db:       db,
		ledger:   ledgerDB,
		venue:    venue,
		interval: interval,
	}
}

// Start runs the polling loop until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_processor").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting settlement processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement processor")
			return
		case <-ticker.C:
			if err := p.pollSubmitted(ctx); err != nil {
				logger.Error().Err(err).Msg("failed to poll submitted settlements")
			}
		}
	}
}

func (p *Processor) pollSubmitted(ctx context.Context) error {
	logger := log.With().Str("component", "settlement_processor").Logger()

	settlements, err := p.db.GetSubmitted()
	if err != nil {
		return err
	}
	if len(settlements) == 0 {
		return nil
	}

	logger.Debug().Int("submitted_count", len(settlements)).Msg("polling venue order statuses")

	for i := range settlements {
		settlement := &settlements[i]

		status, err := p.venue.GetOrderStatus(ctx, settlement.ExternalOrderUID)
		if err != nil {
			// Transport failure: leave the state unchanged, next tick retries.
			logger.Warn().Err(err).
				Str("order_uid", settlement.ExternalOrderUID).
				Msg("venue status unavailable")
			continue
		}

		switch status.Status {
		case exchange.StatusFulfilled:
			settlement.Status = StatusCompleted
			if err := p.ledger.SettlePosition(settlement.TokenID); err != nil {
				logger.Error().Err(err).
					Str("token_id", settlement.TokenID).
					Msg("failed to mark position settled")
				continue
			}
		case exchange.StatusCancelled:
			settlement.Status = StatusCancelled
		case exchange.StatusExpired:
			settlement.Status = StatusExpired
		default:
			// Still open at the venue.
			continue
		}

		if err := p.db.UpdateSettlement(settlement); err != nil {
			logger.Error().Err(err).
				Str("settlement_id", settlement.SettlementID).
				Msg("failed to update settlement status")
			continue
		}

		logger.Info().
			Str("settlement_id", settlement.SettlementID).
			Str("token_id", settlement.TokenID).
			Str("status", settlement.Status).
			Msg("settlement reached venue outcome")
	}

	return nil
}
