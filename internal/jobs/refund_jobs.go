package jobs

import (
	"context"
	"errors"
	"fmt"

	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/service"
)

const refundBatchSize = 100

// RefundReturnedDeposits credits deposits of returned requests that no longer
// have an unresolved penalty.
func (jr *JobRunner) RefundReturnedDeposits() {
	jr.runWithRecovery("RefundReturnedDeposits", jr.refundReturnedDeposits)
}

func (jr *JobRunner) refundReturnedDeposits(ctx context.Context) (int, error) {
	candidates, err := jr.deps.Wallets.ListRefundCandidates(ctx, refundBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list refund candidates: %w", err)
	}

	refunded := 0
	for i := range candidates {
		req := candidates[i]
		tx, err := jr.deps.Wallet.RefundDeposit(ctx, &req)
		switch {
		case errors.Is(err, service.ErrConflict):
			// refunded between the listing and now
			continue
		case err != nil:
			logger.Warn("Deposit refund failed", "requestID", req.ID, "error", err)
			continue
		case tx == nil:
			continue
		}
		refunded++
		logger.Debug("Deposit refunded", "requestID", req.ID, "accountID", req.RequesterID, "amount", tx.Amount)
	}
	return refunded, nil
}
