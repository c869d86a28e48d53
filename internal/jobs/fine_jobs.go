package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/utils"
)

// MarkOverdueFines flips pending fines past their due date to overdue and
// tells the payer.
func (jr *JobRunner) MarkOverdueFines() {
	jr.runWithRecovery("MarkOverdueFines", jr.markOverdueFines)
}

func (jr *JobRunner) markOverdueFines(ctx context.Context) (int, error) {
	fines, err := jr.deps.Fines.MarkOverdue(ctx, jr.now())
	if err != nil {
		return 0, fmt.Errorf("mark overdue fines: %w", err)
	}

	reqs := jr.fineNotifications(ctx, fines, func(f domain.Fine) domain.NotificationRequest {
		return domain.NotificationRequest{
			SubType: domain.NotificationSubTypeFineOverdue,
			Title:   "Fine overdue",
			Message: fmt.Sprintf("Your fine of %s was due on %s and is now overdue.",
				utils.FormatVND(f.FineAmount), f.DueDate.Format(time.DateOnly)),
		}
	})
	jr.send(ctx, reqs)
	return len(fines), nil
}

// SendFineDueReminders reminds payers of pending fines due within the configured window.
func (jr *JobRunner) SendFineDueReminders() {
	jr.runWithRecovery("SendFineDueReminders", jr.sendFineDueReminders)
}

func (jr *JobRunner) sendFineDueReminders(ctx context.Context) (int, error) {
	from := jr.now()
	to := from.AddDate(0, 0, jr.config.Fines.ReminderDaysBefore)

	fines, err := jr.deps.Fines.ListDueBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list fines due: %w", err)
	}

	reqs := jr.fineNotifications(ctx, fines, func(f domain.Fine) domain.NotificationRequest {
		days := int(f.DueDate.Sub(from).Hours() / 24)
		return domain.NotificationRequest{
			SubType: domain.NotificationSubTypeFineDueReminder,
			Title:   "Fine due soon",
			Message: fmt.Sprintf("Your fine of %s is due on %s (%d day(s) left).",
				utils.FormatVND(f.FineAmount), f.DueDate.Format(time.DateOnly), days),
		}
	})
	jr.send(ctx, reqs)
	return len(fines), nil
}

// fineNotifications resolves each fine's payer. Fines whose payer has no
// account are logged and skipped.
func (jr *JobRunner) fineNotifications(ctx context.Context, fines []domain.Fine, build func(domain.Fine) domain.NotificationRequest) []domain.NotificationRequest {
	accounts := make(map[string]*domain.Account)
	var reqs []domain.NotificationRequest
	for _, f := range fines {
		email := f.PayerEmail()
		account, ok := accounts[email]
		if !ok {
			var err error
			account, err = jr.deps.Accounts.GetByEmail(ctx, email)
			if err != nil {
				logger.Warn("Fine payer lookup failed", "fineID", f.ID, "email", email, "error", err)
				continue
			}
			accounts[email] = account
		}

		req := build(f)
		req.UserID = account.ID
		req.Attributes = map[string]string{
			"fine_id":   strconv.Itoa(int(f.ID)),
			"rental_id": strconv.Itoa(int(f.RentalID)),
			"due_date":  f.DueDate.Format(time.DateOnly),
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func (jr *JobRunner) send(ctx context.Context, reqs []domain.NotificationRequest) {
	if len(reqs) == 0 || jr.deps.Notifications == nil {
		return
	}
	if err := jr.deps.Notifications.Send(ctx, reqs); err != nil {
		logger.Warn("Some fine notifications failed", "count", len(reqs), "error", err)
	}
}
