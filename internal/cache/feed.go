package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
	"iotkit-lending-backend/internal/service"
	"iotkit-lending-backend/internal/utils"
)

// RequestFeed appends borrowing requests published by the student app to the
// approval queue and tells every admin about them.
type RequestFeed struct {
	client   *goredis.Client
	channel  string
	queues   *service.RequestQueues
	accounts repository.AccountRepository
	notifier service.NotificationService
}

func NewRequestFeed(client *goredis.Client, channel string, queues *service.RequestQueues, accounts repository.AccountRepository, notifier service.NotificationService) *RequestFeed {
	return &RequestFeed{client: client, channel: channel, queues: queues, accounts: accounts, notifier: notifier}
}

// Run blocks until ctx is cancelled or the subscription closes.
func (f *RequestFeed) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	logger.Info("Subscribed to borrowing request feed", "channel", f.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("request feed subscription closed")
			}
			if err := f.Handle(ctx, []byte(msg.Payload)); err != nil {
				logger.Warn("Dropped request feed message", "channel", msg.Channel, "error", err)
			}
		}
	}
}

// Handle decodes one feed payload and applies it.
func (f *RequestFeed) Handle(ctx context.Context, payload []byte) error {
	var req domain.BorrowingRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decode feed payload: %w", err)
	}
	if req.ID <= 0 {
		return errors.New("feed payload has no request id")
	}
	if req.Status == "" {
		req.Status = domain.BorrowingStatusPending
	}

	f.queues.Upsert(req)
	if req.Status != domain.BorrowingStatusPending {
		return nil
	}

	admins, err := f.accounts.ListByRole(ctx, domain.AccountRoleAdmin)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	msg := fmt.Sprintf("Borrowing request #%d is waiting for approval.", req.ID)
	if req.DepositAmount > 0 {
		msg += fmt.Sprintf(" Deposit: %s.", utils.FormatVND(req.DepositAmount))
	}

	reqs := make([]domain.NotificationRequest, 0, len(admins))
	for _, a := range admins {
		if !a.IsActive {
			continue
		}
		reqs = append(reqs, domain.NotificationRequest{
			UserID:     a.ID,
			SubType:    domain.NotificationSubTypeNewBorrowRequest,
			Title:      "New borrowing request",
			Message:    msg,
			Attributes: map[string]string{"request_id": strconv.Itoa(int(req.ID))},
		})
	}
	if len(reqs) == 0 {
		return nil
	}
	return f.notifier.Send(ctx, reqs)
}
