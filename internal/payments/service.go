package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/internal/ledgers"
	"github.com/kiranalabs/kirana-backend/internal/transactions"
	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
	"github.com/kiranalabs/kirana-backend/pkg/metrics"
)

// Service reconciles asynchronous payment gateway notifications against the
// order's status and the four resource ledgers. Safe to invoke repeatedly
// with the same payload.
type Service interface {
	HandleNotification(ctx context.Context, notification Notification) (Outcome, error)
}

type service struct {
	client      *db.Client
	repo        transactions.Repository
	coordinator *ledgers.Coordinator
	log         *logger.Logger
	metrics     *metrics.WebhookMetrics
	serverKey   string
}

// NewServiceParams carries the reconciler dependencies.
type NewServiceParams struct {
	Client      *db.Client
	Repo        transactions.Repository
	Coordinator *ledgers.Coordinator
	Log         *logger.Logger
	Metrics     *metrics.WebhookMetrics
	ServerKey   string
}

// NewService wires the payment webhook reconciler.
func NewService(params NewServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("ledger coordinator required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.ServerKey == "" {
		return nil, fmt.Errorf("payment server key required")
	}
	return &service{
		client:      params.Client,
		repo:        params.Repo,
		coordinator: params.Coordinator,
		log:         params.Log,
		metrics:     params.Metrics,
		serverKey:   params.ServerKey,
	}, nil
}

func (s *service) HandleNotification(ctx context.Context, notification Notification) (Outcome, error) {
	ctx = s.log.WithField(ctx, "order_ref", notification.OrderRef)

	if !VerifySignature(notification, s.serverKey) {
		s.metrics.IncOutcome(string(OutcomeRejected))
		s.log.Warn(ctx, "payment notification rejected: signature mismatch")
		return OutcomeRejected, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid notification signature")
	}

	candidate, hasCandidate := mapGatewayStatus(notification.TransactionStatus, notification.FraudStatus)
	if !hasCandidate {
		s.metrics.IncOutcome(string(OutcomeIgnored))
		s.log.Warn(ctx, fmt.Sprintf("payment notification ignored: unmapped gateway status %q", notification.TransactionStatus))
		return OutcomeIgnored, nil
	}

	outcome := OutcomeSkipped
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := repo.FindByCodeForUpdate(ctx, notification.OrderRef)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = OutcomeUnknownOrder
				s.log.Warn(ctx, "payment notification for unknown order, accepting")
				return nil
			}
			return err
		}
		ctx := s.log.WithTransactionID(ctx, txn.ID.String())

		if skip, reason := shouldSkip(txn.Status, candidate); skip {
			outcome = OutcomeSkipped
			s.log.Info(ctx, fmt.Sprintf("payment notification skipped: %s", reason))
			return nil
		}

		apply, err := transactions.Transition(txn.Status, candidate)
		if err != nil {
			return err
		}
		if !apply {
			outcome = OutcomeSkipped
			return nil
		}

		if err := repo.UpdateStatus(ctx, txn.ID, candidate); err != nil {
			return err
		}
		if notification.PaymentType != "" && (txn.PaymentType == nil || *txn.PaymentType != notification.PaymentType) {
			if err := repo.UpdatePaymentType(ctx, txn.ID, notification.PaymentType); err != nil {
				return err
			}
		}

		// Side effects key off the transition actually taken, not the raw
		// payload.
		switch candidate {
		case enums.TransactionStatusPaidWaitingAdmin:
			if err := s.coordinator.CommitAll(ctx, tx, txn); err != nil {
				return err
			}
		case enums.TransactionStatusFailed:
			details, err := repo.FindDetails(ctx, txn.ID)
			if err != nil {
				return err
			}
			if err := s.coordinator.ReleaseAll(ctx, tx, txn, details); err != nil {
				return err
			}
		}

		outcome = OutcomeApplied
		s.log.Info(ctx, fmt.Sprintf("payment notification applied: %s -> %s", txn.Status, candidate))
		return nil
	})
	if err != nil {
		s.metrics.IncOutcome("error")
		return outcome, err
	}

	s.metrics.IncOutcome(string(outcome))
	return outcome, nil
}

// mapGatewayStatus normalizes the gateway status/fraud strings and maps them
// to a candidate order status.
func mapGatewayStatus(transactionStatus, fraudStatus string) (enums.TransactionStatus, bool) {
	status := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))

	switch status {
	case "capture":
		if fraud == "accept" {
			return enums.TransactionStatusPaidWaitingAdmin, true
		}
		return "", false
	case "settlement":
		return enums.TransactionStatusPaidWaitingAdmin, true
	case "pending":
		return enums.TransactionStatusWaitingPayment, true
	case "deny", "cancel", "expire", "failure":
		return enums.TransactionStatusFailed, true
	default:
		return "", false
	}
}

// shouldSkip applies the no-regression guards: a late webhook must never
// touch a terminal or already-progressed order, and never downgrade a paid
// order back to waiting.
func shouldSkip(current, candidate enums.TransactionStatus) (bool, string) {
	if current == enums.TransactionStatusFailed {
		return true, "order already failed"
	}
	switch current {
	case enums.TransactionStatusOnProcess,
		enums.TransactionStatusOnDelivery,
		enums.TransactionStatusCompleted:
		return true, fmt.Sprintf("order already progressed to %s", current)
	}
	if current == enums.TransactionStatusPaidWaitingAdmin && candidate == enums.TransactionStatusWaitingPayment {
		return true, "refusing downgrade from paid to waiting"
	}
	if current == candidate {
		return true, "status unchanged"
	}
	return false, ""
}
