package webhooks

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kiranalabs/kirana-backend/api/responses"
	"github.com/kiranalabs/kirana-backend/internal/payments"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

type PaymentNotificationService interface {
	HandleNotification(ctx context.Context, notification payments.Notification) (payments.Outcome, error)
}

// PaymentWebhook receives asynchronous notifications from the payment
// gateway. The gateway keeps retrying on anything but 200, so every outcome
// the reconciler handled internally (skips, unknown orders, unmapped
// statuses) is acknowledged with success; only a signature mismatch is
// refused.
func PaymentWebhook(svc PaymentNotificationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		// Gateway payloads carry many fields beyond the ones reconciled
		// here, so decoding stays lenient about unknown keys.
		var notification payments.Notification
		if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification body"))
			return
		}

		outcome, err := svc.HandleNotification(ctx, notification)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeUnauthorized {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			// Transient reconciliation failures are acknowledged too; the
			// order converges on the gateway's next notification or the
			// expiry sweep.
			if logg != nil {
				logg.Error(ctx, "payment notification processing failed", err)
			}
			responses.WriteSuccess(w, map[string]any{"ok": true})
			return
		}

		responses.WriteSuccess(w, map[string]any{"ok": true, "outcome": string(outcome)})
	}
}
