package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranalabs/kirana-backend/api/responses"
	"github.com/kiranalabs/kirana-backend/api/validators"
	checkoutsvc "github.com/kiranalabs/kirana-backend/internal/checkout"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

type checkoutLineRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

type checkoutRequest struct {
	Channel      string                `json:"channel" validate:"required"`
	Lines        []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingFee  decimal.Decimal       `json:"shipping_fee"`
	DiscountCode string                `json:"discount_code"`
	VoucherID    *uuid.UUID            `json:"voucher_id"`
	ReferralCode string                `json:"referral_code"`
}

// Checkout creates an order and reserves stock, discount usage, voucher and
// referral in one database transaction.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := checkoutsvc.Input{
			UserID:       user,
			Channel:      enums.SalesChannel(req.Channel),
			ShippingFee:  req.ShippingFee,
			DiscountCode: req.DiscountCode,
			VoucherID:    req.VoucherID,
			ReferralCode: req.ReferralCode,
		}
		for _, line := range req.Lines {
			input.Lines = append(input.Lines, checkoutsvc.Line{VariantID: line.VariantID, Qty: line.Qty})
		}

		txn, err := svc.Checkout(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}
