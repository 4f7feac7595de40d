package controllers

import (
	"net/http"

	"github.com/kiranalabs/kirana-backend/api/responses"
	"github.com/kiranalabs/kirana-backend/api/validators"
	"github.com/kiranalabs/kirana-backend/internal/vouchers"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

type claimVoucherRequest struct {
	Code string `json:"code" validate:"required"`
}

// VoucherClaim takes one unit of a voucher for the authenticated user.
func VoucherClaim(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req claimVoucherRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		claim, err := svc.ClaimVoucher(ctx, user, req.Code)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, claim)
	}
}
