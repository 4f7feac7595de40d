package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kiranalabs/kirana-backend/api/responses"
	"github.com/kiranalabs/kirana-backend/api/validators"
	"github.com/kiranalabs/kirana-backend/internal/channels"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
	"github.com/kiranalabs/kirana-backend/pkg/pagination"
)

type transferRequest struct {
	VariantID   uuid.UUID `json:"variant_id" validate:"required"`
	FromChannel string    `json:"from_channel" validate:"required"`
	ToChannel   string    `json:"to_channel" validate:"required"`
	Qty         int       `json:"qty" validate:"required,gt=0"`
	Note        string    `json:"note"`
}

// TransferRequest opens a stock transfer in the requested state.
func TransferRequest(svc channels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req transferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		transfer, err := svc.RequestTransfer(ctx, channels.RequestTransferInput{
			VariantID:   req.VariantID,
			FromChannel: req.FromChannel,
			ToChannel:   req.ToChannel,
			Qty:         req.Qty,
			RequestedBy: actor,
			Note:        validators.SanitizeString(req.Note, 500),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, transfer)
	}
}

// TransferApprove marks a requested transfer as approved.
func TransferApprove(svc channels.Service, logg *logger.Logger) http.HandlerFunc {
	return transferAction(logg, svc.Approve)
}

// TransferExecute moves the stock of an approved transfer between channels.
func TransferExecute(svc channels.Service, logg *logger.Logger) http.HandlerFunc {
	return transferAction(logg, svc.Execute)
}

type rejectTransferRequest struct {
	Reason string `json:"reason"`
}

// TransferReject refuses a transfer that has not been executed yet.
func TransferReject(svc channels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathUUID(r, "transferId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req rejectTransferRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		transfer, err := svc.Reject(ctx, id, actor, validators.SanitizeString(req.Reason, 500))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, transfer)
	}
}

// TransferList returns transfers newest-first, optionally filtered by
// status, with cursor pagination.
func TransferList(svc channels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var status *enums.TransferStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			candidate := enums.TransferStatus(raw)
			if !candidate.IsValid() {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown transfer status").
						WithDetails(map[string]any{"status": raw}))
				return
			}
			status = &candidate
		}
		transfers, next, err := svc.ListTransfers(ctx, status, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"transfers": transfers, "next_cursor": next})
	}
}

// ChannelStockList returns the per-channel stock rows for one variant.
func ChannelStockList(svc channels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		variantID, err := pathUUID(r, "variantId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		stock, err := svc.ListChannelStock(ctx, variantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, stock)
	}
}

type setChannelStockRequest struct {
	Channel string `json:"channel" validate:"required"`
	Qty     *int   `json:"qty" validate:"required,gte=0"`
}

// ChannelStockSet sets the absolute quantity for one variant on one channel.
func ChannelStockSet(svc channels.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		variantID, err := pathUUID(r, "variantId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req setChannelStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.SetChannelStock(ctx, variantID, req.Channel, *req.Qty); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

func transferAction(
	logg *logger.Logger,
	action func(ctx context.Context, transferID, approverID uuid.UUID) (*models.StockTransfer, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathUUID(r, "transferId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		transfer, err := action(ctx, id, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, transfer)
	}
}
