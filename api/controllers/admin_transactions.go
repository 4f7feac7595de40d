package controllers

import (
	"net/http"

	"github.com/kiranalabs/kirana-backend/api/responses"
	"github.com/kiranalabs/kirana-backend/api/validators"
	"github.com/kiranalabs/kirana-backend/internal/transactions"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

// AdminTransactionDetail returns one order with its lines and shipment.
func AdminTransactionDetail(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		txn, err := svc.GetByID(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// AdminConfirmPaid moves a paid order into fulfillment.
func AdminConfirmPaid(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		txn, err := svc.ConfirmPaid(ctx, id, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

type generateReceiptRequest struct {
	CarrierCode      string `json:"carrier_code" validate:"required"`
	DestinationName  string `json:"destination_name" validate:"required"`
	DestinationPhone string `json:"destination_phone" validate:"required"`
	DestinationAddr  string `json:"destination_address" validate:"required"`
	Note             string `json:"note"`
}

// AdminGenerateReceipt registers the shipment with the carrier and moves the
// order out for delivery.
func AdminGenerateReceipt(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req generateReceiptRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		txn, err := svc.GenerateReceipt(ctx, transactions.GenerateReceiptInput{
			TransactionID:    id,
			CarrierCode:      req.CarrierCode,
			DestinationName:  req.DestinationName,
			DestinationPhone: req.DestinationPhone,
			DestinationAddr:  req.DestinationAddr,
			Note:             validators.SanitizeString(req.Note, 500),
		}, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

type cancelTransactionRequest struct {
	Reason string `json:"reason"`
}

// AdminCancelTransaction fails the order and releases everything it holds.
func AdminCancelTransaction(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req cancelTransactionRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		txn, err := svc.Cancel(ctx, id, actor, validators.SanitizeString(req.Reason, 500))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// AdminCompleteTransaction closes out a delivered order.
func AdminCompleteTransaction(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		txn, err := svc.Complete(ctx, id, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}
