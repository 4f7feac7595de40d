package controllers

import (
	"net/http"

	"github.com/kiranalabs/kirana-backend/api/responses"
	"github.com/kiranalabs/kirana-backend/api/validators"
	"github.com/kiranalabs/kirana-backend/internal/inventory"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
)

type restockRequest struct {
	Qty  int    `json:"qty" validate:"required,gt=0"`
	Note string `json:"note"`
}

// InventoryRestock adds stock to a variant outside the order flow.
func InventoryRestock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		variantID, err := pathUUID(r, "variantId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req restockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.RestockVariant(ctx, variantID, req.Qty, validators.SanitizeString(req.Note, 500)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "restocked"})
	}
}

// BundleAvailability reports how many units of a bundle can currently be
// assembled from component stock.
func BundleAvailability(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		variantID, err := pathUUID(r, "variantId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		available, err := svc.Available(ctx, variantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"variant_id": variantID, "available": available})
	}
}
