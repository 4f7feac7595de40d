package channels

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranalabs/kirana-backend/pkg/db"
	"github.com/kiranalabs/kirana-backend/pkg/db/models"
	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
	"github.com/kiranalabs/kirana-backend/pkg/pagination"
)

// RequestTransferInput carries a new transfer request.
type RequestTransferInput struct {
	VariantID   uuid.UUID `json:"variant_id" validate:"required"`
	FromChannel string    `json:"from_channel" validate:"required"`
	ToChannel   string    `json:"to_channel" validate:"required"`
	Qty         int       `json:"qty" validate:"required,gt=0"`
	RequestedBy uuid.UUID `json:"requested_by" validate:"required"`
	Note        string    `json:"note"`
}

// Service manages per-channel stock partitions and the transfer workflow:
// requested -> approved -> executed, or rejected from either non-terminal
// state. Stock only moves at execution time.
type Service interface {
	RequestTransfer(ctx context.Context, input RequestTransferInput) (*models.StockTransfer, error)
	Approve(ctx context.Context, transferID, approverID uuid.UUID) (*models.StockTransfer, error)
	Execute(ctx context.Context, transferID, approverID uuid.UUID) (*models.StockTransfer, error)
	Reject(ctx context.Context, transferID, approverID uuid.UUID, reason string) (*models.StockTransfer, error)

	// ListTransfers pages newest-first and returns the cursor for the next
	// page, or "" on the last one.
	ListTransfers(ctx context.Context, status *enums.TransferStatus, params pagination.Params) ([]models.StockTransfer, string, error)
	ListChannelStock(ctx context.Context, variantID uuid.UUID) ([]models.ChannelStock, error)
	SetChannelStock(ctx context.Context, variantID uuid.UUID, channel string, qty int) error
}

type service struct {
	client *db.Client
	repo   Repository
	log    *logger.Logger
	now    func() time.Time
}

// NewServiceParams carries the channel stock dependencies.
type NewServiceParams struct {
	Client *db.Client
	Repo   Repository
	Log    *logger.Logger
	Now    func() time.Time
}

// NewService wires the multi-channel stock service.
func NewService(params NewServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("channels repository required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{client: params.Client, repo: params.Repo, log: params.Log, now: params.Now}, nil
}

func (s *service) RequestTransfer(ctx context.Context, input RequestTransferInput) (*models.StockTransfer, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer quantity must be positive")
	}
	if input.FromChannel == input.ToChannel {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and destination channel must differ")
	}
	if input.VariantID == uuid.Nil || input.RequestedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant and requester are required")
	}

	transfer := &models.StockTransfer{
		VariantID:   input.VariantID,
		FromChannel: input.FromChannel,
		ToChannel:   input.ToChannel,
		Qty:         input.Qty,
		Status:      enums.TransferStatusRequested,
		RequestedBy: input.RequestedBy,
	}
	if input.Note != "" {
		transfer.Note = &input.Note
	}
	if err := s.repo.CreateTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

func (s *service) Approve(ctx context.Context, transferID, approverID uuid.UUID) (*models.StockTransfer, error) {
	var approved *models.StockTransfer
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transfer, err := s.findTransferLocked(ctx, repo, transferID)
		if err != nil {
			return err
		}
		if transfer.Status != enums.TransferStatusRequested {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("only requested transfers can be approved, transfer is %s", transfer.Status))
		}

		if err := repo.UpdateTransfer(ctx, transfer.ID, map[string]any{
			"status":      enums.TransferStatusApproved,
			"approved_by": approverID,
		}); err != nil {
			return err
		}
		transfer.Status = enums.TransferStatusApproved
		transfer.ApprovedBy = &approverID
		approved = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func (s *service) Execute(ctx context.Context, transferID, approverID uuid.UUID) (*models.StockTransfer, error) {
	var executed *models.StockTransfer
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transfer, err := s.findTransferLocked(ctx, repo, transferID)
		if err != nil {
			return err
		}
		if transfer.Status != enums.TransferStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("only approved transfers can be executed, transfer is %s", transfer.Status))
		}

		source, err := repo.FindChannelStockForUpdate(ctx, transfer.VariantID, transfer.FromChannel)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("channel %s has no stock for this variant", transfer.FromChannel))
			}
			return err
		}
		// A shortfall rolls back and leaves the transfer approved so it can
		// be retried after a restock.
		if source.Qty < transfer.Qty {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("channel %s has %d units, transfer needs %d",
					transfer.FromChannel, source.Qty, transfer.Qty))
		}
		if err := repo.AddChannelQty(ctx, source.ID, -transfer.Qty); err != nil {
			return err
		}

		destination, err := repo.FindChannelStockForUpdate(ctx, transfer.VariantID, transfer.ToChannel)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := repo.UpsertChannelStock(ctx, &models.ChannelStock{
				VariantID: transfer.VariantID,
				Channel:   transfer.ToChannel,
				Qty:       transfer.Qty,
			}); err != nil {
				return err
			}
		} else if err := repo.AddChannelQty(ctx, destination.ID, transfer.Qty); err != nil {
			return err
		}

		executedAt := s.now()
		if err := repo.UpdateTransfer(ctx, transfer.ID, map[string]any{
			"status":      enums.TransferStatusExecuted,
			"approved_by": approverID,
			"executed_at": executedAt,
		}); err != nil {
			return err
		}
		transfer.Status = enums.TransferStatusExecuted
		transfer.ApprovedBy = &approverID
		transfer.ExecutedAt = &executedAt
		executed = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithChannel(ctx, executed.ToChannel),
		fmt.Sprintf("stock transfer %s executed: %d units of %s moved from %s",
			executed.ID, executed.Qty, executed.VariantID, executed.FromChannel))
	return executed, nil
}

func (s *service) Reject(ctx context.Context, transferID, approverID uuid.UUID, reason string) (*models.StockTransfer, error) {
	var rejected *models.StockTransfer
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transfer, err := s.findTransferLocked(ctx, repo, transferID)
		if err != nil {
			return err
		}
		if transfer.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("transfer is already %s", transfer.Status))
		}

		updates := map[string]any{
			"status":      enums.TransferStatusRejected,
			"approved_by": approverID,
		}
		if reason != "" {
			updates["reject_reason"] = reason
		}
		if err := repo.UpdateTransfer(ctx, transfer.ID, updates); err != nil {
			return err
		}
		transfer.Status = enums.TransferStatusRejected
		transfer.ApprovedBy = &approverID
		if reason != "" {
			transfer.RejectReason = &reason
		}
		rejected = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *service) findTransferLocked(ctx context.Context, repo Repository, transferID uuid.UUID) (*models.StockTransfer, error) {
	transfer, err := repo.FindTransferForUpdate(ctx, transferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("transfer %s not found", transferID))
		}
		return nil, err
	}
	return transfer, nil
}

func (s *service) ListTransfers(ctx context.Context, status *enums.TransferStatus, params pagination.Params) ([]models.StockTransfer, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	transfers, err := s.repo.ListTransfers(ctx, status, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(transfers) > limit {
		transfers = transfers[:limit]
		last := transfers[len(transfers)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return transfers, next, nil
}

func (s *service) ListChannelStock(ctx context.Context, variantID uuid.UUID) ([]models.ChannelStock, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	return s.repo.ListChannelStock(ctx, variantID)
}

func (s *service) SetChannelStock(ctx context.Context, variantID uuid.UUID, channel string, qty int) error {
	if variantID == uuid.Nil || channel == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id and channel are required")
	}
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "channel quantity cannot be negative")
	}
	return s.repo.UpsertChannelStock(ctx, &models.ChannelStock{
		VariantID: variantID,
		Channel:   channel,
		Qty:       qty,
	})
}
