package transactions

import (
	"fmt"

	"github.com/kiranalabs/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
)

// legalEdges is the single authority on which status transitions exist.
// Callers must never write the status column without passing through
// Transition or one of the Assert guards.
var legalEdges = map[enums.TransactionStatus][]enums.TransactionStatus{
	enums.TransactionStatusWaitingPayment: {
		enums.TransactionStatusPaidWaitingAdmin,
		enums.TransactionStatusFailed,
	},
	enums.TransactionStatusPaidWaitingAdmin: {
		enums.TransactionStatusOnProcess,
		enums.TransactionStatusFailed,
	},
	enums.TransactionStatusOnProcess: {
		enums.TransactionStatusOnDelivery,
		enums.TransactionStatusFailed,
	},
	enums.TransactionStatusOnDelivery: {
		enums.TransactionStatusCompleted,
		enums.TransactionStatusFailed,
	},
}

// CanTransition reports whether the edge from -> to exists.
func CanTransition(from, to enums.TransactionStatus) bool {
	for _, candidate := range legalEdges[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition validates the requested edge and returns whether the caller
// should persist the new status. A request whose target equals the current
// status, or that targets a terminal state from a terminal state, is a
// silent no-op so webhook retries stay safe to replay.
func Transition(from, to enums.TransactionStatus) (bool, error) {
	if from == to {
		return false, nil
	}
	if from.IsTerminal() && to.IsTerminal() {
		return false, nil
	}
	if !CanTransition(from, to) {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("transaction cannot move from %s to %s", from, to))
	}
	return true, nil
}

// AssertCanConfirmPaid guards the admin "confirm paid" action.
func AssertCanConfirmPaid(current enums.TransactionStatus) error {
	if current != enums.TransactionStatusPaidWaitingAdmin {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("confirm paid requires status %s, transaction is %s",
				enums.TransactionStatusPaidWaitingAdmin, current))
	}
	return nil
}

// AssertCanGenerateReceipt guards shipment receipt generation.
func AssertCanGenerateReceipt(current enums.TransactionStatus) error {
	if current != enums.TransactionStatusOnProcess {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("generate receipt requires status %s, transaction is %s",
				enums.TransactionStatusOnProcess, current))
	}
	return nil
}

// AssertCanCancel guards operator cancellation. Once the buyer has paid the
// order can no longer be canceled from the admin surface; it has to run
// through the refund flow instead.
func AssertCanCancel(current enums.TransactionStatus) error {
	switch current {
	case enums.TransactionStatusWaitingPayment,
		enums.TransactionStatusOnProcess:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cancel is not allowed while transaction is %s", current))
	}
}

// AssertCanComplete guards the admin force-complete action.
func AssertCanComplete(current enums.TransactionStatus) error {
	if current != enums.TransactionStatusOnDelivery {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("complete requires status %s, transaction is %s",
				enums.TransactionStatusOnDelivery, current))
	}
	return nil
}
