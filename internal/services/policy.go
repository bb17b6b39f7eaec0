package services

import (
	"marketplace/internal/apperr"
	"marketplace/internal/auth"
)

type Operation string

const (
	OpBookingCreate   Operation = "booking.create"
	OpBookingPrice    Operation = "booking.price"
	OpBookingReject   Operation = "booking.reject"
	OpBookingConfirm  Operation = "booking.confirm"
	OpBookingComplete Operation = "booking.complete"
	OpBookingPay      Operation = "booking.pay"
	OpBookingReview   Operation = "booking.review"
	OpBookingView     Operation = "booking.view"

	OpWalletDeposit   Operation = "wallet.deposit"
	OpWalletWithdraw  Operation = "wallet.withdraw"
	OpWalletResolve   Operation = "wallet.resolve"
	OpWalletView      Operation = "wallet.view"
	OpWalletReconcile Operation = "wallet.reconcile"

	OpMessageSend Operation = "message.send"
	OpMessageList Operation = "message.list"
	OpMessageRead Operation = "message.read"

	OpProviderVerify Operation = "provider.verify"
	OpAuditView      Operation = "audit.view"
)

var policy = map[Operation][]auth.Role{
	OpBookingCreate:   {auth.RoleCustomer},
	OpBookingPrice:    {auth.RoleProvider},
	OpBookingReject:   {auth.RoleProvider},
	OpBookingConfirm:  {auth.RoleCustomer},
	OpBookingComplete: {auth.RoleProvider},
	OpBookingPay:      {auth.RoleCustomer},
	OpBookingReview:   {auth.RoleCustomer},
	OpBookingView:     {auth.RoleCustomer, auth.RoleProvider, auth.RoleAdmin},

	OpWalletDeposit:   {auth.RoleCustomer, auth.RoleProvider},
	OpWalletWithdraw:  {auth.RoleCustomer, auth.RoleProvider},
	OpWalletResolve:   {auth.RoleAdmin},
	OpWalletView:      {auth.RoleCustomer, auth.RoleProvider, auth.RoleAdmin},
	OpWalletReconcile: {auth.RoleAdmin},

	OpMessageSend: {auth.RoleCustomer, auth.RoleProvider},
	OpMessageList: {auth.RoleCustomer, auth.RoleProvider, auth.RoleAdmin},
	OpMessageRead: {auth.RoleCustomer, auth.RoleProvider},

	OpProviderVerify: {auth.RoleAdmin},
	OpAuditView:      {auth.RoleAdmin},
}

// authorize checks the role half of access control. Ownership is checked by
// each operation once it holds the row.
func authorize(op Operation, actor auth.Actor) error {
	if actor.ID == "" {
		return apperr.Forbidden("%s: unauthenticated", op)
	}
	for _, role := range policy[op] {
		if actor.Role == role {
			return nil
		}
	}
	return apperr.Forbidden("%s is not allowed for role %s", op, actor.Role)
}
