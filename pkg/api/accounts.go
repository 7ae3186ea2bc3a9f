package api

import (
	"context"
	"net/http"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/ledger"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/diag"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/router"
)

var logger = diag.CreateLogger()

type accountsHandlers struct {
	svc ledger.Service
}

func (h *accountsHandlers) create(w http.ResponseWriter, req *http.Request, tk router.HandlerToolkit) error {
	var payload createAccountRequest
	if err := tk.BindPayload(&payload); err != nil {
		return err
	}
	acc, err := h.svc.OpenAccount(req.Context(), payload.Owner)
	if err != nil {
		return httpErrorOf(err)
	}
	return tk.WriteJSON(newAccountResponse(acc))
}

func (h *accountsHandlers) show(w http.ResponseWriter, req *http.Request, tk router.HandlerToolkit) error {
	var params accountParams
	if err := tk.BindParams().
		PathParam("accountNumber").String(&params.AccountNumber).
		Validate(&params); err != nil {
		return err
	}
	if !banking.IsValidAccountNumber(params.AccountNumber) {
		return router.ParamValidationError(router.PathParam, "accountNumber")
	}
	acc, err := h.svc.GetAccount(req.Context(), params.AccountNumber)
	if err != nil {
		return httpErrorOf(err)
	}
	return tk.WriteJSON(newAccountResponse(acc))
}

func (h *accountsHandlers) credit(w http.ResponseWriter, req *http.Request, tk router.HandlerToolkit) error {
	var payload transactionRequest
	if err := tk.BindPayload(&payload); err != nil {
		return err
	}
	receipt, err := h.svc.Credit(req.Context(), payload.AccountNumber, *payload.Amount)
	if err != nil {
		return httpErrorOf(err)
	}
	return tk.WriteJSON(newReceiptResponse(receipt))
}

func (h *accountsHandlers) debit(w http.ResponseWriter, req *http.Request, tk router.HandlerToolkit) error {
	var payload transactionRequest
	if err := tk.BindPayload(&payload); err != nil {
		return err
	}
	receipt, err := h.svc.Debit(req.Context(), payload.AccountNumber, *payload.Amount)
	if err != nil {
		return httpErrorOf(err)
	}
	return tk.WriteJSON(newReceiptResponse(receipt))
}

func (h *accountsHandlers) payment(w http.ResponseWriter, req *http.Request, tk router.HandlerToolkit) error {
	var payload paymentRequest
	if err := tk.BindPayload(&payload); err != nil {
		return err
	}
	receipt, err := h.svc.PayBill(req.Context(), payload.AccountNumber, *payload.Amount, payload.Payee)
	if err != nil {
		return httpErrorOf(err)
	}
	return tk.WriteJSON(newReceiptResponse(receipt))
}

func ping(w http.ResponseWriter, req *http.Request, tk router.HandlerToolkit) error {
	return tk.WriteJSON(statusResponse{Status: ledger.StatusOK})
}

// SetupRoutes registers ledger routes
func SetupRoutes(r router.Router, svc ledger.Service) {
	logger.Debug(context.Background(), "Registering ledger routes")
	h := &accountsHandlers{svc: svc}
	r.Handle("GET", "/v1/healthcheck/ping", router.ToolkitHandlerFunc(ping))
	r.Handle("POST", "/api/v1/account/create", router.ToolkitHandlerFunc(h.create))
	r.Handle("GET", "/api/v1/account/account-number/:accountNumber", router.ToolkitHandlerFunc(h.show))
	r.Handle("POST", "/api/v1/account/credit", router.ToolkitHandlerFunc(h.credit))
	r.Handle("POST", "/api/v1/account/debit", router.ToolkitHandlerFunc(h.debit))
	r.Handle("POST", "/api/v1/account/payment", router.ToolkitHandlerFunc(h.payment))
}
