package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/ledger"
)

type accountParams struct {
	AccountNumber string `json:"accountNumber" validate:"required"`
}

type createAccountRequest struct {
	Owner string `json:"owner" validate:"required,max=255"`
}

type transactionRequest struct {
	AccountNumber string           `json:"accountNumber" validate:"required"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
}

type paymentRequest struct {
	AccountNumber string           `json:"accountNumber" validate:"required"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	Payee         string           `json:"payee" validate:"max=255"`
}

type transactionResponse struct {
	Amount       json.Number `json:"amount"`
	Type         string      `json:"type"`
	ApprovalCode string      `json:"approvalCode"`
	CreatedAt    time.Time   `json:"createdAt"`
	Payee        string      `json:"payee,omitempty"`
}

type accountResponse struct {
	AccountNumber string                `json:"accountNumber"`
	Owner         string                `json:"owner"`
	Balance       json.Number           `json:"balance"`
	CreatedAt     time.Time             `json:"createdAt"`
	Transactions  []transactionResponse `json:"transactions"`
}

type receiptResponse struct {
	Status       string `json:"status"`
	ApprovalCode string `json:"approvalCode"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Amounts are written as JSON numbers keeping exact decimal digits
func amountOf(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func newAccountResponse(acc *banking.Account) accountResponse {
	res := accountResponse{
		AccountNumber: acc.Number,
		Owner:         acc.Owner,
		Balance:       amountOf(acc.Balance),
		CreatedAt:     acc.CreatedAt,
		Transactions:  make([]transactionResponse, 0, len(acc.Transactions)),
	}
	for _, trx := range acc.Transactions {
		res.Transactions = append(res.Transactions, transactionResponse{
			Amount:       amountOf(trx.Amount),
			Type:         string(trx.Kind),
			ApprovalCode: trx.ApprovalCode,
			CreatedAt:    trx.CreatedAt,
			Payee:        trx.Payee,
		})
	}
	return res
}

func newReceiptResponse(receipt *ledger.Receipt) receiptResponse {
	return receiptResponse{
		Status:       receipt.Status,
		ApprovalCode: receipt.ApprovalCode,
	}
}
