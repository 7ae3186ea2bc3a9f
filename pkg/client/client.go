// Package client is a ledger.Service talking to a remote ledger over HTTP
package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/api"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/ledger"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/request"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/router"
)

type transactionDTO struct {
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	ApprovalCode string          `json:"approvalCode"`
	CreatedAt    time.Time       `json:"createdAt"`
	Payee        string          `json:"payee"`
}

type accountDTO struct {
	AccountNumber string           `json:"accountNumber"`
	Owner         string           `json:"owner"`
	Balance       decimal.Decimal  `json:"balance"`
	CreatedAt     time.Time        `json:"createdAt"`
	Transactions  []transactionDTO `json:"transactions"`
}

type receiptDTO struct {
	Status       string `json:"status"`
	ApprovalCode string `json:"approvalCode"`
}

func (dto *accountDTO) toAccount() (*banking.Account, error) {
	acc := &banking.Account{
		Number:       dto.AccountNumber,
		Owner:        dto.Owner,
		Balance:      dto.Balance,
		CreatedAt:    dto.CreatedAt,
		Transactions: make([]banking.Transaction, 0, len(dto.Transactions)),
	}
	for _, trx := range dto.Transactions {
		kind, err := banking.ParseTransactionKind(trx.Type)
		if err != nil {
			return nil, err
		}
		acc.Transactions = append(acc.Transactions, banking.Transaction{
			ApprovalCode:  trx.ApprovalCode,
			Kind:          kind,
			Amount:        trx.Amount,
			CreatedAt:     trx.CreatedAt,
			AccountNumber: dto.AccountNumber,
			Payee:         trx.Payee,
		})
	}
	return acc, nil
}

type ledgerClient struct {
	baseURL  string
	sendOpts []request.SendOpt
}

// remoteErrorOf restores business errors from http errors
func remoteErrorOf(err error) error {
	var httpErr router.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}
	switch httpErr.StatusCode {
	case http.StatusNotFound:
		return errors.Wrap(banking.ErrAccountNotFound, httpErr.Message)
	case http.StatusUnprocessableEntity:
		return errors.Wrap(banking.ErrInsufficientBalance, httpErr.Message)
	case http.StatusBadRequest:
		if httpErr.Message == api.InvalidAmountMessage {
			return errors.Wrap(banking.ErrInvalidAmount, strings.Join(httpErr.Details, "; "))
		}
	}
	return err
}

func (c *ledgerClient) url(path ...string) string {
	return c.baseURL + "/api/v1/account/" + strings.Join(path, "/")
}

func (c *ledgerClient) readAccount(ctx context.Context, factory request.ReqFactory) (*banking.Account, error) {
	var dto accountDTO
	if err := request.Do(ctx, factory, c.sendOpts...).DecodeJSON(&dto); err != nil {
		return nil, remoteErrorOf(err)
	}
	return dto.toAccount()
}

func (c *ledgerClient) post(ctx context.Context, path string, payload interface{}) (*ledger.Receipt, error) {
	var dto receiptDTO
	if err := request.Do(ctx, request.PostJSON(c.url(path), payload), c.sendOpts...).DecodeJSON(&dto); err != nil {
		return nil, remoteErrorOf(err)
	}
	return &ledger.Receipt{Status: dto.Status, ApprovalCode: dto.ApprovalCode}, nil
}

func (c *ledgerClient) OpenAccount(ctx context.Context, owner string) (*banking.Account, error) {
	return c.readAccount(ctx, request.PostJSON(c.url("create"), map[string]string{"owner": owner}))
}

func (c *ledgerClient) GetAccount(ctx context.Context, number string) (*banking.Account, error) {
	return c.readAccount(ctx, request.Get(c.url("account-number", url.PathEscape(number))))
}

func (c *ledgerClient) Credit(ctx context.Context, number string, amount decimal.Decimal) (*ledger.Receipt, error) {
	return c.post(ctx, "credit", map[string]interface{}{"accountNumber": number, "amount": amount})
}

func (c *ledgerClient) Debit(ctx context.Context, number string, amount decimal.Decimal) (*ledger.Receipt, error) {
	return c.post(ctx, "debit", map[string]interface{}{"accountNumber": number, "amount": amount})
}

func (c *ledgerClient) PayBill(ctx context.Context, number string, amount decimal.Decimal, payee string) (*ledger.Receipt, error) {
	return c.post(ctx, "payment", map[string]interface{}{"accountNumber": number, "amount": amount, "payee": payee})
}

// NewLedgerClient returns a service that sends operations to a ledger server
// running at a given base url (e.g http://localhost:8080)
func NewLedgerClient(baseURL string, opts ...request.SendOpt) ledger.Service {
	return &ledgerClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sendOpts: opts,
	}
}
