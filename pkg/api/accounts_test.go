package api

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bxcodec/faker/v3"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/dal"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/dal/mocks"
	tst "github.com/evgeny-myasishchev/ledger.simple-banking/pkg/internal/testing"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/ledger"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/router"
)

type apiFixture struct {
	t      *testing.T
	router router.Router
}

func newAPIFixture(t *testing.T, storage dal.Storage) *apiFixture {
	r := router.CreateRouter()
	SetupRoutes(r, ledger.NewService(ledger.WithStorage(storage)))
	return &apiFixture{t: t, router: r}
}

func newSQLiteFixture(t *testing.T) *apiFixture {
	db, err := dal.OpenSQLiteDb(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	storage, err := dal.NewSQLStorage(dal.WithSQLDb(db))
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.Setup(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		storage.Close()
	})
	return newAPIFixture(t, storage)
}

func (f *apiFixture) do(method string, path string, body io.Reader, receiver interface{}) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(method, path, body))
	if receiver != nil {
		tst.JSONUnmarshalBuffer(w.Body, receiver)
	}
	return w
}

func (f *apiFixture) post(path string, payload interface{}, receiver interface{}) *httptest.ResponseRecorder {
	body, ok := tst.JSONMarshalToReader(f.t, payload)
	if !ok {
		f.t.FailNow()
	}
	return f.do("POST", path, body, receiver)
}

func (f *apiFixture) openAccount(owner string) accountResponse {
	var acc accountResponse
	w := f.post("/api/v1/account/create", map[string]interface{}{"owner": owner}, &acc)
	if w.Code != http.StatusOK {
		f.t.Fatalf("Failed to open account: %v", w.Code)
	}
	return acc
}

func TestPing(t *testing.T) {
	f := newSQLiteFixture(t)
	var got statusResponse
	w := f.do("GET", "/v1/healthcheck/ping", nil, &got)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", got.Status)
}

func TestCreateAccount(t *testing.T) {
	type testCase struct {
		name    string
		payload interface{}
		assert  func(t *testing.T, w *httptest.ResponseRecorder)
	}
	tests := []func() testCase{
		func() testCase {
			owner := faker.Name()
			return testCase{
				name:    "valid",
				payload: map[string]interface{}{"owner": owner},
				assert: func(t *testing.T, w *httptest.ResponseRecorder) {
					assert.Equal(t, http.StatusOK, w.Code)
					var got map[string]interface{}
					tst.JSONUnmarshalBuffer(w.Body, &got)
					assert.Equal(t, owner, got["owner"])
					assert.Equal(t, float64(0), got["balance"])
					assert.Equal(t, []interface{}{}, got["transactions"])
					assert.True(t, banking.IsValidAccountNumber(got["accountNumber"].(string)))
					assert.NotEmpty(t, got["createdAt"])
				},
			}
		},
		func() testCase {
			return testCase{
				name:    "missing owner",
				payload: map[string]interface{}{},
				assert: func(t *testing.T, w *httptest.ResponseRecorder) {
					assert.Equal(t, http.StatusBadRequest, w.Code)
					var got router.HTTPError
					tst.JSONUnmarshalBuffer(w.Body, &got)
					assert.Equal(t, []string{"owner failed on the 'required' rule"}, got.Details)
				},
			}
		},
	}
	for _, tt := range tests {
		tt := tt()
		t.Run(tt.name, func(t *testing.T) {
			f := newSQLiteFixture(t)
			w := f.post("/api/v1/account/create", tt.payload, nil)
			tt.assert(t, w)
		})
	}
}

func TestAccountFlow(t *testing.T) {
	f := newSQLiteFixture(t)
	acc := f.openAccount("John Doe")

	var credit receiptResponse
	w := f.post("/api/v1/account/credit", map[string]interface{}{
		"accountNumber": acc.AccountNumber,
		"amount":        1000.0,
	}, &credit)
	if !assert.Equal(t, http.StatusOK, w.Code) {
		return
	}
	assert.Equal(t, "OK", credit.Status)
	assert.NotEmpty(t, credit.ApprovalCode)

	var debit receiptResponse
	w = f.post("/api/v1/account/debit", map[string]interface{}{
		"accountNumber": acc.AccountNumber,
		"amount":        "50.0",
	}, &debit)
	if !assert.Equal(t, http.StatusOK, w.Code) {
		return
	}

	payee := faker.Name()
	var payment receiptResponse
	w = f.post("/api/v1/account/payment", map[string]interface{}{
		"accountNumber": acc.AccountNumber,
		"amount":        96.5,
		"payee":         payee,
	}, &payment)
	if !assert.Equal(t, http.StatusOK, w.Code) {
		return
	}

	var got accountResponse
	w = f.do("GET", "/api/v1/account/account-number/"+acc.AccountNumber, nil, &got)
	if !assert.Equal(t, http.StatusOK, w.Code) {
		return
	}
	assert.Equal(t, acc.AccountNumber, got.AccountNumber)
	assert.Equal(t, "John Doe", got.Owner)
	assert.Equal(t, "853.5", got.Balance.String())
	if assert.Len(t, got.Transactions, 3) {
		assert.Equal(t, "Deposit", got.Transactions[0].Type)
		assert.Equal(t, "1000", got.Transactions[0].Amount.String())
		assert.Equal(t, credit.ApprovalCode, got.Transactions[0].ApprovalCode)
		assert.Equal(t, "Withdrawal", got.Transactions[1].Type)
		assert.Equal(t, debit.ApprovalCode, got.Transactions[1].ApprovalCode)
		assert.Equal(t, "PhoneBillPayment", got.Transactions[2].Type)
		assert.Equal(t, payment.ApprovalCode, got.Transactions[2].ApprovalCode)
		assert.Equal(t, payee, got.Transactions[2].Payee)
	}
}

func TestTransactionErrors(t *testing.T) {
	type testCase struct {
		name       string
		path       string
		payload    func(number string) interface{}
		wantStatus int
		assert     func(t *testing.T, got router.HTTPError)
	}
	tests := []func() testCase{
		func() testCase {
			return testCase{
				name: "insufficient balance",
				path: "/api/v1/account/debit",
				payload: func(number string) interface{} {
					return map[string]interface{}{"accountNumber": number, "amount": 5000}
				},
				wantStatus: http.StatusUnprocessableEntity,
			}
		},
		func() testCase {
			return testCase{
				name: "unknown account",
				path: "/api/v1/account/credit",
				payload: func(number string) interface{} {
					return map[string]interface{}{
						"accountNumber": banking.FormatAccountNumber(100000 + rand.Intn(900000)),
						"amount":        10,
					}
				},
				wantStatus: http.StatusNotFound,
			}
		},
		func() testCase {
			return testCase{
				name: "negative amount",
				path: "/api/v1/account/payment",
				payload: func(number string) interface{} {
					return map[string]interface{}{"accountNumber": number, "amount": -10}
				},
				wantStatus: http.StatusBadRequest,
				assert: func(t *testing.T, got router.HTTPError) {
					assert.Equal(t, InvalidAmountMessage, got.Message)
					assert.Len(t, got.Details, 1)
				},
			}
		},
		func() testCase {
			return testCase{
				name: "missing amount",
				path: "/api/v1/account/credit",
				payload: func(number string) interface{} {
					return map[string]interface{}{"accountNumber": number}
				},
				wantStatus: http.StatusBadRequest,
				assert: func(t *testing.T, got router.HTTPError) {
					assert.Equal(t, []string{"amount failed on the 'required' rule"}, got.Details)
				},
			}
		},
		func() testCase {
			return testCase{
				name: "malformed amount",
				path: "/api/v1/account/debit",
				payload: func(number string) interface{} {
					return map[string]interface{}{"accountNumber": number, "amount": "ten"}
				},
				wantStatus: http.StatusBadRequest,
				assert: func(t *testing.T, got router.HTTPError) {
					assert.Equal(t, "Malformed JSON request", got.Message)
				},
			}
		},
	}
	for _, tt := range tests {
		tt := tt()
		t.Run(tt.name, func(t *testing.T) {
			f := newSQLiteFixture(t)
			acc := f.openAccount(faker.Name())
			f.post("/api/v1/account/credit", map[string]interface{}{"accountNumber": acc.AccountNumber, "amount": 1000}, nil)

			var got router.HTTPError
			w := f.post(tt.path, tt.payload(acc.AccountNumber), &got)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			if tt.assert != nil {
				tt.assert(t, got)
			}

			var after accountResponse
			f.do("GET", "/api/v1/account/account-number/"+acc.AccountNumber, nil, &after)
			assert.Equal(t, "1000", after.Balance.String())
			assert.Len(t, after.Transactions, 1)
		})
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	f := newSQLiteFixture(t)
	var got router.HTTPError
	w := f.do("GET", "/api/v1/account/account-number/"+banking.FormatAccountNumber(100000+rand.Intn(900000)), nil, &got)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, strings.Contains(got.Message, "Account not found"), "unexpected message: %v", got.Message)
}

func TestGetAccount_MalformedNumber(t *testing.T) {
	f := newSQLiteFixture(t)
	for _, number := range []string{"123456", "12-3456", "abc-def", "1234-567"} {
		var got router.HTTPError
		w := f.do("GET", "/api/v1/account/account-number/"+number, nil, &got)
		assert.Equal(t, http.StatusBadRequest, w.Code, number)
		assert.Equal(t, "ValidationFailed: path parameter 'accountNumber' is invalid", got.Message, number)
	}
}

func TestStorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	storage := mocks.NewMockStorage(ctrl)
	number := banking.FormatAccountNumber(100000 + rand.Intn(900000))
	storage.EXPECT().FindAccountByNumber(gomock.Any(), number).Return(nil, errors.New("storage is down"))

	f := newAPIFixture(t, storage)
	var got router.HTTPError
	w := f.do("GET", "/api/v1/account/account-number/"+number, nil, &got)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal error", got.Message)
}
