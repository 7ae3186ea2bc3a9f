package api

import (
	"github.com/pkg/errors"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/router"
)

// InvalidAmountMessage is a message of 400 responses caused by a rejected amount.
// Details carry the reason
const InvalidAmountMessage = "InvalidAmount"

// httpErrorOf maps business errors to http errors. Anything unknown
// is returned as is and becomes 500
func httpErrorOf(err error) error {
	switch {
	case errors.Is(err, banking.ErrAccountNotFound):
		return router.ResourceNotFoundError(err.Error())
	case errors.Is(err, banking.ErrInsufficientBalance):
		return router.UnprocessableEntityError(err.Error())
	case errors.Is(err, banking.ErrInvalidAmount):
		return router.BadRequestError(InvalidAmountMessage, err.Error())
	}
	return err
}
