package router

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"gopkg.in/go-playground/validator.v9"
)

// RequestParamType represents type of a request parameter
type RequestParamType string

const (
	// PathParam is a request path parameter type
	PathParam RequestParamType = "path"
)

type structValidator validator.Validate

// newStructValidator returns a validator that reports fields by json names
func newStructValidator() *structValidator {
	vdt := validator.New()
	vdt.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return (*structValidator)(vdt)
}

func (v *structValidator) validateStruct(ctx context.Context, target interface{}) error {
	vdt := (*validator.Validate)(v)
	if err := vdt.Struct(target); err != nil {
		logger.WithError(err).Info(ctx, "Failed to validate params")
		if err, ok := err.(validator.ValidationErrors); ok {
			details := make([]string, 0, len(err))
			for _, fieldErr := range err {
				details = append(details, fmt.Sprintf("%v failed on the '%v' rule", fieldErr.Field(), fieldErr.Tag()))
			}
			return BadRequestError("ValidationFailed", details...)
		}
		return BadRequestError("ValidationFailed: failed to validate params")
	}
	return nil
}

type pathParamValueFunc func(req *http.Request, name string) string

// ParamsBinder binds request params to values
type ParamsBinder struct {
	req            *http.Request
	err            error
	validator      *structValidator
	pathParamValue pathParamValueFunc
}

// PathParam binds param from request path
func (b *ParamsBinder) PathParam(name string) *ParamBinder {
	return &ParamBinder{
		paramType: PathParam,
		name:      name,
		rawValue:  b.pathParamValue(b.req, name),
		binder:    b,
	}
}

// Validate will validate exposed fields of a target structure.
// See https://godoc.org/gopkg.in/go-playground/validator.v9 for more details
func (b *ParamsBinder) Validate(target interface{}) error {
	if b.err != nil {
		return b.err
	}

	return b.validator.validateStruct(b.req.Context(), target)
}

// ParamBinder binds particular param
type ParamBinder struct {
	paramType RequestParamType
	name      string
	rawValue  string
	binder    *ParamsBinder
}

// String bind param as string. Empty value is a validation error
func (pb *ParamBinder) String(receiver *string) *ParamsBinder {
	if pb.binder.err != nil {
		return pb.binder
	}
	if pb.rawValue == "" {
		pb.binder.err = ParamValidationError(pb.paramType, pb.name)
		return pb.binder
	}
	*receiver = pb.rawValue
	return pb.binder
}
