package router

import (
	"encoding/json"
	"net/http"
)

// ResponseDecorator is a helper function to decorate response
type ResponseDecorator func(w http.ResponseWriter) error

// HandlerToolkit - Collection of various tools to help processing request and build a response
type HandlerToolkit interface {
	BindParams() *ParamsBinder

	// BindPayload decodes JSON body into the receiver and validates it.
	// Malformed or invalid payload results in a 400 HTTPError
	BindPayload(receiver interface{}) error

	// WriteJSON will serialize the payload and write it to the response
	// Optionally use decorators, for example WithStatus
	WriteJSON(payload interface{}, decorators ...ResponseDecorator) error

	// WithStatus is a decorator function that will set particular http status
	// used togeather with WriteJSON
	WithStatus(status int) ResponseDecorator
}

type handlerToolkit struct {
	request        *http.Request
	responseWriter http.ResponseWriter
	validator      *structValidator
	pathParamValue pathParamValueFunc
}

func (h *handlerToolkit) BindParams() *ParamsBinder {
	return &ParamsBinder{
		req:            h.request,
		validator:      h.validator,
		pathParamValue: h.pathParamValue,
	}
}

func (h *handlerToolkit) BindPayload(receiver interface{}) error {
	if err := json.NewDecoder(h.request.Body).Decode(receiver); err != nil {
		logger.WithError(err).Info(h.request.Context(), "Failed to decode payload")
		return BadRequestError("Malformed JSON request", err.Error())
	}
	return h.validator.validateStruct(h.request.Context(), receiver)
}

func (h *handlerToolkit) WriteJSON(payload interface{}, decorators ...ResponseDecorator) error {
	// Headers are sent with the status so content type goes before decorators
	h.responseWriter.Header().Set("content-type", "application/json")
	for _, decorator := range decorators {
		if err := decorator(h.responseWriter); err != nil {
			return err
		}
	}
	return json.NewEncoder(h.responseWriter).Encode(payload)
}

func (h *handlerToolkit) WithStatus(status int) ResponseDecorator {
	return func(w http.ResponseWriter) error {
		w.WriteHeader(status)
		return nil
	}
}

// ToolkitHandlerFunc - a little extension of a builtin HandlerFunc
type ToolkitHandlerFunc func(w http.ResponseWriter, req *http.Request, h HandlerToolkit) error

// ServeHTTP is an implementation of http.Handler. This allows ToolkitHandlerFunc to be used
// in place of the http.Handler
func (f ToolkitHandlerFunc) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	toolkit := handlerToolkit{
		request:        req,
		responseWriter: w,
		validator:      ctx.Value(validatorRequestKey).(*structValidator),
		pathParamValue: ctx.Value(pathParamValueFuncKey).(pathParamValueFunc),
	}
	err := f(w, req, &toolkit)
	if err == nil {
		return
	}
	errorResponse := newHTTPErrorFromError(err)
	if errorResponse.StatusCode >= http.StatusInternalServerError {
		logger.WithError(err).Error(ctx, "Failed to process request")
	} else {
		logger.WithError(err).Info(ctx, "Request rejected with %v", errorResponse.StatusCode)
	}
	errorResponse.Send(w)
}
