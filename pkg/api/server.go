package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// (GET /api/wallets/me)
	GetMyWallet(w http.ResponseWriter, r *http.Request)
	// (GET /api/wallets/me/entries)
	ListMyWalletEntries(w http.ResponseWriter, r *http.Request, params ListMyWalletEntriesParams)
	// (GET /api/orders)
	ListOrders(w http.ResponseWriter, r *http.Request, params ListOrdersParams)
	// (POST /api/orders)
	CreateOrder(w http.ResponseWriter, r *http.Request)
	// (GET /api/orders/{orderID})
	GetOrder(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID)
	// (POST /api/orders/{orderID}/sbp)
	InitiatePayment(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID)
	// (POST /api/orders/{orderID}/sbp/confirm)
	ConfirmPayment(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID)
	// (POST /api/orders/{orderID}/cancel)
	CancelOrder(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID)
	// (POST /api/orders/{orderID}/confirm)
	ConfirmReceipt(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID)
	// (POST /api/orders/{orderID}/dispute)
	OpenDispute(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID)
	// (GET /api/orders/{orderID}/messages)
	ListOrderMessages(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID)
	// (POST /api/orders/{orderID}/messages)
	PostOrderMessage(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID)
	// (GET /api/admin/disputes)
	ListDisputes(w http.ResponseWriter, r *http.Request, params ListDisputesParams)
	// (POST /api/admin/disputes/{disputeID}/resolve)
	ResolveDispute(w http.ResponseWriter, r *http.Request, disputeID openapi_types.UUID)
	// (POST /api/payments/tbank/webhook)
	HandleTBankWebhook(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// InvalidParamFormatError is reported when a parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, secured bool, fn http.HandlerFunc) {
	if secured {
		r = r.WithContext(context.WithValue(r.Context(), BearerAuthScopes, []string{}))
	}
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) bindUUID(w http.ResponseWriter, r *http.Request, name string) (openapi_types.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return id, false
	}
	return id, true
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, false, siw.Handler.GetHealth)
}

// GetMyWallet operation middleware
func (siw *ServerInterfaceWrapper) GetMyWallet(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, true, siw.Handler.GetMyWallet)
}

// ListMyWalletEntries operation middleware
func (siw *ServerInterfaceWrapper) ListMyWalletEntries(w http.ResponseWriter, r *http.Request) {
	var params ListMyWalletEntriesParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListMyWalletEntries(w, r, params)
	})
}

// ListOrders operation middleware
func (siw *ServerInterfaceWrapper) ListOrders(w http.ResponseWriter, r *http.Request) {
	var params ListOrdersParams
	if err := runtime.BindQueryParameter("form", true, false, "role", r.URL.Query(), &params.Role); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "role", Err: err})
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListOrders(w, r, params)
	})
}

// CreateOrder operation middleware
func (siw *ServerInterfaceWrapper) CreateOrder(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, true, siw.Handler.CreateOrder)
}

// orderOperation binds {orderID} and runs a secured order operation.
func (siw *ServerInterfaceWrapper) orderOperation(op func(http.ResponseWriter, *http.Request, openapi_types.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := siw.bindUUID(w, r, "orderID")
		if !ok {
			return
		}
		siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
			op(w, r, orderID)
		})
	}
}

// ListDisputes operation middleware
func (siw *ServerInterfaceWrapper) ListDisputes(w http.ResponseWriter, r *http.Request) {
	var params ListDisputesParams
	if err := runtime.BindQueryParameter("form", true, false, "status", r.URL.Query(), &params.Status); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "status", Err: err})
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListDisputes(w, r, params)
	})
}

// ResolveDispute operation middleware
func (siw *ServerInterfaceWrapper) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	disputeID, ok := siw.bindUUID(w, r, "disputeID")
	if !ok {
		return
	}
	siw.serve(w, r, true, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ResolveDispute(w, r, disputeID)
	})
}

// HandleTBankWebhook operation middleware
func (siw *ServerInterfaceWrapper) HandleTBankWebhook(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, false, siw.Handler.HandleTBankWebhook)
}

// ChiServerOptions configures the mounted routes.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux creates http.Handler with routing matching the API and mounts it on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Get(base+"/health", wrapper.GetHealth)
	r.Get(base+"/api/wallets/me", wrapper.GetMyWallet)
	r.Get(base+"/api/wallets/me/entries", wrapper.ListMyWalletEntries)
	r.Get(base+"/api/orders", wrapper.ListOrders)
	r.Post(base+"/api/orders", wrapper.CreateOrder)
	r.Get(base+"/api/orders/{orderID}", wrapper.orderOperation(si.GetOrder))
	r.Post(base+"/api/orders/{orderID}/sbp", wrapper.orderOperation(si.InitiatePayment))
	r.Post(base+"/api/orders/{orderID}/sbp/confirm", wrapper.orderOperation(si.ConfirmPayment))
	r.Post(base+"/api/orders/{orderID}/cancel", wrapper.orderOperation(si.CancelOrder))
	r.Post(base+"/api/orders/{orderID}/confirm", wrapper.orderOperation(si.ConfirmReceipt))
	r.Post(base+"/api/orders/{orderID}/dispute", wrapper.orderOperation(si.OpenDispute))
	r.Get(base+"/api/orders/{orderID}/messages", wrapper.orderOperation(si.ListOrderMessages))
	r.Post(base+"/api/orders/{orderID}/messages", wrapper.orderOperation(si.PostOrderMessage))
	r.Get(base+"/api/admin/disputes", wrapper.ListDisputes)
	r.Post(base+"/api/admin/disputes/{disputeID}/resolve", wrapper.ResolveDispute)
	r.Post(base+"/api/payments/tbank/webhook", wrapper.HandleTBankWebhook)

	return r
}
