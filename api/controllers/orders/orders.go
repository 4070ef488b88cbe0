package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/printshop-backend/api/responses"
	"github.com/angelmondragon/printshop-backend/api/validators"
	internalorders "github.com/angelmondragon/printshop-backend/internal/orders"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

type draftCreator interface {
	CreateDraft(ctx context.Context, input internalorders.CreateDraftInput) (*internalorders.OrderDTO, error)
}

type paymentInitiator interface {
	InitiatePayment(ctx context.Context, orderID uuid.UUID, contact internalorders.Contact) (*internalorders.InitiateResult, error)
}

type statusReader interface {
	Status(ctx context.Context, orderID uuid.UUID) (*internalorders.StatusDTO, error)
}

type downloadResolver interface {
	ResolveDownload(ctx context.Context, orderID uuid.UUID) (*internalorders.DownloadDTO, error)
}

type createOrderRequest struct {
	ServiceType   string          `json:"service_type" validate:"required,max=64"`
	FormData      models.FormData `json:"form_data" validate:"required"`
	CustomerName  string          `json:"customer_name" validate:"omitempty,max=200"`
	CustomerEmail string          `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone string          `json:"customer_phone" validate:"omitempty,phone"`
}

type initiatePaymentRequest struct {
	OrderID   string `json:"order_id" validate:"required,uuid"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone"`
}

// CreateDraft stores the storefront's intake form as a DRAFT order.
func CreateDraft(svc draftCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateDraft(r.Context(), internalorders.CreateDraftInput{
			ServiceType:   req.ServiceType,
			FormData:      req.FormData,
			CustomerName:  validators.SanitizeString(req.CustomerName, 200),
			CustomerEmail: strings.TrimSpace(req.CustomerEmail),
			CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// InitiatePayment opens a hosted checkout for the order and returns its url.
func InitiatePayment(svc paymentInitiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var req initiatePaymentRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}

		res, err := svc.InitiatePayment(ctx, orderID, internalorders.Contact{
			FirstName: validators.SanitizeString(req.FirstName, 100),
			LastName:  validators.SanitizeString(req.LastName, 100),
			Email:     strings.TrimSpace(req.Email),
			Phone:     strings.TrimSpace(req.Phone),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}

// Status is polled by the success page until the document is ready.
func Status(svc statusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.Status(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, status)
	}
}

// Download redirects to a live signed url. ?format=json returns the url instead.
func Download(svc downloadResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}

		link, err := svc.ResolveDownload(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		if strings.EqualFold(r.URL.Query().Get("format"), "json") {
			responses.WriteSuccess(w, link)
			return
		}
		http.Redirect(w, r, link.URL, http.StatusFound)
	}
}
