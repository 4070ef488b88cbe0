package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/printshop-backend/api/middleware"
	"github.com/angelmondragon/printshop-backend/api/responses"
	"github.com/angelmondragon/printshop-backend/api/validators"
	internalorders "github.com/angelmondragon/printshop-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

type rerenderer interface {
	Rerender(ctx context.Context, orderID uuid.UUID, actor string) (*internalorders.FulfillmentResult, error)
}

type enricher interface {
	Enrich(ctx context.Context, orderID uuid.UUID) (*internalorders.EnrichDTO, error)
}

type artifactDeleter interface {
	DeleteArtifact(ctx context.Context, orderID uuid.UUID, actor string) error
}

type fulfillmentReader interface {
	Fulfillment(ctx context.Context, orderID uuid.UUID) (*internalorders.FulfillmentView, error)
}

func orderParam(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (context.Context, uuid.UUID, bool) {
	orderID, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, uuid.Nil, false
	}
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithOrderID(ctx, orderID.String())
	}
	return ctx, orderID, true
}

// Rerender forces a fresh document. 200 when stored, 202 when another attempt holds the claim.
func Rerender(svc rerenderer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		ctx, orderID, ok := orderParam(w, r, logg)
		if !ok {
			return
		}

		res, err := svc.Rerender(ctx, orderID, middleware.OperatorFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		switch res.Outcome {
		case internalorders.OutcomeInProgress:
			responses.WriteSuccessStatus(w, http.StatusAccepted, res)
		case internalorders.OutcomeRenderFailed:
			details := map[string]any{"attempt": res.Attempt, "failed_stage": res.Stage}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Err, "re-render failed").WithDetails(details))
		default:
			responses.WriteSuccess(w, res)
		}
	}
}

// Enrich runs content enrichment on demand and returns the merged form data.
func Enrich(svc enricher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		ctx, orderID, ok := orderParam(w, r, logg)
		if !ok {
			return
		}

		data, err := svc.Enrich(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, data)
	}
}

func DeleteArtifact(svc artifactDeleter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		ctx, orderID, ok := orderParam(w, r, logg)
		if !ok {
			return
		}

		if err := svc.DeleteArtifact(ctx, orderID, middleware.OperatorFromContext(ctx)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "deleted": true})
	}
}

// Fulfillment returns the order with its attempt ledger.
func Fulfillment(svc fulfillmentReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		ctx, orderID, ok := orderParam(w, r, logg)
		if !ok {
			return
		}

		view, err := svc.Fulfillment(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
