package webhooks

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/printshop-backend/api/responses"
	"github.com/angelmondragon/printshop-backend/api/validators"
	chapawebhook "github.com/angelmondragon/printshop-backend/internal/webhooks/chapa"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

const (
	signatureHeader         = "X-Chapa-Signature"
	fallbackSignatureHeader = "Chapa-Signature"
)

type ChapaWebhookService interface {
	Handle(ctx context.Context, rawBody []byte, signature string) (*chapawebhook.Result, error)
}

// ChapaWebhook acknowledges durably accepted deliveries with 200. Authenticity and
// verification failures return 4xx and processor outages 503 so Chapa retries.
func ChapaWebhook(svc ChapaWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := validators.ReadRawBody(w, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		signature := strings.TrimSpace(r.Header.Get(signatureHeader))
		if signature == "" {
			signature = strings.TrimSpace(r.Header.Get(fallbackSignatureHeader))
		}

		res, err := svc.Handle(ctx, payload, signature)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
