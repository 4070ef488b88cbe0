package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalorders "github.com/angelmondragon/printshop-backend/internal/orders"
	chapawebhook "github.com/angelmondragon/printshop-backend/internal/webhooks/chapa"
	pkgauth "github.com/angelmondragon/printshop-backend/pkg/auth"
	"github.com/angelmondragon/printshop-backend/pkg/config"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

type stubService struct {
	rerenders int
}

func (s *stubService) CreateDraft(context.Context, internalorders.CreateDraftInput) (*internalorders.OrderDTO, error) {
	return &internalorders.OrderDTO{ID: uuid.New(), Status: enums.OrderStatusDraft}, nil
}

func (s *stubService) InitiatePayment(context.Context, uuid.UUID, internalorders.Contact) (*internalorders.InitiateResult, error) {
	return &internalorders.InitiateResult{CheckoutURL: "https://checkout.chapa.co/x"}, nil
}

func (s *stubService) HandleConfirmedPayment(context.Context, uuid.UUID, internalorders.VerifiedPayment, enums.FulfillmentTrigger) (*internalorders.FulfillmentResult, error) {
	return &internalorders.FulfillmentResult{Outcome: internalorders.OutcomeFulfilled}, nil
}

func (s *stubService) ResumeFulfillment(context.Context, uuid.UUID, enums.FulfillmentTrigger) (*internalorders.FulfillmentResult, error) {
	return &internalorders.FulfillmentResult{Outcome: internalorders.OutcomeSkipped}, nil
}

func (s *stubService) Rerender(_ context.Context, orderID uuid.UUID, _ string) (*internalorders.FulfillmentResult, error) {
	s.rerenders++
	return &internalorders.FulfillmentResult{OrderID: orderID, Outcome: internalorders.OutcomeFulfilled}, nil
}

func (s *stubService) Status(_ context.Context, orderID uuid.UUID) (*internalorders.StatusDTO, error) {
	return &internalorders.StatusDTO{OrderID: orderID, Status: enums.OrderStatusPending}, nil
}

func (s *stubService) ResolveDownload(context.Context, uuid.UUID) (*internalorders.DownloadDTO, error) {
	return &internalorders.DownloadDTO{URL: "https://storage.googleapis.com/b/o.pdf", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubService) DeleteArtifact(context.Context, uuid.UUID, string) error { return nil }

func (s *stubService) ExpireArtifact(context.Context, uuid.UUID) error { return nil }

func (s *stubService) Fulfillment(_ context.Context, orderID uuid.UUID) (*internalorders.FulfillmentView, error) {
	return &internalorders.FulfillmentView{Order: internalorders.OrderDTO{ID: orderID}}, nil
}

func (s *stubService) Enrich(_ context.Context, orderID uuid.UUID) (*internalorders.EnrichDTO, error) {
	return &internalorders.EnrichDTO{OrderID: orderID}, nil
}

func (s *stubService) Get(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

type stubWebhook struct{ calls int }

func (s *stubWebhook) Handle(context.Context, []byte, string) (*chapawebhook.Result, error) {
	s.calls++
	return &chapawebhook.Result{TxRef: "abc"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Env: "dev"},
		JWT:    config.JWTConfig{Secret: "secret", Issuer: "printshop", ExpirationMinutes: 5},
		Public: config.PublicConfig{BaseURL: "https://printshop.et"},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *stubService, *stubWebhook, *config.Config) {
	t.Helper()
	cfg := testConfig()
	svc := &stubService{}
	hook := &stubWebhook{}
	router := NewRouter(Deps{
		Config:   cfg,
		Orders:   svc,
		Webhook:  hook,
		Gatherer: prometheus.NewRegistry(),
	})
	return router, svc, hook, cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.OperatorRole) string {
	t.Helper()
	token, err := pkgauth.MintOperatorToken(cfg.JWT, time.Now(), pkgauth.OperatorTokenPayload{Subject: "ops@printshop.et", Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterPublicRoutes(t *testing.T) {
	router, _, hook, _ := newTestRouter(t)
	orderID := uuid.NewString()

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/health/live", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/v1/orders", `{"service_type":"cv_writing","form_data":{}}`, http.StatusCreated},
		{http.MethodGet, "/api/v1/orders/" + orderID + "/status", "", http.StatusOK},
		{http.MethodGet, "/api/v1/orders/" + orderID + "/download", "", http.StatusFound},
		{http.MethodPost, "/api/v1/webhooks/chapa", `{"tx_ref":"abc"}`, http.StatusOK},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))
		assert.Equalf(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
	assert.Equal(t, 1, hook.calls)
}

func TestRouterAdminRequiresOperator(t *testing.T) {
	router, svc, _, cfg := newTestRouter(t)
	base := "/api/v1/admin/orders/" + uuid.NewString()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, base+"/rerender", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	viewer := bearer(t, cfg, enums.OperatorRoleViewer)
	req := httptest.NewRequest(http.MethodGet, base+"/fulfillment", nil)
	req.Header.Set("Authorization", viewer)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, base+"/rerender", nil)
	req.Header.Set("Authorization", viewer)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, svc.rerenders)

	req = httptest.NewRequest(http.MethodPost, base+"/rerender", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.OperatorRoleOperator))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.rerenders)
}

func TestRouterSetsRequestID(t *testing.T) {
	router, _, _, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
