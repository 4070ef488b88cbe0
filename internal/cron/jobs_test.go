package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/orders"
	"github.com/angelmondragon/printshop-backend/internal/payments"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

var jobNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

type fakeOrders struct {
	rows         []models.Order
	cutoff       time.Time
	limit        int
	maxAttempts  int
	expired      []uuid.UUID
	expireErr    map[uuid.UUID]error
	resumed      []uuid.UUID
	resumeResult map[uuid.UUID]*orders.FulfillmentResult
	confirmed    map[uuid.UUID]orders.VerifiedPayment
	trigger      enums.FulfillmentTrigger
	checked      map[uuid.UUID]time.Time
}

func (f *fakeOrders) ListArtifactsSignedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	f.cutoff, f.limit = cutoff, limit
	return f.rows, nil
}

func (f *fakeOrders) ListRetryable(_ context.Context, staleBefore time.Time, maxAttempts, limit int) ([]models.Order, error) {
	f.cutoff, f.maxAttempts, f.limit = staleBefore, maxAttempts, limit
	return f.rows, nil
}

func (f *fakeOrders) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	f.cutoff, f.limit = cutoff, limit
	return f.rows, nil
}

func (f *fakeOrders) MarkReconcileChecked(_ context.Context, id uuid.UUID, at time.Time) error {
	if f.checked == nil {
		f.checked = map[uuid.UUID]time.Time{}
	}
	f.checked[id] = at
	return nil
}

func (f *fakeOrders) ExpireArtifact(_ context.Context, id uuid.UUID) error {
	if err := f.expireErr[id]; err != nil {
		return err
	}
	f.expired = append(f.expired, id)
	return nil
}

func (f *fakeOrders) ResumeFulfillment(_ context.Context, id uuid.UUID, trigger enums.FulfillmentTrigger) (*orders.FulfillmentResult, error) {
	f.trigger = trigger
	f.resumed = append(f.resumed, id)
	if res, ok := f.resumeResult[id]; ok {
		if res == nil {
			return nil, errors.New("db gone")
		}
		return res, nil
	}
	return &orders.FulfillmentResult{OrderID: id, Outcome: orders.OutcomeFulfilled}, nil
}

func (f *fakeOrders) HandleConfirmedPayment(_ context.Context, id uuid.UUID, payment orders.VerifiedPayment, trigger enums.FulfillmentTrigger) (*orders.FulfillmentResult, error) {
	if f.confirmed == nil {
		f.confirmed = map[uuid.UUID]orders.VerifiedPayment{}
	}
	f.trigger = trigger
	f.confirmed[id] = payment
	return &orders.FulfillmentResult{OrderID: id, Outcome: orders.OutcomeFulfilled}, nil
}

type fakeConfirmer struct {
	results map[string]error
}

func (f fakeConfirmer) Confirm(_ context.Context, txRef string, exp payments.Expectation) (*payments.Confirmation, error) {
	if err := f.results[txRef]; err != nil {
		return nil, err
	}
	return &payments.Confirmation{TxRef: txRef, Reference: "AP-" + txRef[:4], Amount: exp.Amount, Currency: exp.Currency}, nil
}

func pendingOrder() models.Order {
	id := uuid.New()
	return models.Order{ID: id, TxRef: id.String(), Status: enums.OrderStatusPending, Amount: decimal.NewFromInt(300), Currency: enums.CurrencyETB}
}

func TestArtifactExpiryJobSweepsAndCombinesErrors(t *testing.T) {
	ok, bad := uuid.New(), uuid.New()
	repo := &fakeOrders{
		rows:      []models.Order{{ID: ok}, {ID: bad}},
		expireErr: map[uuid.UUID]error{bad: errors.New("gcs down")},
	}
	jobIface, err := NewArtifactExpiryJob(ArtifactExpiryJobParams{Logger: testLogger(), Orders: repo, Expirer: repo, Retention: 24 * time.Hour})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job := jobIface.(*artifactExpiryJob)
	job.now = func() time.Time { return jobNow }

	err = job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected combined error")
	}
	if !repo.cutoff.Equal(jobNow.Add(-24 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", repo.cutoff)
	}
	if repo.limit != defaultBatchSize {
		t.Fatalf("expected default batch, got %d", repo.limit)
	}
	if len(repo.expired) != 1 || repo.expired[0] != ok {
		t.Fatalf("expected healthy order expired despite sibling failure, got %v", repo.expired)
	}
}

func TestFulfillmentRetryJobResumesWithRetryTrigger(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	repo := &fakeOrders{
		rows: []models.Order{{ID: a}, {ID: b, FulfillmentAttempts: 4}, {ID: c}},
		resumeResult: map[uuid.UUID]*orders.FulfillmentResult{
			b: {OrderID: b, Outcome: orders.OutcomeRenderFailed, Stage: orders.StageRender},
			c: nil,
		},
	}
	jobIface, err := NewFulfillmentRetryJob(FulfillmentRetryJobParams{Logger: testLogger(), Orders: repo, Fulfiller: repo, ClaimLease: 10 * time.Minute, MaxAttempts: 5, BatchSize: 20})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job := jobIface.(*fulfillmentRetryJob)
	job.now = func() time.Time { return jobNow }

	err = job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected the failing resume to surface")
	}
	if repo.trigger != enums.TriggerRetryJob {
		t.Fatalf("expected retry_job trigger, got %s", repo.trigger)
	}
	if len(repo.resumed) != 3 {
		t.Fatalf("expected every order resumed, got %d", len(repo.resumed))
	}
	if !repo.cutoff.Equal(jobNow.Add(-10*time.Minute)) || repo.maxAttempts != 5 || repo.limit != 20 {
		t.Fatalf("unexpected query args %s %d %d", repo.cutoff, repo.maxAttempts, repo.limit)
	}
}

func TestPendingReconcileJobConfirmsPaidOrders(t *testing.T) {
	paid, unpaid, outage := pendingOrder(), pendingOrder(), pendingOrder()
	repo := &fakeOrders{rows: []models.Order{paid, unpaid, outage}}
	confirmer := fakeConfirmer{results: map[string]error{
		unpaid.TxRef: pkgerrors.New(pkgerrors.CodeNotVerified, "payment not successful"),
		outage.TxRef: pkgerrors.New(pkgerrors.CodeDependency, "payment processor unavailable"),
	}}
	jobIface, err := NewPendingReconcileJob(PendingReconcileJobParams{Logger: testLogger(), Orders: repo, Verifier: confirmer, Fulfiller: repo, OlderThan: 15 * time.Minute})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job := jobIface.(*pendingReconcileJob)
	job.now = func() time.Time { return jobNow }

	err = job.Run(context.Background())
	if err == nil || !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected outage surfaced, got %v", err)
	}
	if len(repo.confirmed) != 1 {
		t.Fatalf("expected exactly one order confirmed, got %d", len(repo.confirmed))
	}
	payment, ok := repo.confirmed[paid.ID]
	if !ok {
		t.Fatalf("expected the paid order confirmed")
	}
	if !payment.Amount.Equal(paid.Amount) || payment.Reference == "" {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if repo.trigger != enums.TriggerReconcile {
		t.Fatalf("expected reconcile trigger, got %s", repo.trigger)
	}
	if !repo.cutoff.Equal(jobNow.Add(-15 * time.Minute)) {
		t.Fatalf("unexpected cutoff %s", repo.cutoff)
	}
	if len(repo.checked) != 2 || !repo.checked[unpaid.ID].Equal(jobNow) || !repo.checked[outage.ID].Equal(jobNow) {
		t.Fatalf("expected unsettled orders stamped as checked, got %v", repo.checked)
	}
	if _, ok := repo.checked[paid.ID]; ok {
		t.Fatalf("confirmed order must not be stamped")
	}
}

func TestJobConstructorsRequireDependencies(t *testing.T) {
	if _, err := NewArtifactExpiryJob(ArtifactExpiryJobParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewFulfillmentRetryJob(FulfillmentRetryJobParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewPendingReconcileJob(PendingReconcileJobParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected error")
	}
}
