package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

const defaultTimeout = 30 * time.Second

type orderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MergeFormData(ctx context.Context, id uuid.UUID, fields map[string]any, generatedAt time.Time) error
}

// EnrichedData is the order's form data as re-read after enrichment.
type EnrichedData struct {
	FormData    models.FormData
	GeneratedAt time.Time
}

type ServiceParams struct {
	Orders    orderStore
	Generator Generator
	Timeout   time.Duration
	Logger    *logger.Logger
}

type Service struct {
	orders    orderStore
	generator Generator
	timeout   time.Duration
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, errors.New("order store required")
	}
	if params.Generator == nil {
		return nil, errors.New("generator required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		orders:    params.Orders,
		generator: params.Generator,
		timeout:   timeout,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Enrich generates prose for the order, merges it into form_data and returns the stored result.
func (s *Service) Enrich(ctx context.Context, orderID uuid.UUID) (*EnrichedData, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	st, err := enums.ParseServiceType(order.ServiceType)
	if err != nil {
		return nil, err
	}
	if !st.NeedsEnrichment() {
		return nil, fmt.Errorf("service type %s is not enriched", st)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := s.now()
	fields, err := s.generator.Generate(genCtx, st, order.FormData)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	generatedAt := s.now().UTC()
	if err := s.orders.MergeFormData(ctx, orderID, fields, generatedAt); err != nil {
		return nil, fmt.Errorf("persist enrichment: %w", err)
	}

	fresh, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":    orderID.String(),
			"fields":      len(fields),
			"duration_ms": time.Since(started).Milliseconds(),
		}), "enrichment.completed")
	}

	return &EnrichedData{FormData: fresh.FormData, GeneratedAt: generatedAt}, nil
}
