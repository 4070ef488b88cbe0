package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/chapa"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

const defaultConfirmTimeout = 15 * time.Second

type transactionVerifier interface {
	Verify(ctx context.Context, txRef string) (*chapa.Transaction, error)
}

type mismatchRecorder interface {
	IncAmountMismatch(mode string)
}

// Expectation is what the order says the customer should have paid.
type Expectation struct {
	Amount   decimal.Decimal
	Currency enums.Currency
}

// Confirmation is a processor-verified payment.
type Confirmation struct {
	TxRef          string
	Reference      string
	Amount         decimal.Decimal
	Currency       enums.Currency
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	AmountMismatch bool
}

type VerifierParams struct {
	Secret       string
	Processor    transactionVerifier
	StrictAmount bool
	Timeout      time.Duration
	Logger       *logger.Logger
	Metrics      mismatchRecorder
}

// Verifier authenticates webhook bodies and re-confirms payments with the processor.
type Verifier struct {
	secret       []byte
	processor    transactionVerifier
	strictAmount bool
	timeout      time.Duration
	logg         *logger.Logger
	metrics      mismatchRecorder
}

func NewVerifier(params VerifierParams) (*Verifier, error) {
	if params.Processor == nil {
		return nil, errors.New("payment processor required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}
	return &Verifier{
		secret:       []byte(strings.TrimSpace(params.Secret)),
		processor:    params.Processor,
		strictAmount: params.StrictAmount,
		timeout:      timeout,
		logg:         params.Logger,
		metrics:      params.Metrics,
	}, nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against the raw body. With no secret configured every body
// passes and a warning is logged on each call.
func (v *Verifier) Verify(ctx context.Context, rawBody []byte, signature string) bool {
	if len(v.secret) == 0 {
		if v.logg != nil {
			v.logg.Warn(ctx, "payments.signature_check_skipped")
		}
		return true
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(provided) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), provided)
}

// Confirm asks the processor for the transaction and checks it against the
// requested reference and the expected price.
func (v *Verifier) Confirm(ctx context.Context, txRef string, exp Expectation) (*Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	tx, err := v.processor.Verify(ctx, txRef)
	if err != nil {
		switch {
		case errors.Is(err, chapa.ErrMissingSecret):
			return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "payment processor secret missing")
		case chapa.IsUnavailable(err):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment processor unavailable")
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotVerified, err, "processor rejected verification")
		}
	}

	if strings.TrimSpace(tx.TxRef) != txRef {
		return nil, pkgerrors.New(pkgerrors.CodeNotVerified, "transaction reference mismatch").
			WithDetails(map[string]any{"expected": txRef, "got": tx.TxRef})
	}

	if !tx.Successful() {
		return nil, pkgerrors.New(pkgerrors.CodeNotVerified, "payment not successful").
			WithDetails(map[string]any{"processor_status": tx.Status})
	}

	currency, err := enums.ParseCurrency(tx.Currency)
	if err != nil || currency != exp.Currency {
		return nil, pkgerrors.New(pkgerrors.CodeNotVerified, "currency mismatch").
			WithDetails(map[string]any{"expected": exp.Currency.String(), "got": tx.Currency})
	}

	conf := &Confirmation{
		TxRef:         tx.TxRef,
		Reference:     tx.Reference,
		Amount:        tx.Amount,
		Currency:      currency,
		CustomerName:  tx.CustomerName(),
		CustomerEmail: strings.TrimSpace(tx.Email),
		CustomerPhone: strings.TrimSpace(tx.PhoneNumber),
	}

	if !currency.SameAmount(tx.Amount, exp.Amount) {
		conf.AmountMismatch = true
		mode := "lenient"
		if v.strictAmount {
			mode = "strict"
		}
		if v.metrics != nil {
			v.metrics.IncAmountMismatch(mode)
		}
		if v.logg != nil {
			v.logg.Warn(v.logg.WithFields(ctx, map[string]any{
				"tx_ref":   txRef,
				"expected": exp.Amount.String(),
				"got":      tx.Amount.String(),
				"mode":     mode,
			}), "payments.amount_mismatch")
		}
		if v.strictAmount {
			return nil, pkgerrors.New(pkgerrors.CodeNotVerified, "amount mismatch").
				WithDetails(map[string]any{"expected": exp.Amount.String(), "got": tx.Amount.String()})
		}
	}

	return conf, nil
}

func (c *Confirmation) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s %s (%s)", c.TxRef, c.Amount.String(), c.Currency, c.Reference)
}
