package payments

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/printshop-backend/pkg/chapa"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
)

type stubProcessor struct {
	tx    *chapa.Transaction
	err   error
	calls int
}

func (s *stubProcessor) Verify(context.Context, string) (*chapa.Transaction, error) {
	s.calls++
	return s.tx, s.err
}

type stubMismatch struct{ modes []string }

func (s *stubMismatch) IncAmountMismatch(mode string) { s.modes = append(s.modes, mode) }

func successTx(amount int64, currency string) *chapa.Transaction {
	return &chapa.Transaction{
		Status:    "success",
		Amount:    decimal.NewFromInt(amount),
		Currency:  currency,
		Reference: "APfxC1",
		TxRef:     "O1",
		FirstName: "Abebe",
		LastName:  "Kebede",
		Email:     "abebe@example.com",
	}
}

var etb500 = Expectation{Amount: decimal.NewFromInt(500), Currency: enums.CurrencyETB}

func TestVerifySignature(t *testing.T) {
	v, err := NewVerifier(VerifierParams{Secret: "whsec", Processor: &stubProcessor{}})
	require.NoError(t, err)

	body := []byte(`{"tx_ref":"O1","status":"success"}`)
	assert.True(t, v.Verify(context.Background(), body, Sign("whsec", body)))
	assert.False(t, v.Verify(context.Background(), body, Sign("other", body)))
	assert.False(t, v.Verify(context.Background(), append(body, ' '), Sign("whsec", body)))
	assert.False(t, v.Verify(context.Background(), body, ""))
	assert.False(t, v.Verify(context.Background(), body, "not-hex"))
}

func TestVerifyWithoutSecretSkips(t *testing.T) {
	v, err := NewVerifier(VerifierParams{Processor: &stubProcessor{}})
	require.NoError(t, err)
	assert.True(t, v.Verify(context.Background(), []byte("{}"), ""))
}

func TestConfirmSuccess(t *testing.T) {
	v, err := NewVerifier(VerifierParams{Processor: &stubProcessor{tx: successTx(500, "etb")}})
	require.NoError(t, err)

	conf, err := v.Confirm(context.Background(), "O1", etb500)
	require.NoError(t, err)
	assert.Equal(t, "APfxC1", conf.Reference)
	assert.Equal(t, enums.CurrencyETB, conf.Currency)
	assert.Equal(t, "Abebe Kebede", conf.CustomerName)
	assert.False(t, conf.AmountMismatch)
}

func TestConfirmRejectsNonSuccess(t *testing.T) {
	tx := successTx(500, "ETB")
	tx.Status = "pending"
	v, _ := NewVerifier(VerifierParams{Processor: &stubProcessor{tx: tx}})

	_, err := v.Confirm(context.Background(), "O1", etb500)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotVerified))
}

func TestConfirmRejectsForeignTxRef(t *testing.T) {
	processor := &stubProcessor{tx: successTx(500, "ETB")}
	v, _ := NewVerifier(VerifierParams{Processor: processor})

	_, err := v.Confirm(context.Background(), "O2", etb500)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotVerified))
	assert.Equal(t, "transaction reference mismatch", pkgerrors.As(err).Message())
	assert.Equal(t, 1, processor.calls)
}

func TestConfirmCurrencyMismatchIsHardFailure(t *testing.T) {
	v, _ := NewVerifier(VerifierParams{Processor: &stubProcessor{tx: successTx(500, "USD")}})

	_, err := v.Confirm(context.Background(), "O1", etb500)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotVerified))
}

func TestConfirmAmountMismatchLenientByDefault(t *testing.T) {
	metrics := &stubMismatch{}
	v, _ := NewVerifier(VerifierParams{Processor: &stubProcessor{tx: successTx(480, "ETB")}, Metrics: metrics})

	conf, err := v.Confirm(context.Background(), "O1", etb500)
	require.NoError(t, err)
	assert.True(t, conf.AmountMismatch)
	assert.Equal(t, []string{"lenient"}, metrics.modes)
}

func TestConfirmAmountMismatchStrict(t *testing.T) {
	metrics := &stubMismatch{}
	v, _ := NewVerifier(VerifierParams{Processor: &stubProcessor{tx: successTx(480, "ETB")}, StrictAmount: true, Metrics: metrics})

	_, err := v.Confirm(context.Background(), "O1", etb500)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotVerified))
	assert.Equal(t, []string{"strict"}, metrics.modes)
}

func TestConfirmProcessorErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code pkgerrors.Code
	}{
		{"outage", &chapa.APIError{StatusCode: http.StatusServiceUnavailable, Message: "down"}, pkgerrors.CodeDependency},
		{"rejected", &chapa.APIError{StatusCode: http.StatusNotFound, Message: "Invalid transaction"}, pkgerrors.CodeNotVerified},
		{"missing secret", chapa.ErrMissingSecret, pkgerrors.CodeConfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, _ := NewVerifier(VerifierParams{Processor: &stubProcessor{err: tc.err}})
			_, err := v.Confirm(context.Background(), "O1", etb500)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}
}
