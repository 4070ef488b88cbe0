package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeForbidden, status: http.StatusForbidden},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
		{code: CodeNotVerified, status: http.StatusBadRequest, detailsOK: true},
		{code: CodePaymentInit, status: http.StatusBadGateway, retryable: true},
		{code: CodeConfiguration, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s missing public message", tt.code)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "verify transaction")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if !strings.Contains(wrapped.Error(), "boom") {
		t.Fatalf("expected cause in error string, got %q", wrapped.Error())
	}
	if Wrap(CodeInternal, nil, "x").Unwrap() != nil {
		t.Fatalf("wrapping nil should not invent a cause")
	}
}

func TestErrorStringAndDetails(t *testing.T) {
	err := New(CodeStateConflict, "order already paid").WithDetails(map[string]string{"status": "PAID"})
	if err.Error() != "STATE_CONFLICT: order already paid" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if err.Details() == nil {
		t.Fatalf("expected details to be kept")
	}
	var nilErr *Error
	if nilErr.Code() != CodeInternal || nilErr.WithDetails("x") != nil || nilErr.Error() != "" {
		t.Fatalf("nil *Error should be inert")
	}
}

func TestIsCodeLooksThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeNotVerified, "status failed"))
	if !IsCode(err, CodeNotVerified) {
		t.Fatalf("expected IsCode to find PAYMENT_NOT_VERIFIED")
	}
	if IsCode(err, CodeForbidden) {
		t.Fatalf("unexpected match on FORBIDDEN")
	}
	if IsCode(nil, CodeInternal) {
		t.Fatalf("nil error should never match")
	}
}

func TestLogFieldsCapturesPgDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_tx_ref_unique", TableName: "orders"}
	fields := LogFields(Wrap(CodeConflict, pgErr, "insert order"))

	if fields["error_code"] != string(CodeConflict) {
		t.Fatalf("expected conflict code, got %v", fields["error_code"])
	}
	if fields["pg_code"] != "23505" || fields["pg_constraint"] != "orders_tx_ref_unique" || fields["pg_table"] != "orders" {
		t.Fatalf("unexpected pg fields %+v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty pg_detail should be omitted")
	}
	if chain, ok := fields["error_chain"].([]string); !ok || len(chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", fields["error_chain"])
	}
}

type remoteErr struct{ status int }

func (e remoteErr) Error() string       { return fmt.Sprintf("remote %d", e.status) }
func (e remoteErr) UpstreamStatus() int { return e.status }

func TestLogFieldsCapturesUpstreamStatus(t *testing.T) {
	fields := LogFields(Wrap(CodeDependency, remoteErr{status: 502}, "verify transaction"))
	if fields["upstream_status"] != 502 {
		t.Fatalf("expected upstream status, got %+v", fields)
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("unexpected pg fields %+v", fields)
	}
}

func TestLogFieldsNil(t *testing.T) {
	if len(LogFields(nil)) != 0 {
		t.Fatalf("expected no fields for nil error")
	}
}
