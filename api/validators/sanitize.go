package validators

import (
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
)

// SanitizeString trims input and truncates it to maxLen runes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 || utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}
	runes := []rune(trimmed)
	return strings.TrimSpace(string(runes[:maxLen]))
}

// ReadRawBody returns the unparsed body, bounded by MaxBodyBytes. Webhook signatures are computed over these bytes.
func ReadRawBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	return payload, nil
}
