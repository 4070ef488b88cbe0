package chapa

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// InitializeParams describes a hosted checkout.
type InitializeParams struct {
	TxRef       string
	Amount      decimal.Decimal
	Currency    string
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	CallbackURL string
	ReturnURL   string
	Title       string
	Description string
}

type InitializeResult struct {
	CheckoutURL string
}

type initializeRequest struct {
	Amount        string         `json:"amount"`
	Currency      string         `json:"currency"`
	Email         string         `json:"email,omitempty"`
	FirstName     string         `json:"first_name,omitempty"`
	LastName      string         `json:"last_name,omitempty"`
	PhoneNumber   string         `json:"phone_number,omitempty"`
	TxRef         string         `json:"tx_ref"`
	CallbackURL   string         `json:"callback_url,omitempty"`
	ReturnURL     string         `json:"return_url,omitempty"`
	Customization *customization `json:"customization,omitempty"`
}

type customization struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

func (p InitializeParams) validate() error {
	switch {
	case strings.TrimSpace(p.TxRef) == "":
		return errors.New("tx_ref is required")
	case !p.Amount.IsPositive():
		return errors.New("amount must be positive")
	case strings.TrimSpace(p.Currency) == "":
		return errors.New("currency is required")
	}
	return nil
}

func (p InitializeParams) toRequest() initializeRequest {
	req := initializeRequest{
		Amount:      p.Amount.StringFixed(2),
		Currency:    strings.ToUpper(p.Currency),
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		PhoneNumber: p.Phone,
		TxRef:       p.TxRef,
		CallbackURL: p.CallbackURL,
		ReturnURL:   p.ReturnURL,
	}
	if p.Title != "" || p.Description != "" {
		req.Customization = &customization{Title: p.Title, Description: p.Description}
	}
	return req
}

// Transaction is the data block of a verify response.
type Transaction struct {
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"reference"`
	TxRef       string          `json:"tx_ref"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       string          `json:"email"`
	PhoneNumber string          `json:"phone_number"`
}

// Successful reports whether Chapa considers the charge complete.
func (t *Transaction) Successful() bool {
	return t != nil && strings.EqualFold(t.Status, StatusSuccess)
}

// CustomerName joins the verified first and last names.
func (t *Transaction) CustomerName() string {
	if t == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(t.FirstName) + " " + strings.TrimSpace(t.LastName))
}
