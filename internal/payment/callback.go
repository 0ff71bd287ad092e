package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StatusSuccess is the processor status code of a successful payment.
const StatusSuccess = 0

var (
	// ErrInvalidCallback is returned for callback bodies that cannot be processed.
	ErrInvalidCallback = errors.New("payment: invalid callback")
	// ErrSessionMismatch is returned when the session order does not match the request.
	ErrSessionMismatch = errors.New("payment: session order mismatch")
)

// CallbackStatus is the processor status code. The processor has been observed
// sending it both as a number and as a numeric string.
type CallbackStatus struct {
	Code  int
	Valid bool
}

// UnmarshalJSON accepts numbers and numeric strings.
func (s *CallbackStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = CallbackStatus{}
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		raw = strings.TrimSpace(str)
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("status %q: %w", raw, ErrInvalidCallback)
	}
	*s = CallbackStatus{Code: code, Valid: true}
	return nil
}

// MarshalJSON writes the code as a number.
func (s CallbackStatus) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(s.Code)), nil
}

// Callback is the webhook payload posted by the processor.
type Callback struct {
	MerchantRef string         `json:"Merchant_Ref"`
	Status      CallbackStatus `json:"Status"`
	OrderRef    string         `json:"Order_Ref"`
	StatusMsg   string         `json:"Status_Msg"`
}

// Succeeded reports whether the processor reported a successful payment.
func (c Callback) Succeeded() bool {
	return c.Status.Valid && c.Status.Code == StatusSuccess
}

// ParseCallback decodes a webhook body. Merchant_Ref and Status are required.
func ParseCallback(body []byte) (Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		if errors.Is(err, ErrInvalidCallback) {
			return Callback{}, err
		}
		return Callback{}, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	cb.MerchantRef = strings.TrimSpace(cb.MerchantRef)
	if cb.MerchantRef == "" {
		return Callback{}, fmt.Errorf("%w: Merchant_Ref is required", ErrInvalidCallback)
	}
	if !cb.Status.Valid {
		return Callback{}, fmt.Errorf("%w: Status is required", ErrInvalidCallback)
	}
	return cb, nil
}

// SuccessNote is the order note recorded for a successful payment.
func SuccessNote(paymentID string) string {
	return "AsianSuperPay payment successful <br/>Payment Id: " + paymentID
}

// FailureNote is the order note recorded for a failed payment.
func FailureNote(statusMsg string) string {
	return "Transaction Failed: " + statusMsg + "<br/>"
}

// Outcome describes what a reconciled callback did to the order.
type Outcome struct {
	OrderID     int64
	Paid        bool
	CartEmptied bool
}
