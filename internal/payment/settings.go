package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
)

const (
	// GatewayID identifies the gateway in the checkout registry and settings store.
	GatewayID = "asppay"
	// MethodTitle is the admin-facing name of the gateway.
	MethodTitle = "AsianSuperPay"
	// MethodDescription is the admin-facing summary of the gateway.
	MethodDescription = "Allow customers to securely pay via AsianSuperPay"

	DefaultTitle       = "Credit Card/Debit Card/UPI"
	DefaultDescription = "Pay securely by Credit or Debit card or Internet Banking through AsianSuperPay."
	DefaultCurrency    = "INR"

	LiveEndpoint    = "https://api.pbmf014056.com"
	SandboxEndpoint = "https://sitapi.pztc979894.com"
)

// Settings holds the merchant configuration of the gateway for a single request.
type Settings struct {
	Enabled     bool   `json:"enabled"`
	Title       string `json:"title" validate:"max=120"`
	Description string `json:"description" validate:"max=500"`
	LiveMode    bool   `json:"livemode"`
	MerchantID  string `json:"merchant_id" validate:"required_if=Enabled true,max=64"`
	MerchantKey string `json:"merchant_key" validate:"required_if=Enabled true,max=256"`
	Currency    string `json:"currency" validate:"required,oneof=INR"`
}

// CountryInfo describes how a supported currency maps onto the processor's country
// code and the timezone used for transaction timestamps.
type CountryInfo struct {
	CountryCode string
	Timezone    string
}

var countryInfo = map[string]CountryInfo{
	"INR": {CountryCode: "IN", Timezone: "Asia/Calcutta"},
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultSettings returns the values used when the store has no stored option.
func DefaultSettings() Settings {
	return Settings{
		Title:       DefaultTitle,
		Description: DefaultDescription,
		Currency:    DefaultCurrency,
	}
}

// SupportedCurrencies lists the currencies selectable for the gateway.
func SupportedCurrencies() []string {
	return []string{"INR"}
}

// Validate checks field constraints.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// Endpoint returns the processor base URL for the configured mode.
func (s Settings) Endpoint() string {
	if s.LiveMode {
		return LiveEndpoint
	}
	return SandboxEndpoint
}

// Country returns the country information for the configured currency.
func (s Settings) Country() (CountryInfo, bool) {
	info, ok := countryInfo[strings.ToUpper(strings.TrimSpace(s.Currency))]
	return info, ok
}

// Location resolves the timezone for the configured currency. A fixed IST offset is
// used when the tz database is unavailable.
func (s Settings) Location() *time.Location {
	info, ok := s.Country()
	if !ok {
		return time.UTC
	}
	loc, err := time.LoadLocation(info.Timezone)
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// Configured reports whether the gateway can accept payments.
func (s Settings) Configured() bool {
	if !s.Enabled {
		return false
	}
	if _, ok := s.Country(); !ok {
		return false
	}
	return strings.TrimSpace(s.MerchantID) != "" && strings.TrimSpace(s.MerchantKey) != ""
}
