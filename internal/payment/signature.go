package payment

import (
	"strings"

	"github.com/noah-isme/toko-asppay/internal/common"
)

// Sign computes the deposit signature: SHA-256 over amount, currency, merchant
// reference, merchant id, transaction date and merchant key, concatenated in that
// order with no separators.
func Sign(amount, currency, merchantRef, merchantID, txnDate, merchantKey string) string {
	var b strings.Builder
	b.Grow(len(amount) + len(currency) + len(merchantRef) + len(merchantID) + len(txnDate) + len(merchantKey))
	b.WriteString(amount)
	b.WriteString(currency)
	b.WriteString(merchantRef)
	b.WriteString(merchantID)
	b.WriteString(txnDate)
	b.WriteString(merchantKey)
	return common.Sha256Hex(b.String())
}
