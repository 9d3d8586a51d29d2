package ledger

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders integer minor units as a grouped decimal string,
// e.g. 1234550 -> "12,345.50". Single base currency, two minor digits.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return amountPrinter.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
