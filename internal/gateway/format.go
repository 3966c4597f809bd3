package gateway

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var vndPrinter = message.NewPrinter(language.Vietnamese)

// FormatVND renders an amount for the checkout page, e.g. "500.000 ₫".
func FormatVND(amount int64) string {
	return vndPrinter.Sprintf("%d ₫", amount)
}
