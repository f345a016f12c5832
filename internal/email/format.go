package email

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney renders a mana amount rounded to whole units with thousands
// separators, e.g. "M$ 1,234".
func FormatMoney(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(0)
	if d.IsZero() {
		d = decimal.Zero
	}
	return "M$ " + groupThousands(d.String())
}

// FormatPercent renders a probability in [0,1] as a whole percentage.
func FormatPercent(p float64) string {
	return decimal.NewFromFloat(p).Shift(2).Round(0).String() + "%"
}

// FormatPayout renders a payout as a rounded integer without currency.
func FormatPayout(amount float64) string {
	return decimal.NewFromFloat(amount).Round(0).String()
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
