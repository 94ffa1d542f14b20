package bankaccount

import (
	"fmt"
	"strings"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/security"
)

// NumberLength is the digit count of every generated account number.
const NumberLength = 16

// CheckDigit returns the Luhn check digit for a string of decimal digits.
// Digits are weighted from the right: the rightmost digit counts once, the
// one before it is doubled, and so on.
func CheckDigit(digits string) (int, error) {
	if digits == "" {
		return 0, fmt.Errorf("bankaccount: empty number")
	}
	total := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		ch := digits[i]
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("bankaccount: non-digit %q in number", ch)
		}
		d := int(ch - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		total += d
		double = !double
	}
	return (10 - total%10) % 10, nil
}

// ValidNumber reports whether the last digit of number is the check digit of
// the preceding digits.
func ValidNumber(number string) bool {
	if len(number) < 2 {
		return false
	}
	want, errCheck := CheckDigit(number[:len(number)-1])
	if errCheck != nil {
		return false
	}
	return int(number[len(number)-1]-'0') == want
}

// NumberGenerator builds account numbers from the bank code, the branch code,
// a per-currency code, random fill and a trailing check digit.
type NumberGenerator struct {
	BankCode      string
	BranchCode    string
	CurrencyCodes map[string]string
}

// Prefix returns the fixed leading digits for currency.
func (g NumberGenerator) Prefix(currency string) (string, error) {
	bank := strings.TrimSpace(g.BankCode)
	branch := strings.TrimSpace(g.BranchCode)
	if bank == "" || branch == "" {
		return "", apperr.ErrBankNotConfigured
	}
	code, ok := g.CurrencyCodes[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok || strings.TrimSpace(code) == "" {
		return "", apperr.ErrInvalidCurrency.WithMessage(fmt.Sprintf("Invalid currency: %s", currency))
	}
	return bank + branch + strings.TrimSpace(code), nil
}

// Generate returns a new account number for currency.
func (g NumberGenerator) Generate(currency string) (string, error) {
	prefix, errPrefix := g.Prefix(currency)
	if errPrefix != nil {
		return "", errPrefix
	}
	fill := NumberLength - len(prefix) - 1
	if fill < 1 {
		return "", apperr.ErrBankNotConfigured.WithMessage("Bank, branch and currency codes leave no room for the account number")
	}
	random, errRandom := security.RandomDigits(fill)
	if errRandom != nil {
		return "", fmt.Errorf("bankaccount: random digits: %w", errRandom)
	}
	partial := prefix + random
	check, errCheck := CheckDigit(partial)
	if errCheck != nil {
		return "", errCheck
	}
	return fmt.Sprintf("%s%d", partial, check), nil
}
