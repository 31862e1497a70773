package model

import (
	"fmt"
	"strings"
)

// AccountType distinguishes how an account's records are retrieved.
type AccountType string

const (
	TypeChecking   AccountType = "checking"
	TypeSavings    AccountType = "savings"
	TypeCreditCard AccountType = "credit_card"
	TypeHolding    AccountType = "holding"
)

// Credential identifies one set of bank login data. It is comparable and
// used by value as the session-cache key: two accounts at the same bank
// with the same login share one cached session.
type Credential struct {
	BankCode  string `yaml:"fints_blz"`
	Username  string `yaml:"fints_username"`
	PIN       string `yaml:"fints_password"`
	Endpoint  string `yaml:"fints_endpoint"`
	ProductID string `yaml:"-"`
}

// AccountConfig maps one bank account to a budgeting-app account.
type AccountConfig struct {
	IBAN         string      `yaml:"iban"`
	AppID        string      `yaml:"per_app_id"`
	FriendlyName string      `yaml:"friendly_name"`
	Type         AccountType `yaml:"account_type"`

	Credential `yaml:",inline"`

	DefaultCleared  bool `yaml:"default_cleared"`
	DefaultApproved bool `yaml:"default_approved"`
}

// String renders like `Checking Account 'Joint' (…6789)`.
func (a AccountConfig) String() string {
	parts := strings.Split(string(a.Type), "_")
	for i, p := range parts {
		parts[i] = capitalizeASCII(p)
	}
	base := strings.Join(parts, " ") + " Account"
	if a.FriendlyName != "" {
		base += fmt.Sprintf(" %q", a.FriendlyName)
	}
	tail := a.IBAN
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return fmt.Sprintf("%s (…%s)", base, tail)
}

// Validate checks the shape of the account configuration.
func (a AccountConfig) Validate() error {
	if !validIBAN(a.IBAN) {
		return fmt.Errorf("account %q: not a valid IBAN", a.IBAN)
	}
	if a.AppID == "" {
		return fmt.Errorf("account %s: per_app_id is required", a.IBAN)
	}
	if a.Username == "" || a.PIN == "" {
		return fmt.Errorf("account %s: fints_username and fints_password are required", a.IBAN)
	}
	if a.BankCode == "" || strings.Trim(a.BankCode, "0123456789") != "" {
		return fmt.Errorf("account %s: fints_blz must be numeric", a.IBAN)
	}
	if !strings.HasPrefix(a.Endpoint, "https://") && !strings.HasPrefix(a.Endpoint, "http://") {
		return fmt.Errorf("account %s: fints_endpoint must be an HTTP(S) URL", a.IBAN)
	}
	switch a.Type {
	case TypeChecking, TypeSavings, TypeCreditCard, TypeHolding:
	case "":
	default:
		return fmt.Errorf("account %s: unknown account_type %q", a.IBAN, a.Type)
	}
	return nil
}

// validIBAN checks length, country prefix and the mod-97 checksum.
func validIBAN(iban string) bool {
	iban = strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	for i, r := range iban {
		switch {
		case r >= 'A' && r <= 'Z':
			// Check digits (positions 2-3) must be numeric.
			if i == 2 || i == 3 {
				return false
			}
		case r >= '0' && r <= '9':
			// Country code (positions 0-1) must be letters.
			if i < 2 {
				return false
			}
		default:
			return false
		}
	}

	// Move the country code and check digits to the end, then compute
	// the ISO 7064 mod-97 remainder digit by digit.
	rearranged := iban[4:] + iban[:4]
	rem := 0
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			n := int(r-'A') + 10
			rem = (rem*100 + n) % 97
		} else {
			rem = (rem*10 + int(r-'0')) % 97
		}
	}
	return rem == 1
}

// capitalizeASCII upper-cases the first byte only ("checking" -> "Checking").
func capitalizeASCII(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
