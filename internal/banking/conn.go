// Package banking defines the contract this pipeline expects from a
// FinTS-style protocol client. The wire implementation lives outside
// this module; tests use in-package fakes.
package banking

import (
	"time"

	"github.com/cleanab-dev/cleanab/internal/model"
)

// Mechanism is one multi-factor authentication function offered by the
// endpoint.
type Mechanism struct {
	ID   string // security function code
	Name string
}

// Medium is one named TAN medium (e.g. a registered phone or generator).
type Medium struct {
	Name        string
	PhoneMasked string
	LastUse     string
}

// SEPAAccount identifies one account reachable through a credential.
type SEPAAccount struct {
	IBAN          string
	BIC           string
	AccountNumber string
	BankCode      string
}

// Conn is an authenticated connection to a banking endpoint. A Conn is
// created closed; every retrieval operation wraps its calls in
// Open/Close. Selections made on a Conn (mechanism, medium) survive
// reopening.
type Conn interface {
	// Open establishes a dialog with the endpoint. The handshake
	// itself may raise a challenge; see InitResult.
	Open() error
	Close() error

	// CurrentMechanism returns the selected mechanism id, or "" when
	// none has been chosen yet.
	CurrentMechanism() string
	FetchMechanisms() ([]Mechanism, error)
	SelectMechanism(id string) error

	// MediumRequired reports whether the endpoint insists on a named
	// TAN medium for the selected mechanism.
	MediumRequired() bool
	SelectedMedium() string
	FetchMedia() ([]Medium, error)
	SelectMedium(name string) error

	// InitResult reports the challenge state of the most recent Open
	// handshake.
	InitResult() Result[struct{}]

	Accounts() (Result[[]SEPAAccount], error)
	Transactions(acct SEPAAccount, start, end time.Time) (Result[[]model.RawTransaction], error)
	Holdings(acct SEPAAccount) (Result[[]model.Holding], error)

	// SendTAN answers a pending challenge and returns the payload of
	// the operation that raised it, or a further challenge.
	SendTAN(ch *Challenge, tan string) (Result[any], error)
}

// Dialer creates connections from credentials. The production
// implementation wraps the external protocol library.
type Dialer interface {
	Dial(cred model.Credential) (Conn, error)
}
