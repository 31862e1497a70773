// Package session owns the authenticated-session lifecycle: the
// multi-factor login state machine, the bounded per-credential session
// cache and the challenge-aware retrieval calls.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cleanab-dev/cleanab/internal/banking"
	"github.com/cleanab-dev/cleanab/internal/model"
)

// DefaultCacheSize bounds how many credentials keep a cached session.
const DefaultCacheSize = 8

// maxChallengeRounds caps TAN resubmission so a misbehaving endpoint
// cannot loop forever. Each round costs one human interaction.
const maxChallengeRounds = 10

// Session is a cached, authenticated session for one credential. The
// cache owns it; callers borrow it for single operations. The
// underlying connection is closed between operations — cached means the
// credential's selections and account list are remembered, not that the
// dialog stays open.
type Session struct {
	cred      model.Credential
	conn      banking.Conn
	Mechanism string
	Medium    string
	Accounts  []banking.SEPAAccount
}

// FindAccount returns the SEPA account with the given IBAN.
func (s *Session) FindAccount(iban string) (banking.SEPAAccount, bool) {
	for _, acct := range s.Accounts {
		if acct.IBAN == iban {
			return acct, true
		}
	}
	return banking.SEPAAccount{}, false
}

// Manager runs the authentication state machine and retrievals. One
// global mutex serializes all cache access, every interactive challenge
// and holdings retrieval end to end: interactive TAN entry cannot
// safely interleave with anything else sharing the terminal.
type Manager struct {
	mu        sync.Mutex
	dialer    banking.Dialer
	presenter Presenter
	cache     *lru.Cache[model.Credential, *Session]
	log       *log.Logger
}

// NewManager creates a Manager with a session cache of the given
// capacity (DefaultCacheSize when zero).
func NewManager(dialer banking.Dialer, presenter Presenter, capacity int, logger *log.Logger) (*Manager, error) {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	m := &Manager{dialer: dialer, presenter: presenter, log: logger}
	cache, err := lru.NewWithEvict(capacity, func(cred model.Credential, _ *Session) {
		m.log.Debug("evicting cached session", "username", cred.Username, "bank", cred.BankCode)
	})
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// Acquire returns the cached session for cred, running the full login
// state machine on a cache miss. Evicted credentials re-authenticate
// from scratch on their next use.
func (m *Manager) Acquire(cred model.Credential) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.cache.Get(cred); ok {
		return sess, nil
	}
	if m.dialer == nil {
		return nil, banking.ErrNoDriver
	}

	m.log.Info("Opening session", "username", cred.Username, "endpoint", cred.Endpoint)
	conn, err := m.dialer.Dial(cred)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	sess := &Session{cred: cred, conn: conn}

	if err := m.withOpen(conn, func() error {
		if err := m.bootstrap(conn, sess); err != nil {
			return err
		}
		// The dialog handshake itself may demand a TAN.
		if _, err := await(m, conn, conn.InitResult()); err != nil {
			return err
		}

		res, err := conn.Accounts()
		if err != nil {
			return &TransportError{Op: "fetch accounts", Err: err}
		}
		sess.Accounts, err = await(m, conn, res)
		return err
	}); err != nil {
		return nil, err
	}

	m.cache.Add(cred, sess)
	return sess, nil
}

// Transactions retrieves the account's transactions over a scoped
// connection. Failures are logged and yield an empty result: the caller
// treats that as "no new data", never as a run-level error. The global
// lock is only taken for an embedded challenge sub-protocol, not for
// the data fetch itself.
func (m *Manager) Transactions(sess *Session, acct banking.SEPAAccount, start, end time.Time) []model.RawTransaction {
	var records []model.RawTransaction
	err := m.withOpen(sess.conn, func() error {
		if err := m.bootstrap(sess.conn, sess); err != nil {
			return err
		}
		res, err := sess.conn.Transactions(acct, start, end)
		if err != nil {
			return &TransportError{Op: "fetch transactions", Err: err}
		}
		records, err = awaitLocked(m, sess.conn, res)
		return err
	})
	if err != nil {
		m.log.Error("Transaction retrieval failed", "iban", acct.IBAN, "err", err)
		return nil
	}
	return records
}

// Holdings retrieves the account's holdings. Unlike Transactions it
// holds the global lock for the whole call.
func (m *Manager) Holdings(sess *Session, acct banking.SEPAAccount) []model.Holding {
	m.mu.Lock()
	defer m.mu.Unlock()

	var holdings []model.Holding
	err := m.withOpen(sess.conn, func() error {
		if err := m.bootstrap(sess.conn, sess); err != nil {
			return err
		}
		res, err := sess.conn.Holdings(acct)
		if err != nil {
			return &TransportError{Op: "fetch holdings", Err: err}
		}
		holdings, err = await(m, sess.conn, res)
		return err
	})
	if err != nil {
		m.log.Error("Holdings retrieval failed", "iban", acct.IBAN, "err", err)
		return nil
	}
	return holdings
}

// CacheLen reports how many sessions are currently cached.
func (m *Manager) CacheLen() int {
	return m.cache.Len()
}

// withOpen brackets fn in a scoped Open/Close of the connection.
func (m *Manager) withOpen(conn banking.Conn, fn func() error) error {
	if err := conn.Open(); err != nil {
		return &TransportError{Op: "open dialog", Err: err}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			m.log.Debug("closing dialog", "err", err)
		}
	}()
	return fn()
}

// bootstrap selects the TAN mechanism and medium if the connection does
// not have them yet. No-op for connections carrying cached selections.
func (m *Manager) bootstrap(conn banking.Conn, sess *Session) error {
	if conn.CurrentMechanism() == "" {
		mechanisms, err := conn.FetchMechanisms()
		if err != nil {
			return &TransportError{Op: "fetch mechanisms", Err: err}
		}
		switch len(mechanisms) {
		case 0:
			return fmt.Errorf("%w: endpoint offered no TAN mechanisms", ErrAuthFailed)
		case 1:
			if err := conn.SelectMechanism(mechanisms[0].ID); err != nil {
				return fmt.Errorf("selecting mechanism: %w", err)
			}
		default:
			options := make([]string, len(mechanisms))
			for i, mech := range mechanisms {
				options[i] = fmt.Sprintf("Function %s: %s", mech.ID, mech.Name)
			}
			choice, err := m.presenter.Choose("Multiple TAN mechanisms available. Which one do you prefer?", options)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrAuthFailed, err)
			}
			if err := conn.SelectMechanism(mechanisms[choice].ID); err != nil {
				return fmt.Errorf("selecting mechanism: %w", err)
			}
		}
	}
	sess.Mechanism = conn.CurrentMechanism()

	if conn.MediumRequired() && conn.SelectedMedium() == "" {
		m.log.Info("We need the name of the TAN medium, fetching them from the bank")
		media, err := conn.FetchMedia()
		if err != nil {
			return &TransportError{Op: "fetch media", Err: err}
		}
		switch len(media) {
		case 0:
			return ErrNoMedia
		case 1:
			if err := conn.SelectMedium(media[0].Name); err != nil {
				return fmt.Errorf("selecting medium: %w", err)
			}
		default:
			options := make([]string, len(media))
			for i, medium := range media {
				options[i] = fmt.Sprintf("Medium %s: Phone no. %s, last used %s",
					medium.Name, medium.PhoneMasked, medium.LastUse)
			}
			choice, err := m.presenter.Choose("Multiple TAN media available. Which one do you prefer?", options)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrAuthFailed, err)
			}
			if err := conn.SelectMedium(media[choice].Name); err != nil {
				return fmt.Errorf("selecting medium: %w", err)
			}
		}
	}
	sess.Medium = conn.SelectedMedium()
	return nil
}

// await drives the challenge sub-protocol: present, resubmit, repeat
// until the endpoint yields data or the round bound is hit. Callers
// must hold the global lock.
func await[T any](m *Manager, conn banking.Conn, res banking.Result[T]) (T, error) {
	var zero T
	for round := 0; ; round++ {
		ch, ok := res.TAN()
		if !ok {
			return res.Data(), nil
		}
		if round >= maxChallengeRounds {
			return zero, fmt.Errorf("%w: %w after %d rounds", ErrAuthFailed, ErrChallengeLimit, round)
		}
		if round > 0 {
			m.log.Warn("TAN was not accepted, please try again")
		}

		answer, err := m.presenter.Present(ch)
		if err != nil {
			return zero, fmt.Errorf("%w: reading TAN: %v", ErrAuthFailed, err)
		}
		next, err := conn.SendTAN(ch, answer)
		if err != nil {
			return zero, &TransportError{Op: "send TAN", Err: err}
		}
		res, err = banking.Narrow[T](next)
		if err != nil {
			return zero, err
		}
	}
}

// awaitLocked takes the global lock only when a challenge is actually
// pending, keeping plain transaction fetches unserialized.
func awaitLocked[T any](m *Manager, conn banking.Conn, res banking.Result[T]) (T, error) {
	if _, ok := res.TAN(); !ok {
		return res.Data(), nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return await(m, conn, res)
}
