package kontomanager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/kontomanager-go/page"
	"github.com/example/kontomanager-go/transport"
)

// DefaultA1SessionLifetime is how long a Mein A1 login is assumed valid. The
// business portal expires sessions much faster than the kontomanager ones.
const DefaultA1SessionLifetime = 2 * time.Minute

const (
	a1StartURL = "https://ppp.a1.net/start/index.sp?execution=e1s1"
	a1LoginURL = "https://asmp.a1.net/asmp/ProcessLoginServlet/lvpaaa4/lvpbbgw3?aaacookie=lvpaaa4&eacookie=lvpbbgw3"
	a1UsageURL = "https://ppp.a1.net/start/mobileTariff.sp?subscriptionId="
)

// ErrNoNumberSelected indicates a usage query before SelectPhoneNumber.
var ErrNoNumberSelected = errors.New("kontomanager: no phone number selected")

// A1Option customises an A1BusinessClient.
type A1Option func(*A1BusinessClient)

// WithA1Transport replaces the HTTP transport, used by tests.
func WithA1Transport(t transport.Transport) A1Option {
	return func(c *A1BusinessClient) {
		if t != nil {
			c.tp = t
		}
	}
}

// WithA1Logger attaches a logger. The default discards everything.
func WithA1Logger(logger zerolog.Logger) A1Option {
	return func(c *A1BusinessClient) {
		c.logger = logger
	}
}

// WithA1SessionLifetime overrides the assumed session validity.
func WithA1SessionLifetime(d time.Duration) A1Option {
	return func(c *A1BusinessClient) {
		if d > 0 {
			c.sessionLifetime = d
		}
	}
}

// WithA1ErrorOnAuthFailure makes Connect return ErrInvalidCredentials when
// the portal's login error names the credentials, instead of a plain false.
func WithA1ErrorOnAuthFailure() A1Option {
	return func(c *A1BusinessClient) {
		c.errorOnAuthFailure = true
	}
}

// WithA1ConnectionEstablishedHook registers a callback fired after every
// successful login or live-session probe.
func WithA1ConnectionEstablishedHook(hook func()) A1Option {
	return func(c *A1BusinessClient) {
		c.onConnected = hook
	}
}

// WithA1Now overrides the clock, used by tests to drive session expiry.
func WithA1Now(now func() time.Time) A1Option {
	return func(c *A1BusinessClient) {
		if now != nil {
			c.now = now
		}
	}
}

// A1BusinessClient is the Account implementation for the Mein A1 business
// portal. It manages numbers and usage only; the portal has no web SMS form,
// so there is no dispatch path here.
//
// Unlike the kontomanager installations, the portal spans two hosts behind
// one session and number selection is purely local state.
type A1BusinessClient struct {
	creds  Credentials
	tp     transport.Transport
	logger zerolog.Logger
	now    func() time.Time

	sessionLifetime    time.Duration
	lastConnected      time.Time
	errorOnAuthFailure bool
	onConnected        func()

	selected       *page.PhoneNumber
	customerNumber string
	contractNumber string
}

// NewA1BusinessClient builds a client for the Mein A1 business portal.
func NewA1BusinessClient(creds Credentials, opts ...A1Option) (*A1BusinessClient, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.New("kontomanager: credentials are required")
	}
	c := &A1BusinessClient{
		creds:           creds,
		logger:          zerolog.Nop(),
		now:             time.Now,
		sessionLifetime: DefaultA1SessionLifetime,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.With().Str("carrier", "a1-business").Logger()

	if c.tp == nil {
		tp, err := transport.NewHTTPClient("https://ppp.a1.net/",
			transport.WithAllowedHosts("ppp.a1.net", "asmp.a1.net"))
		if err != nil {
			return nil, err
		}
		c.tp = tp
	}
	return c, nil
}

// Connected reports whether the last successful login is still inside the
// session lifetime. Connect additionally probes the portal, so a false here
// does not necessarily mean a fresh login exchange.
func (c *A1BusinessClient) Connected() bool {
	return c.now().Sub(c.lastConnected) < c.sessionLifetime
}

// Connect establishes a session. A still-live portal session detected by the
// probe counts as success without a login exchange; otherwise the credentials
// are posted to the login servlet.
func (c *A1BusinessClient) Connect(ctx context.Context) (bool, error) {
	if ok, err := c.probeSession(ctx); err != nil {
		return false, err
	} else if ok {
		c.markConnected()
		return true, nil
	}

	fields := url.Values{}
	fields.Set("UserID", c.creds.Username)
	fields.Set("Password", c.creds.Password)
	fields.Set("service", "mein-a1-PROD")
	fields.Set("level", "10")
	fields.Set("wrongLoginType", "false")
	fields.Set("userRequestURL", "https://www.a1.net/mein-a1")
	fields.Set("SetMsisdn", "false")
	fields.Set("u3", "u3")

	status, body, err := c.tp.PostForm(ctx, a1LoginURL, fields)
	if err != nil {
		return false, err
	}
	if !statusOK(status) {
		return false, fmt.Errorf("kontomanager: login returned status %d", status)
	}
	ok, err := page.A1LoggedIn(body)
	if err != nil {
		return false, err
	}
	if !ok {
		c.logger.Warn().Msg("login rejected by portal")
		if c.errorOnAuthFailure {
			if msg, perr := page.A1LoginError(body); perr == nil && strings.Contains(strings.ToLower(msg), "passwor") {
				return false, fmt.Errorf("%w: %s", ErrInvalidCredentials, msg)
			}
		}
		return false, nil
	}

	c.markConnected()
	return true, nil
}

// probeSession checks whether the portal still honours the current cookies.
// Transport failures degrade to "not logged in"; the subsequent login POST
// surfaces real connectivity problems.
func (c *A1BusinessClient) probeSession(ctx context.Context) (bool, error) {
	status, body, err := c.tp.Get(ctx, a1StartURL)
	if err != nil {
		c.logger.Debug().Err(err).Msg("session probe failed")
		return false, nil
	}
	if !statusOK(status) {
		return false, nil
	}
	return page.A1LoggedIn(body)
}

func (c *A1BusinessClient) markConnected() {
	c.lastConnected = c.now()
	c.logger.Info().Msg("connection established")
	if c.onConnected != nil {
		c.onConnected()
	}
}

func (c *A1BusinessClient) ensureConnected(ctx context.Context) error {
	if c.Connected() {
		return nil
	}
	ok, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConnected
	}
	return nil
}

// SelectablePhoneNumbers lists the contract products of the account. The
// customer and contract numbers shown on the same page are captured as a side
// effect and available through CustomerNumber and ContractNumber afterwards.
func (c *A1BusinessClient) SelectablePhoneNumbers(ctx context.Context) ([]page.PhoneNumber, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	status, body, err := c.tp.Get(ctx, a1StartURL)
	if err != nil {
		return nil, err
	}
	if !statusOK(status) {
		return nil, fmt.Errorf("kontomanager: start page returned status %d", status)
	}
	if number := page.A1CustomerNumber(body); number != "" {
		c.customerNumber = number
	}
	if number := page.A1ContractNumber(body); number != "" {
		c.contractNumber = number
	}
	return page.A1ContractNumbers(body)
}

// SelectedPhoneNumber returns the locally selected number. No portal request
// is made; the portal has no notion of a selected subscriber.
func (c *A1BusinessClient) SelectedPhoneNumber(context.Context) (string, error) {
	if c.selected == nil {
		return "", ErrNoNumberSelected
	}
	return c.selected.Number, nil
}

// SelectPhoneNumber picks the number subsequent usage queries address.
func (c *A1BusinessClient) SelectPhoneNumber(_ context.Context, number page.PhoneNumber) error {
	c.selected = &number
	return nil
}

// AccountUsage loads the tariff detail page of the selected number.
func (c *A1BusinessClient) AccountUsage(ctx context.Context) (*page.AccountUsage, error) {
	if c.selected == nil {
		return nil, ErrNoNumberSelected
	}
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	status, body, err := c.tp.Get(ctx, a1UsageURL+url.QueryEscape(c.selected.SubscriberID))
	if err != nil {
		return nil, err
	}
	if !statusOK(status) {
		return nil, fmt.Errorf("kontomanager: tariff page returned status %d", status)
	}
	usage, err := page.ParseA1Usage(body, c.now())
	if err != nil {
		return nil, err
	}
	usage.Number = c.selected.Number
	return usage, nil
}

// CustomerNumber returns the customer number of the login, available after
// the first SelectablePhoneNumbers call.
func (c *A1BusinessClient) CustomerNumber() string { return c.customerNumber }

// ContractNumber returns the contract identifier of the login, available
// after the first SelectablePhoneNumbers call.
func (c *A1BusinessClient) ContractNumber() string { return c.contractNumber }
