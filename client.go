package kontomanager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/kontomanager-go/admission"
	"github.com/example/kontomanager-go/carrier"
	"github.com/example/kontomanager-go/page"
	"github.com/example/kontomanager-go/transport"
)

const (
	// DefaultSessionTimeout is how long a login is assumed valid. The portals
	// expire idle sessions after roughly ten minutes.
	DefaultSessionTimeout = 10 * time.Minute
	// DefaultDispatchInterval paces the queue consumer between messages.
	DefaultDispatchInterval = time.Second
)

// Credentials authenticate against a portal. The username is the phone
// number or account identifier the portal expects on its login form.
type Credentials struct {
	Username string
	Password string
}

// Option customises a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport, used by tests and by callers
// that need proxy or TLS tuning beyond the default client.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) {
		if t != nil {
			c.tp = t
		}
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSessionTimeout overrides the assumed session validity.
func WithSessionTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.sessionTimeout = d
		}
	}
}

// WithAutoReconnect controls the reconnect-and-retry send path. It is on by
// default; disabling it makes SendMessage return ResultSessionExpired as-is
// without any reconnect attempt.
func WithAutoReconnect(enabled bool) Option {
	return func(c *Client) {
		c.autoReconnect = enabled
	}
}

// WithQueue enables asynchronous delivery: SendMessage enqueues and a single
// consumer goroutine drains the queue in submission order. The consumer runs
// until Close is called.
func WithQueue() Option {
	return func(c *Client) {
		c.queueEnabled = true
	}
}

// WithErrorOnInvalidNumber makes a portal-side recipient rejection surface as
// ErrInvalidNumberFormat instead of a ResultInvalidNumberFormat value.
func WithErrorOnInvalidNumber() Option {
	return func(c *Client) {
		c.errorOnInvalidNumber = true
	}
}

// WithErrorOnAuthFailure makes Connect return ErrInvalidCredentials when the
// portal rejects the login, instead of the default plain false.
func WithErrorOnAuthFailure() Option {
	return func(c *Client) {
		c.errorOnAuthFailure = true
	}
}

// WithAdmissionPolicy replaces the default sending budget (50 successes per
// hour) enforced before every queued attempt.
func WithAdmissionPolicy(window time.Duration, limit int, opts ...admission.Option) Option {
	return func(c *Client) {
		c.counter = admission.NewCounter(window, limit, opts...)
	}
}

// WithDispatchInterval overrides the fixed pacing delay between queued
// messages.
func WithDispatchInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dispatchInterval = d
		}
	}
}

// WithConnectionEstablishedHook registers a callback fired after every
// successful login.
func WithConnectionEstablishedHook(hook func()) Option {
	return func(c *Client) {
		c.onConnected = hook
	}
}

// WithExcludedSections overrides the usage-page sections skipped while
// parsing account usage.
func WithExcludedSections(sections []string) Option {
	return func(c *Client) {
		c.excludedSections = sections
	}
}

// WithNow overrides the clock, used by tests to drive session expiry.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client is a session-holding portal client. It authenticates lazily, sends
// short messages synchronously or through a single-consumer dispatch queue,
// and reads account data through the page extractor.
//
// See the package documentation for the concurrency precondition: session
// state and the admission counter are only mutated by the one goroutine
// currently sending or connecting.
type Client struct {
	carrier carrier.Carrier
	creds   Credentials
	tp      transport.Transport
	logger  zerolog.Logger
	counter *admission.Counter
	now     func() time.Time

	sessionTimeout time.Duration
	lastConnected  time.Time

	autoReconnect        bool
	errorOnInvalidNumber bool
	errorOnAuthFailure   bool
	onConnected          func()
	excludedSections     []string

	queueEnabled     bool
	dispatchInterval time.Duration
	queue            *messageQueue

	ctx          context.Context
	cancel       context.CancelFunc
	consumerDone chan struct{}
	closeOnce    sync.Once
}

// New builds a client for the given carrier. Unless WithTransport is used,
// an HTTP transport with a fresh cookie jar is created from the carrier's
// base URL. When WithQueue is set, the consumer goroutine starts immediately.
func New(def carrier.Carrier, creds Credentials, opts ...Option) (*Client, error) {
	def, err := def.Normalize()
	if err != nil {
		return nil, err
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.New("kontomanager: credentials are required")
	}

	c := &Client{
		carrier:          def,
		creds:            creds,
		logger:           zerolog.Nop(),
		counter:          admission.NewCounter(admission.DefaultWindow, admission.DefaultLimit),
		now:              time.Now,
		sessionTimeout:   DefaultSessionTimeout,
		autoReconnect:    true,
		dispatchInterval: DefaultDispatchInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.With().Str("carrier", def.Name).Logger()

	if c.tp == nil {
		tp, err := transport.NewHTTPClient(def.BaseURL)
		if err != nil {
			return nil, err
		}
		c.tp = tp
	}

	if c.queueEnabled {
		c.queue = newMessageQueue()
		c.ctx, c.cancel = context.WithCancel(context.Background())
		c.consumerDone = make(chan struct{})
		go c.consumeQueue()
	}
	return c, nil
}

// Connected reports whether the last successful login is still inside the
// session timeout. This is a pure function of the clock; the portal is not
// consulted, so the answer can race with the real session around the timeout
// boundary. Every operation that needs a live session re-validates.
func (c *Client) Connected() bool {
	return c.now().Sub(c.lastConnected) < c.sessionTimeout
}

// Connect performs the login exchange. It returns true when the portal
// answered with an authenticated page, false when the credentials were
// rejected, and an error for transport failures or unexpected statuses.
func (c *Client) Connect(ctx context.Context) (bool, error) {
	if err := c.tp.ResetSession(); err != nil {
		return false, err
	}
	fields := url.Values{}
	fields.Set(c.carrier.UserField, c.creds.Username)
	fields.Set(c.carrier.PasswordField, c.creds.Password)

	status, body, err := c.tp.PostForm(ctx, c.carrier.LoginPath, fields)
	if err != nil {
		return false, err
	}
	if !statusOK(status) {
		return false, fmt.Errorf("kontomanager: login returned status %d", status)
	}
	ok, err := page.LoginSuccessful(body)
	if err != nil {
		return false, err
	}
	if !ok {
		c.logger.Warn().Msg("login rejected by portal")
		if c.errorOnAuthFailure {
			return false, ErrInvalidCredentials
		}
		return false, nil
	}

	c.lastConnected = c.now()
	c.logger.Info().Msg("connection established")
	if c.onConnected != nil {
		c.onConnected()
	}
	return true, nil
}

// ensureConnected performs at most one reconnect when the session looks
// stale. A failed reconnect fails the dependent operation; there is no retry
// loop here.
func (c *Client) ensureConnected(ctx context.Context) error {
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

// SendMessage delivers m according to the client configuration. With queuing
// enabled it returns ResultEnqueued immediately and the real outcomes arrive
// on m.Attempts(). Otherwise the send happens synchronously, wrapped in the
// reconnect-and-retry path unless auto-reconnect is disabled.
func (c *Client) SendMessage(ctx context.Context, m *Message) (SendResult, error) {
	if c.queueEnabled {
		if err := c.queue.push(m); err != nil {
			return ResultOtherError, err
		}
		c.logger.Debug().
			Str("message_id", m.ID).
			Int("pending", c.queue.pending()).
			Msg("message enqueued")
		return ResultEnqueued, nil
	}
	if c.autoReconnect {
		return c.sendWithReconnect(ctx, m)
	}
	return c.sendToPortal(ctx, m)
}

// SendText is a convenience wrapper building the message for the caller.
func (c *Client) SendText(ctx context.Context, recipient, body string) (*Message, SendResult, error) {
	m := NewMessage(recipient, body)
	res, err := c.SendMessage(ctx, m)
	return m, res, err
}

// sendWithReconnect is the exactly-once-retry-across-expiry path: ensure a
// session, send, and when the portal reports the session dead reconnect
// unconditionally and send exactly one more time. A second consecutive
// expiry is returned as-is.
func (c *Client) sendWithReconnect(ctx context.Context, m *Message) (SendResult, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return ResultOtherError, err
	}
	res, err := c.sendToPortal(ctx, m)
	if res != ResultSessionExpired {
		return res, err
	}

	c.logger.Info().Str("message_id", m.ID).Msg("session expired mid-send, reconnecting")
	// The portal just told us the session is dead; do not trust Connected().
	if ok, err := c.Connect(ctx); err != nil {
		return ResultOtherError, err
	} else if !ok {
		return ResultOtherError, ErrNotConnected
	}
	return c.sendToPortal(ctx, m)
}

// sendToPortal performs one raw send attempt: fetch the form token, post the
// message, classify the response. Every attempt is recorded in the admission
// counter and published to the message's outcome channel.
func (c *Client) sendToPortal(ctx context.Context, m *Message) (SendResult, error) {
	token, err := c.sendFormToken(ctx)
	if err != nil {
		return c.finishAttempt(m, ResultOtherError, err)
	}

	fields := url.Values{}
	fields.Set("telefonbuch", "-")
	fields.Set("to_netz", "a")
	fields.Set("to_nummer", m.RecipientNumber)
	fields.Set("nachricht", m.Body)
	fields.Set("token", token)

	status, body, err := c.tp.PostForm(ctx, c.carrier.SendPath, fields)
	if err != nil {
		return c.finishAttempt(m, ResultOtherError, err)
	}
	if !statusOK(status) {
		return c.finishAttempt(m, ResultOtherError, fmt.Errorf("kontomanager: send returned status %d", status))
	}

	res := resultFromOutcome(c.carrier.Patterns.Classify(body))
	if res == ResultInvalidNumberFormat && c.errorOnInvalidNumber {
		return c.finishAttempt(m, res, fmt.Errorf("%w: %q (expected 00[country][number] or +[country][number])",
			ErrInvalidNumberFormat, m.RecipientNumber))
	}
	return c.finishAttempt(m, res, nil)
}

// finishAttempt applies the bookkeeping shared by every raw attempt.
func (c *Client) finishAttempt(m *Message, res SendResult, err error) (SendResult, error) {
	if res == ResultOk {
		c.counter.RecordSuccess()
	} else {
		c.counter.RecordFailure()
	}
	m.notifyAttempt(res)

	evt := c.logger.Debug()
	if res != ResultOk {
		evt = c.logger.Warn()
	}
	evt.Str("message_id", m.ID).
		Str("recipient", m.RecipientNumber).
		Str("result", res.String()).
		Err(err).
		Msg("send attempt finished")
	return res, err
}

// sendFormToken fetches the hidden token the send form requires.
func (c *Client) sendFormToken(ctx context.Context) (string, error) {
	status, body, err := c.tp.Get(ctx, c.carrier.SendPath)
	if err != nil {
		return "", err
	}
	if !statusOK(status) {
		return "", fmt.Errorf("kontomanager: send page returned status %d", status)
	}
	return page.FormToken(body)
}

// SelectedPhoneNumber returns the number the session currently operates on.
// Grouped accounts report it via the subscriber dropdown, single-sim accounts
// via the settings table or the logged-in header.
func (c *Client) SelectedPhoneNumber(ctx context.Context) (string, error) {
	body, err := c.fetch(ctx, c.carrier.SettingsPath)
	if err != nil {
		return "", err
	}
	if number, err := page.SelectedNumberFromSettings(body); err == nil {
		return number, nil
	}
	numbers, err := page.SelectableNumbers(body)
	if err != nil {
		return "", err
	}
	for _, n := range numbers {
		if n.Selected {
			return n.Number, nil
		}
	}
	return page.SelectedNumberFromHeader(body)
}

// SelectablePhoneNumbers lists every number managed by the account. An
// account without a subscriber group returns an empty list.
func (c *Client) SelectablePhoneNumbers(ctx context.Context) ([]page.PhoneNumber, error) {
	body, err := c.fetch(ctx, c.carrier.SettingsPath)
	if err != nil {
		return nil, err
	}
	return page.SelectableNumbers(body)
}

// SelectPhoneNumber switches the session to another number of a grouped
// account and verifies the portal accepted the change.
func (c *Client) SelectPhoneNumber(ctx context.Context, number page.PhoneNumber) error {
	fields := url.Values{}
	fields.Set("groupaction", "change_subscriber")
	fields.Set("subscriber", number.SubscriberID)

	status, body, err := c.tp.PostForm(ctx, c.carrier.SettingsPath, fields)
	if err != nil {
		return err
	}
	if !statusOK(status) {
		return fmt.Errorf("kontomanager: selecting number returned status %d", status)
	}

	if selected, err := page.SelectedNumberFromSettings(body); err == nil {
		if selected == number.Number {
			return nil
		}
		return fmt.Errorf("kontomanager: portal kept %s selected", selected)
	}
	// Deactivated SIMs bounce the request to the account page; the number
	// must still be listed there for the switch to have worked.
	numbers, err := page.SelectableNumbers(body)
	if err != nil {
		return err
	}
	for _, n := range numbers {
		if n.SubscriberID == number.SubscriberID {
			return nil
		}
	}
	return fmt.Errorf("kontomanager: could not select number %s", number.Number)
}

// AccountUsage loads the usage snapshot for the currently selected number.
func (c *Client) AccountUsage(ctx context.Context) (*page.AccountUsage, error) {
	body, err := c.fetch(ctx, "")
	if err != nil {
		return nil, err
	}
	usage, err := page.ParseAccountUsage(body, c.excludedSections)
	if err != nil {
		return nil, err
	}
	number, err := c.SelectedPhoneNumber(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("selected number unavailable for usage snapshot")
	} else {
		usage.Number = number
	}
	return usage, nil
}

// Close shuts down the dispatch queue. The transition is one-way: queued
// messages that were not yet taken are dropped and the consumer exits at its
// next blocking point. Synchronous operations remain usable.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if !c.queueEnabled {
			return
		}
		c.queue.close()
		c.cancel()
		<-c.consumerDone
		c.logger.Info().Msg("dispatch queue closed")
	})
}

func (c *Client) fetch(ctx context.Context, path string) (string, error) {
	status, body, err := c.tp.Get(ctx, path)
	if err != nil {
		return "", err
	}
	if !statusOK(status) {
		return "", fmt.Errorf("kontomanager: %s returned status %d", pathLabel(path), status)
	}
	return body, nil
}

func resultFromOutcome(o carrier.Outcome) SendResult {
	switch o {
	case carrier.OutcomeOk:
		return ResultOk
	case carrier.OutcomeLimitReached:
		return ResultLimitReached
	case carrier.OutcomeInvalidRecipient:
		return ResultInvalidNumberFormat
	default:
		return ResultSessionExpired
	}
}

func statusOK(status int) bool {
	return status >= 200 && status < 300
}

func pathLabel(path string) string {
	if path == "" {
		return "portal home"
	}
	return path
}
