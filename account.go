package kontomanager

import (
	"context"

	"github.com/example/kontomanager-go/page"
)

// Account is the operation surface shared by every supported carrier portal:
// session establishment plus number and usage management. Message dispatch is
// not part of it; only the kontomanager installations expose a web SMS form.
type Account interface {
	// Connect logs in. True means the portal accepted the credentials; false
	// with a nil error means they were rejected.
	Connect(ctx context.Context) (bool, error)
	// Connected reports whether the last login is assumed still valid.
	Connected() bool
	// SelectablePhoneNumbers lists every number managed by the account.
	SelectablePhoneNumbers(ctx context.Context) ([]page.PhoneNumber, error)
	// SelectedPhoneNumber returns the number usage queries operate on.
	SelectedPhoneNumber(ctx context.Context) (string, error)
	// SelectPhoneNumber switches usage queries to another managed number.
	SelectPhoneNumber(ctx context.Context, number page.PhoneNumber) error
	// AccountUsage loads the usage snapshot for the selected number.
	AccountUsage(ctx context.Context) (*page.AccountUsage, error)
}

var (
	_ Account = (*Client)(nil)
	_ Account = (*A1BusinessClient)(nil)
)
