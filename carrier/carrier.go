// Package carrier describes the kontomanager portal installations the client
// can talk to: their URLs, login form field names, and the response text
// patterns used to classify send outcomes. The shipped presets cover the
// known Austrian installations; unlisted portals are reachable through Custom
// or a TOML catalogue file.
package carrier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Default paths shared by every known kontomanager installation.
const (
	defaultLoginPath    = "index.php"
	defaultSendPath     = "websms_send.php"
	defaultSettingsPath = "einstellungen.php"
)

// Default login form field names used by the portals.
const (
	defaultUserField     = "login_rufnummer"
	defaultPasswordField = "login_passwort"
)

// Outcome mirrors the send classifications of the root package without
// importing it. The root package converts these to its SendResult values.
type Outcome int

const (
	OutcomeOk Outcome = iota
	OutcomeLimitReached
	OutcomeInvalidRecipient
	OutcomeSessionExpired
)

// Patterns holds the locale-specific response fragments the portal embeds in
// its send-result page. Any response matching none of them is treated as an
// expired session, which is what the portals actually produce when they
// bounce a request back to the login page.
type Patterns struct {
	Success          []string `toml:"success"`
	LimitReached     []string `toml:"limit_reached"`
	InvalidRecipient []string `toml:"invalid_recipient"`
}

// GermanPatterns returns the default fragments for the German-language
// portals. Deployments targeting a differently localised installation
// override these per carrier.
func GermanPatterns() Patterns {
	return Patterns{
		Success:          []string{"erfolgreich"},
		LimitReached:     []string{"Pro Rufnummer sind maximal"},
		InvalidRecipient: []string{"Empfängernummer ungültig"},
	}
}

// Classify maps a raw send-response body to an Outcome.
func (p Patterns) Classify(body string) Outcome {
	switch {
	case containsAny(body, p.Success):
		return OutcomeOk
	case containsAny(body, p.LimitReached):
		return OutcomeLimitReached
	case containsAny(body, p.InvalidRecipient):
		return OutcomeInvalidRecipient
	default:
		return OutcomeSessionExpired
	}
}

func containsAny(body string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(body, f) {
			return true
		}
	}
	return false
}

// Carrier is one portal installation.
type Carrier struct {
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`

	// Paths relative to BaseURL. Empty values take the kontomanager defaults.
	LoginPath    string `toml:"login_path"`
	SendPath     string `toml:"send_path"`
	SettingsPath string `toml:"settings_path"`

	// Login form field names. Empty values take the kontomanager defaults.
	UserField     string `toml:"user_field"`
	PasswordField string `toml:"password_field"`

	Patterns Patterns `toml:"patterns"`
}

// Normalize fills unset fields with the portal defaults and validates the
// result.
func (c Carrier) Normalize() (Carrier, error) {
	if strings.TrimSpace(c.BaseURL) == "" {
		return Carrier{}, errors.New("carrier: base_url is required")
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.Name == "" {
		c.Name = "custom"
	}
	if c.LoginPath == "" {
		c.LoginPath = defaultLoginPath
	}
	if c.SendPath == "" {
		c.SendPath = defaultSendPath
	}
	if c.SettingsPath == "" {
		c.SettingsPath = defaultSettingsPath
	}
	if c.UserField == "" {
		c.UserField = defaultUserField
	}
	if c.PasswordField == "" {
		c.PasswordField = defaultPasswordField
	}
	if len(c.Patterns.Success) == 0 && len(c.Patterns.LimitReached) == 0 && len(c.Patterns.InvalidRecipient) == 0 {
		c.Patterns = GermanPatterns()
	} else if len(c.Patterns.Success) == 0 {
		return Carrier{}, fmt.Errorf("carrier %s: patterns.success must not be empty", c.Name)
	}
	return c, nil
}

// Yesss returns the preset for the Yesss installation.
func Yesss() Carrier {
	c, _ := Carrier{Name: "yesss", BaseURL: "https://www.yesss.at/kontomanager.at/"}.Normalize()
	return c
}

// Educom returns the preset for the Educom installation.
func Educom() Carrier {
	c, _ := Carrier{Name: "educom", BaseURL: "https://educom.kontomanager.at/"}.Normalize()
	return c
}

// XOXO returns the preset for the XOXO installation.
func XOXO() Carrier {
	c, _ := Carrier{Name: "xoxo", BaseURL: "https://xoxo.kontomanager.at/app/"}.Normalize()
	return c
}

// Custom builds a carrier for an unlisted installation using the default
// paths and patterns.
func Custom(name, baseURL string) (Carrier, error) {
	return Carrier{Name: name, BaseURL: baseURL}.Normalize()
}

// catalogue is the TOML file shape: a list of [[carrier]] tables.
type catalogue struct {
	Carriers []Carrier `toml:"carrier"`
}

// LoadFile reads a TOML carrier catalogue. Each entry is normalized; the
// returned map is keyed by carrier name.
func LoadFile(path string) (map[string]Carrier, error) {
	var cat catalogue
	if _, err := toml.DecodeFile(path, &cat); err != nil {
		return nil, fmt.Errorf("carrier: decoding %s: %w", path, err)
	}
	if len(cat.Carriers) == 0 {
		return nil, fmt.Errorf("carrier: %s defines no carriers", path)
	}
	out := make(map[string]Carrier, len(cat.Carriers))
	for i, raw := range cat.Carriers {
		c, err := raw.Normalize()
		if err != nil {
			return nil, fmt.Errorf("carrier: entry %d: %w", i, err)
		}
		if _, dup := out[c.Name]; dup {
			return nil, fmt.Errorf("carrier: duplicate name %q", c.Name)
		}
		out[c.Name] = c
	}
	return out, nil
}
