package carrier

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	patterns := GermanPatterns()
	tests := []struct {
		name string
		body string
		want Outcome
	}{
		{
			name: "success fragment",
			body: "Ihre SMS wurde erfolgreich versendet!",
			want: OutcomeOk,
		},
		{
			name: "hourly limit fragment",
			body: "Pro Rufnummer sind maximal 50 SMS pro Stunde erlaubt.",
			want: OutcomeLimitReached,
		},
		{
			name: "invalid recipient fragment",
			body: "konnte nicht versendet werden, da die Empfängernummer ungültig war",
			want: OutcomeInvalidRecipient,
		},
		{
			name: "login page falls through to expired session",
			body: `<form name="loginform"></form>`,
			want: OutcomeSessionExpired,
		},
		{
			name: "empty body means expired session",
			body: "",
			want: OutcomeSessionExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := patterns.Classify(tt.body); got != tt.want {
				t.Fatalf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	c, err := Carrier{Name: "test", BaseURL: "https://portal.example.com"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		t.Fatalf("BaseURL %q must end with a slash", c.BaseURL)
	}
	if c.LoginPath != "index.php" || c.SendPath != "websms_send.php" || c.SettingsPath != "einstellungen.php" {
		t.Fatalf("unexpected default paths: %+v", c)
	}
	if c.UserField != "login_rufnummer" || c.PasswordField != "login_passwort" {
		t.Fatalf("unexpected default form fields: %+v", c)
	}
	if len(c.Patterns.Success) == 0 {
		t.Fatal("expected the default patterns to be applied")
	}
}

func TestNormalizeRequiresBaseURL(t *testing.T) {
	if _, err := (Carrier{Name: "incomplete"}).Normalize(); err == nil {
		t.Fatal("expected an error for a carrier without base_url")
	}
}

func TestNormalizeRejectsPartialPatterns(t *testing.T) {
	c := Carrier{
		Name:     "partial",
		BaseURL:  "https://portal.example.com/",
		Patterns: Patterns{LimitReached: []string{"limit"}},
	}
	if _, err := c.Normalize(); err == nil {
		t.Fatal("expected an error when success patterns are missing")
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		def  Carrier
		name string
		base string
	}{
		{def: Yesss(), name: "yesss", base: "https://www.yesss.at/kontomanager.at/"},
		{def: Educom(), name: "educom", base: "https://educom.kontomanager.at/"},
		{def: XOXO(), name: "xoxo", base: "https://xoxo.kontomanager.at/app/"},
	}
	for _, tt := range tests {
		if tt.def.Name != tt.name || tt.def.BaseURL != tt.base {
			t.Fatalf("preset %s = %q %q, want %q %q", tt.name, tt.def.Name, tt.def.BaseURL, tt.name, tt.base)
		}
		if tt.def.LoginPath == "" || len(tt.def.Patterns.Success) == 0 {
			t.Fatalf("preset %s is not normalized: %+v", tt.name, tt.def)
		}
	}
}

func writeCatalogue(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "carriers.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing catalogue: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeCatalogue(t, `
[[carrier]]
name = "yesss"
base_url = "https://www.yesss.at/kontomanager.at/"

[[carrier]]
name = "english"
base_url = "https://sms.example.org/portal"
send_path = "send.php"

[carrier.patterns]
success = ["message sent"]
limit_reached = ["hourly limit reached"]
invalid_recipient = ["invalid recipient"]
`)

	catalogue, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(catalogue) != 2 {
		t.Fatalf("got %d carriers, want 2", len(catalogue))
	}

	yesss, ok := catalogue["yesss"]
	if !ok {
		t.Fatal("yesss entry missing")
	}
	if yesss.SendPath != "websms_send.php" {
		t.Fatalf("yesss send path = %q, want the default", yesss.SendPath)
	}

	english, ok := catalogue["english"]
	if !ok {
		t.Fatal("english entry missing")
	}
	if english.SendPath != "send.php" {
		t.Fatalf("english send path = %q, want send.php", english.SendPath)
	}
	if english.BaseURL != "https://sms.example.org/portal/" {
		t.Fatalf("english base url = %q, want trailing slash added", english.BaseURL)
	}
	if got := english.Patterns.Classify("message sent"); got != OutcomeOk {
		t.Fatalf("custom patterns not applied, Classify = %v", got)
	}
}

func TestLoadFileRejectsDuplicates(t *testing.T) {
	path := writeCatalogue(t, `
[[carrier]]
name = "dup"
base_url = "https://a.example.com/"

[[carrier]]
name = "dup"
base_url = "https://b.example.com/"
`)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for duplicate carrier names")
	}
}

func TestLoadFileRejectsEmptyCatalogue(t *testing.T) {
	path := writeCatalogue(t, `# no carriers here`)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for a catalogue without carriers")
	}
}
