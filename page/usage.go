package page

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Totals the portal reports as "unlimited" are mapped to large sentinels the
// same way the portal's own cost control does.
const (
	unlimitedData  = 999999
	unlimitedUnits = 10000
)

const (
	dateLayout     = "02.01.2006"
	dateTimeLayout = "02.01.2006 15:04"
)

// DefaultExcludedSections lists progress sections that describe promotions
// rather than bookable packages and are skipped during parsing.
var DefaultExcludedSections = []string{
	"Ukraine Freieinheiten",
	"Ihre Kostenkontrolle",
}

// UnitQuota is a used/total pair for one unit type (minutes, SMS, MB).
type UnitQuota struct {
	Used  int
	Total int

	// externallyUsed corrects Remaining when the portal reports a remaining
	// figure that disagrees with Total-Used, e.g. for pooled EU data.
	externallyUsed int
}

// Remaining returns the unused units, never negative.
func (q UnitQuota) Remaining() int {
	if q.Used+q.externallyUsed >= q.Total {
		return 0
	}
	return q.Total - q.Used - q.externallyUsed
}

// correctRemaining reconciles the quota with a portal-reported remaining
// value.
func (q *UnitQuota) correctRemaining(actual int) {
	q.externallyUsed = q.Total - q.Used - actual
}

// PackageUsage is the consumption of one booked package.
type PackageUsage struct {
	Name string

	UnitsValidFrom  time.Time
	UnitsValidUntil time.Time

	Minutes UnitQuota
	SMS     UnitQuota
	// SharedMinutesSMS marks tariffs where minutes and SMS draw from one pool.
	SharedMinutesSMS bool

	AustriaToEUMinutes UnitQuota

	// Data and DataEU are in MB; DataEU covers non-domestic EU usage.
	Data   UnitQuota
	DataEU UnitQuota

	// AdditionalInfo keeps info rows the parser does not model explicitly.
	AdditionalInfo map[string]string
	// AdditionalQuotas keeps named quotas (roaming packs and the like) that do
	// not map to one of the fields above.
	AdditionalQuotas map[string]UnitQuota
}

// AccountUsage is the full usage snapshot for one phone number.
type AccountUsage struct {
	Number string

	Cost        float64
	InvoiceDate time.Time

	Prepaid           bool
	SimCardValidUntil time.Time
	Credit            float64
	LastRecharge      time.Time

	Packages []PackageUsage
}

// ParseAccountUsage reads the portal home page into an AccountUsage. The
// snapshot's Number field is left empty; it comes from a separate settings
// request. Sections named in excluded are skipped; nil means
// DefaultExcludedSections.
func ParseAccountUsage(body string, excluded []string) (*AccountUsage, error) {
	root, err := parse(body)
	if err != nil {
		return nil, err
	}
	if excluded == nil {
		excluded = DefaultExcludedSections
	}
	skip := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		skip[name] = true
	}

	usage := &AccountUsage{}

	sections := findAll(root, func(n *html.Node) bool {
		return n.Data == "div" && hasClass(n, "progress-list")
	})
	for _, section := range sections {
		pu := parseSection(section, usage)
		if !skip[pu.Name] {
			usage.Packages = append(usage.Packages, pu)
		}
	}

	parseBillingTable(root, usage)
	return usage, nil
}

func parseSection(section *html.Node, usage *AccountUsage) PackageUsage {
	pu := PackageUsage{AdditionalInfo: map[string]string{}}

	if heading := findFirst(section, func(n *html.Node) bool { return n.Data == "h3" }); heading != nil {
		pu.Name = strings.TrimRight(strings.TrimSpace(text(heading)), ":")
	}

	items := findAll(section, func(n *html.Node) bool {
		return n.Data == "div" && hasClass(n, "progress-item")
	})
	for _, item := range items {
		parseProgressItem(item, &pu)
	}

	infoItems := findAll(section, func(n *html.Node) bool {
		return n.Data == "td" && hasClass(n, "info-item")
	})
	for _, item := range infoItems {
		parseInfoItem(item, &pu, usage)
	}

	return pu
}

// parseProgressItem reads one usage bar: the left heading names the unit
// type, the right heading carries the total, the bar label the used amount.
func parseProgressItem(item *html.Node, pu *PackageUsage) {
	left := classText(item, "progress-heading", "left")
	right := classText(item, "progress-heading", "right")
	label := classText(item, "bar-label", "")
	if left == "" {
		return
	}
	lowerLeft := strings.ToLower(left)
	lowerRight := strings.ToLower(right)

	switch {
	case strings.Contains(lowerLeft, "daten"):
		q := &pu.Data
		if strings.Contains(lowerLeft, "eu") {
			q = &pu.DataEU
		}
		if right != "" {
			q.Total = parseTotal(firstField(right), unlimitedData)
		}
		if label != "" {
			q.Used = lastInt(label)
		}
	case strings.Contains(lowerLeft, "minuten") || strings.Contains(lowerRight, "minuten"):
		if right != "" {
			if strings.Contains(lowerRight, "sms") {
				pu.SharedMinutesSMS = true
			}
			pu.Minutes.Total = parseTotal(firstField(right), unlimitedUnits)
		}
		if label != "" {
			pu.Minutes.Used = lastInt(label)
		}
		if pu.SharedMinutesSMS {
			pu.SMS = pu.Minutes
		}
	case strings.Contains(lowerLeft, "sms") && !strings.Contains(lowerLeft, "kostenwarnung"),
		strings.Contains(lowerRight, "sms"):
		if right != "" {
			pu.SMS.Total = parseTotal(firstField(right), unlimitedUnits)
		}
		if label != "" {
			pu.SMS.Used = lastInt(label)
		}
	case strings.Contains(lowerLeft, "eu") && strings.Contains(lowerLeft, "minuten"):
		if right != "" {
			pu.AustriaToEUMinutes.Total = parseTotal(firstField(right), unlimitedUnits)
		}
		if label != "" {
			pu.AustriaToEUMinutes.Used = lastInt(label)
		}
	}
}

// parseInfoItem reads one key/value row from a package's info list. Rows
// carrying account-level facts (credit, prepaid validity) land on usage,
// package-level facts on pu, the rest in AdditionalInfo.
func parseInfoItem(item *html.Node, pu *PackageUsage, usage *AccountUsage) {
	parts := childTexts(item)
	if len(parts) < 2 {
		return
	}
	title := strings.TrimRight(strings.TrimSpace(parts[0]), ": ")
	value := strings.TrimSpace(parts[1])
	lowerTitle := strings.ToLower(title)

	switch {
	case strings.Contains(lowerTitle, "datenvolumen") && strings.Contains(lowerTitle, "eu"):
		fields := strings.Fields(value)
		if len(fields) >= 4 {
			if total, err := strconv.Atoi(fields[3]); err == nil {
				pu.DataEU.Total = total
				if remaining, err := strconv.Atoi(fields[0]); err == nil {
					pu.DataEU.correctRemaining(remaining)
				}
			}
		}
	case strings.Contains(lowerTitle, "gültigkeit") && strings.Contains(lowerTitle, "sim"):
		if ts, err := time.Parse(dateLayout, value); err == nil {
			usage.Prepaid = true
			usage.SimCardValidUntil = ts
		}
	case strings.Contains(lowerTitle, "letzte aufladung"):
		if ts, err := time.Parse(dateLayout, value); err == nil {
			usage.LastRecharge = ts
		}
	case strings.Contains(lowerTitle, "guthaben"):
		if amount, ok := parseAmount(value); ok {
			usage.Credit = amount
		}
	case strings.Contains(lowerTitle, "gültig von"), strings.Contains(lowerTitle, "aktivierung des paket"):
		if ts, err := time.Parse(dateTimeLayout, value); err == nil {
			pu.UnitsValidFrom = ts
		}
	case strings.Contains(lowerTitle, "gültig bis"), strings.Contains(lowerTitle, "gültigkeit des paket"):
		if ts, err := time.Parse(dateTimeLayout, value); err == nil {
			pu.UnitsValidUntil = ts
		}
	default:
		pu.AdditionalInfo[title] = value
	}
}

// parseBillingTable reads the invoice summary shown to postpaid accounts.
func parseBillingTable(root *html.Node, usage *AccountUsage) {
	table := findFirst(root, func(n *html.Node) bool {
		return n.Data == "table" && hasClass(n, "data-item-list")
	})
	if table == nil {
		return
	}
	rows := findAll(table, func(n *html.Node) bool { return n.Data == "tr" })
	for _, row := range rows {
		cells := findAll(row, func(n *html.Node) bool { return n.Data == "td" })
		if len(cells) != 2 {
			continue
		}
		title := strings.ToLower(text(cells[0]))
		value := strings.TrimSpace(text(cells[1]))
		switch {
		case strings.Contains(title, "rechnungsdatum"):
			if ts, err := time.Parse(dateLayout, value); err == nil {
				usage.InvoiceDate = ts
			}
		case strings.Contains(title, "vorläufige kosten"):
			if amount, ok := parseAmount(value); ok {
				usage.Cost = amount
			}
		}
	}
}

// classText returns the trimmed text of the first child div carrying both
// classes. The second class may be empty.
func classText(n *html.Node, class, extra string) string {
	node := findFirst(n, func(c *html.Node) bool {
		if c.Data != "div" || !hasClass(c, class) {
			return false
		}
		return extra == "" || hasClass(c, extra)
	})
	if node == nil {
		return ""
	}
	return strings.TrimSpace(text(node))
}

// childTexts returns the text of each direct child that has any, preserving
// order. Info items render as "<span>title</span><span>value</span>".
func childTexts(n *html.Node) []string {
	var out []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t := strings.TrimSpace(text(c))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseTotal(raw string, unlimited int) int {
	if strings.EqualFold(raw, "unlimited") {
		return unlimited
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// lastInt extracts the trailing integer of a label like "verbraucht: 42".
func lastInt(s string) int {
	fields := strings.Fields(s)
	for i := len(fields) - 1; i >= 0; i-- {
		if v, err := strconv.Atoi(fields[i]); err == nil {
			return v
		}
	}
	return 0
}

// parseAmount reads a currency figure like "EUR 12,34".
func parseAmount(s string) (float64, bool) {
	for _, field := range strings.Fields(s) {
		normalized := strings.ReplaceAll(field, ",", ".")
		if v, err := strconv.ParseFloat(normalized, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
