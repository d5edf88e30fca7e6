package page

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// The Mein A1 business portal renders different markup than the kontomanager
// installations; these extractors cover its pages.

// a1Unlimited is the sentinel total for quotas the portal calls unlimitiert.
const a1Unlimited = math.MaxInt32

var (
	a1CustomerNumberPattern = regexp.MustCompile(`Kundennummer: (\d+)`)
	a1ContractNumberPattern = regexp.MustCompile(`accountId=([^"]*)`)
	a1TariffPattern         = regexp.MustCompile(`Tarif:\s*([^\n<]+)`)
	a1TotalPattern          = regexp.MustCompile(`/\s*(\d+)`)
	a1PeriodPattern         = regexp.MustCompile(`(\d{1,2})\.\d{0,2}\.?\s*bis\s*(\d{1,2})\.`)
)

// A1LoggedIn reports whether the page belongs to an authenticated session.
// The portal shows a logout link only after a successful login.
func A1LoggedIn(body string) (bool, error) {
	root, err := parse(body)
	if err != nil {
		return false, err
	}
	link := findFirst(root, func(n *html.Node) bool {
		return n.Data == "a" && attr(n, "title") == "Logout"
	})
	return link != nil, nil
}

// A1LoginError returns the portal's login error text, empty when the page
// does not carry one.
func A1LoginError(body string) (string, error) {
	root, err := parse(body)
	if err != nil {
		return "", err
	}
	node := findFirst(root, func(n *html.Node) bool {
		return attr(n, "id") == "lbun-login-error-text-1"
	})
	if node == nil {
		return "", nil
	}
	return strings.TrimSpace(text(node)), nil
}

// A1CustomerNumber extracts the customer number shown on the start page,
// empty when absent.
func A1CustomerNumber(body string) string {
	m := a1CustomerNumberPattern.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// A1ContractNumber extracts the contract identifier from the start page's
// account links, empty when absent.
func A1ContractNumber(body string) string {
	m := a1ContractNumberPattern.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// A1ContractNumbers lists the phone numbers of the contract products shown on
// the start page. The subscriber ID is the trailing query value of each
// product's details link.
func A1ContractNumbers(body string) ([]PhoneNumber, error) {
	root, err := parse(body)
	if err != nil {
		return nil, err
	}
	items := findAll(root, func(n *html.Node) bool {
		return n.Data == "li" && hasClass(n, "contract-product")
	})
	var numbers []PhoneNumber
	for _, item := range items {
		title := findFirst(item, func(n *html.Node) bool {
			return n.Data == "strong" && hasClass(n, "product-title")
		})
		button := findFirst(item, func(n *html.Node) bool {
			return n.Data == "a" && attr(n, "role") == "button"
		})
		if title == nil || button == nil {
			continue
		}
		href := attr(button, "href")
		pn := PhoneNumber{
			Number:       strings.TrimSpace(text(title)),
			SubscriberID: href[strings.LastIndex(href, "=")+1:],
		}
		if name := findFirst(item, func(n *html.Node) bool {
			return n.Data == "span" && hasClass(n, "pi-modify-name")
		}); name != nil {
			pn.Name = strings.TrimSpace(text(name))
		}
		numbers = append(numbers, pn)
	}
	return numbers, nil
}

// ParseA1Usage reads the tariff detail page into an AccountUsage. The page
// shows day-of-month validity ranges without a year, so now anchors them to
// concrete dates.
func ParseA1Usage(body string, now time.Time) (*AccountUsage, error) {
	root, err := parse(body)
	if err != nil {
		return nil, err
	}

	pu := PackageUsage{
		Name:             "Main",
		AdditionalInfo:   map[string]string{},
		AdditionalQuotas: map[string]UnitQuota{},
	}
	usage := &AccountUsage{}

	if header := findFirst(root, func(n *html.Node) bool {
		return n.Data == "header" && attr(n, "id") == "detail-header"
	}); header != nil {
		if m := a1TariffPattern.FindStringSubmatch(text(header)); len(m) > 1 {
			pu.Name = strings.TrimSpace(m[1])
		}
	}

	if price := findFirst(root, func(n *html.Node) bool {
		return n.Data == "div" && hasClass(n, "price")
	}); price != nil {
		usage.Cost = a1Price(price)
	}

	if dateNode := findFirst(root, func(n *html.Node) bool {
		return n.Data == "div" && hasClass(n, "price-date")
	}); dateNode != nil {
		pu.UnitsValidFrom, pu.UnitsValidUntil = a1ValidityPeriod(text(dateNode), now)
	}

	wraps := findAll(root, func(n *html.Node) bool {
		return n.Data == "div" && hasClass(n, "circular-progress-wrap")
	})
	for _, wrap := range wraps {
		name := classText(wrap, "circular-progress-label", "")
		if name == "" {
			continue
		}
		circle := findFirst(wrap, func(n *html.Node) bool {
			return n.Data == "div" && strings.Contains(attr(n, "class"), "circle100")
		})
		if circle == nil {
			continue
		}
		span := findFirst(circle, func(n *html.Node) bool { return n.Data == "span" })
		if span == nil {
			continue
		}
		uq := a1Quota(name, text(span))

		switch {
		case strings.Contains(name, "Freimin") && strings.Contains(name, "EU") && !strings.Contains(name, "Ö"):
			pu.AustriaToEUMinutes = uq
		case strings.Contains(name, "Freiminuten"):
			pu.Minutes = uq
		case strings.Contains(name, "Roaming"):
			pu.AdditionalQuotas[name] = uq
		case strings.Contains(name, "Daten"):
			pu.Data = uq
			pu.DataEU = uq
		case strings.Contains(name, "SMS Ö"):
			pu.SMS = uq
		default:
			pu.AdditionalQuotas[name] = uq
		}
	}

	usage.Packages = append(usage.Packages, pu)
	return usage, nil
}

// a1Price reads the monthly cost rendered as before/after decimal spans.
func a1Price(price *html.Node) float64 {
	before := findFirst(price, func(n *html.Node) bool {
		return n.Data == "span" && hasClass(n, "before-decimal")
	})
	after := findFirst(price, func(n *html.Node) bool {
		return n.Data == "span" && hasClass(n, "after-decimal")
	})
	if before == nil || after == nil {
		return 0
	}
	whole := strings.Trim(strings.TrimSpace(text(before)), ",")
	frac := strings.TrimSpace(text(after))
	v, err := strconv.ParseFloat(whole+"."+frac, 64)
	if err != nil {
		return 0
	}
	return v
}

// a1Quota parses one circular-progress label like "7,5/30 GB" or
// "unlimitiert". Data quotas are reported in GB and converted to MB.
func a1Quota(name, raw string) UnitQuota {
	scale := 1
	if strings.Contains(name, "Daten") {
		scale = 1024
	}

	uq := UnitQuota{}
	usedPart := raw
	if idx := strings.Index(raw, "/"); idx >= 0 {
		usedPart = raw[:idx]
	}
	usedPart = strings.ReplaceAll(strings.TrimSpace(usedPart), ",", ".")
	if v, err := strconv.ParseFloat(usedPart, 64); err == nil {
		uq.Used = int(math.Round(v * float64(scale)))
	}

	if m := a1TotalPattern.FindStringSubmatch(raw); len(m) > 1 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			uq.Total = v * scale
		}
	} else if strings.Contains(raw, "unlimitiert") {
		uq.Total = a1Unlimited
	}
	return uq
}

// a1ValidityPeriod resolves a "22.08. bis 21.09." range to the dates around
// now: the start day in the current or previous month, the end day in the
// current or next month.
func a1ValidityPeriod(s string, now time.Time) (time.Time, time.Time) {
	m := a1PeriodPattern.FindStringSubmatch(s)
	if len(m) < 3 {
		return time.Time{}, time.Time{}
	}
	startDay, _ := strconv.Atoi(m[1])
	endDay, _ := strconv.Atoi(m[2])

	start := time.Date(now.Year(), now.Month(), startDay, 0, 0, 0, 0, now.Location())
	if now.Day() < startDay {
		start = start.AddDate(0, -1, 0)
	}
	end := time.Date(now.Year(), now.Month(), endDay, 0, 0, 0, 0, now.Location())
	if now.Day() > endDay {
		end = end.AddDate(0, 1, 0)
	}
	return start, end
}
