// Package page extracts structured values from kontomanager portal pages.
// All functions are pure: they parse a response body and either return the
// value or ErrValueNotFound when the page legitimately omits it. Markup
// details are confined to this package; the client never inspects HTML.
package page

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// ErrValueNotFound indicates the page does not contain the requested value.
// Callers distinguish this from malformed input, which surfaces as a parse
// error.
var ErrValueNotFound = errors.New("page: value not found")

// PhoneNumber is one subscriber entry of a grouped account.
type PhoneNumber struct {
	// Name is the user chosen label for the number, when the portal shows one.
	Name string
	// Number as displayed by the portal.
	Number string
	// SubscriberID is the portal's opaque identifier used to switch numbers.
	SubscriberID string
	// Selected marks the number the session currently operates on.
	Selected bool
}

func (p PhoneNumber) String() string {
	if p.Selected {
		return p.Number + " (selected)"
	}
	return p.Number
}

var headerNumberPattern = regexp.MustCompile(`\d+/\d*`)

// LoginSuccessful reports whether a login exchange produced an authenticated
// page. The portal re-renders the login form on rejected credentials, so
// structural success means the form named "loginform" is absent.
func LoginSuccessful(body string) (bool, error) {
	root, err := parse(body)
	if err != nil {
		return false, err
	}
	form := findFirst(root, func(n *html.Node) bool {
		return n.Data == "form" && attr(n, "name") == "loginform"
	})
	return form == nil, nil
}

// FormToken extracts the hidden anti-CSRF token from the send page form.
func FormToken(body string) (string, error) {
	root, err := parse(body)
	if err != nil {
		return "", err
	}
	input := findFirst(root, func(n *html.Node) bool {
		return n.Data == "input" && attr(n, "type") == "hidden" && attr(n, "name") == "token"
	})
	if input == nil {
		return "", fmt.Errorf("%w: send form token", ErrValueNotFound)
	}
	return attr(input, "value"), nil
}

// SelectedNumberFromHeader pulls the active number out of the logged-in
// header element and normalizes it to its international 43-prefixed form.
func SelectedNumberFromHeader(body string) (string, error) {
	root, err := parse(body)
	if err != nil {
		return "", err
	}
	var header *html.Node
	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "loggedin") {
			header = n
		}
	})
	if header == nil {
		return "", fmt.Errorf("%w: logged-in header", ErrValueNotFound)
	}
	match := headerNumberPattern.FindString(text(header))
	if match == "" {
		return "", fmt.Errorf("%w: number in logged-in header", ErrValueNotFound)
	}
	// The header shows the national form, e.g. 0664/1234567.
	digits := strings.ReplaceAll(match, "/", "")
	return "43" + digits[1:], nil
}

// SelectedNumberFromSettings extracts the active number from the settings
// page's "Ihre Rufnummer" row.
func SelectedNumberFromSettings(body string) (string, error) {
	root, err := parse(body)
	if err != nil {
		return "", err
	}
	var number string
	walk(root, func(n *html.Node) {
		if number != "" || n.Type != html.ElementNode || n.Data != "tr" {
			return
		}
		cells := children(n, "td")
		if len(cells) == 0 {
			return
		}
		if !strings.HasPrefix(strings.TrimSpace(text(cells[0])), "Ihre Rufnummer") {
			return
		}
		number = strings.TrimSpace(text(cells[len(cells)-1]))
	})
	if number == "" {
		return "", fmt.Errorf("%w: selected number on settings page", ErrValueNotFound)
	}
	return number, nil
}

// SelectableNumbers lists the numbers of a grouped account from the
// subscriber dropdown. Single-sim accounts without a group produce an empty
// slice, not an error.
func SelectableNumbers(body string) ([]PhoneNumber, error) {
	root, err := parse(body)
	if err != nil {
		return nil, err
	}
	form := findFirst(root, func(n *html.Node) bool {
		return attr(n, "id") == "subscriber_dropdown_form"
	})
	if form == nil {
		return nil, nil
	}
	var numbers []PhoneNumber
	walk(form, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "option" {
			return
		}
		label := strings.TrimSpace(text(n))
		number, name := label, ""
		if idx := strings.Index(label, "-"); idx >= 0 {
			number = strings.TrimSpace(label[:idx])
			name = strings.TrimSpace(label[idx+1:])
		}
		numbers = append(numbers, PhoneNumber{
			Name:         name,
			Number:       number,
			SubscriberID: attr(n, "value"),
			Selected:     attr(n, "selected") == "selected",
		})
	})
	return numbers, nil
}

func parse(body string) (*html.Node, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("page: parsing html: %w", err)
	}
	return root, nil
}

// walk visits every node depth-first.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// findFirst returns the first element node matching pred in document order.
func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && pred(n) {
			found = n
		}
	})
	return found
}

// findAll returns every element node matching pred in document order.
func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && pred(n) {
			found = append(found, n)
		}
	})
	return found
}

// children returns the direct element children with the given tag.
func children(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
		}
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// text concatenates the text content below n.
func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}
