package page

import (
	"testing"
	"time"
)

const prepaidHomePage = `<html><body>
<div class="progress-list">
	<h3>Sprechen und Surfen:</h3>
	<div class="progress-item">
		<div class="progress-heading left">Daten Inland</div>
		<div class="progress-heading right">20000 MB</div>
		<div class="bar-label">verbraucht: 1234</div>
	</div>
	<div class="progress-item">
		<div class="progress-heading left">Minuten</div>
		<div class="progress-heading right">1000 Minuten und SMS</div>
		<div class="bar-label">verbraucht: 42</div>
	</div>
	<table>
		<tr>
			<td class="info-item"><span>Gültig von:</span><span>01.03.2026 00:00</span></td>
			<td class="info-item"><span>Gültig bis:</span><span>31.03.2026 23:59</span></td>
		</tr>
		<tr>
			<td class="info-item"><span>Guthaben:</span><span>EUR 15,50</span></td>
			<td class="info-item"><span>Gültigkeit der SIM-Karte:</span><span>15.09.2027</span></td>
		</tr>
		<tr>
			<td class="info-item"><span>Letzte Aufladung:</span><span>20.08.2026</span></td>
			<td class="info-item"><span>Tarif:</span><span>Complete XL</span></td>
		</tr>
	</table>
</div>
<div class="progress-list">
	<h3>Datenpaket EU:</h3>
	<div class="progress-item">
		<div class="progress-heading left">Daten EU</div>
		<div class="progress-heading right">unlimited</div>
		<div class="bar-label">verbraucht: 77</div>
	</div>
	<table>
		<tr>
			<td class="info-item"><span>Restliches Datenvolumen EU:</span><span>1500 von insgesamt 2000 MB</span></td>
		</tr>
	</table>
</div>
<div class="progress-list">
	<h3>Ihre Kostenkontrolle</h3>
	<div class="progress-item">
		<div class="progress-heading left">SMS Kostenwarnung</div>
	</div>
</div>
</body></html>`

func TestParseAccountUsagePrepaid(t *testing.T) {
	usage, err := ParseAccountUsage(prepaidHomePage, nil)
	if err != nil {
		t.Fatalf("ParseAccountUsage: %v", err)
	}

	if !usage.Prepaid {
		t.Fatal("expected a prepaid account")
	}
	if usage.Credit != 15.50 {
		t.Fatalf("Credit = %v, want 15.50", usage.Credit)
	}
	if want := time.Date(2027, 9, 15, 0, 0, 0, 0, time.UTC); !usage.SimCardValidUntil.Equal(want) {
		t.Fatalf("SimCardValidUntil = %v, want %v", usage.SimCardValidUntil, want)
	}
	if want := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC); !usage.LastRecharge.Equal(want) {
		t.Fatalf("LastRecharge = %v, want %v", usage.LastRecharge, want)
	}

	if len(usage.Packages) != 2 {
		t.Fatalf("got %d packages, want 2 with the cost control section excluded", len(usage.Packages))
	}

	pkg := usage.Packages[0]
	if pkg.Name != "Sprechen und Surfen" {
		t.Fatalf("package name = %q", pkg.Name)
	}
	if pkg.Data.Total != 20000 || pkg.Data.Used != 1234 {
		t.Fatalf("data quota = %+v, want 1234/20000", pkg.Data)
	}
	if pkg.Data.Remaining() != 20000-1234 {
		t.Fatalf("data remaining = %d", pkg.Data.Remaining())
	}
	if pkg.Minutes.Total != 1000 || pkg.Minutes.Used != 42 {
		t.Fatalf("minutes quota = %+v, want 42/1000", pkg.Minutes)
	}
	if !pkg.SharedMinutesSMS {
		t.Fatal("expected minutes and SMS to share one pool")
	}
	if pkg.SMS != pkg.Minutes {
		t.Fatalf("shared SMS quota = %+v, want %+v", pkg.SMS, pkg.Minutes)
	}
	if want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC); !pkg.UnitsValidFrom.Equal(want) {
		t.Fatalf("UnitsValidFrom = %v, want %v", pkg.UnitsValidFrom, want)
	}
	if want := time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC); !pkg.UnitsValidUntil.Equal(want) {
		t.Fatalf("UnitsValidUntil = %v, want %v", pkg.UnitsValidUntil, want)
	}
	if got := pkg.AdditionalInfo["Tarif"]; got != "Complete XL" {
		t.Fatalf("AdditionalInfo[Tarif] = %q", got)
	}

	eu := usage.Packages[1]
	if eu.Name != "Datenpaket EU" {
		t.Fatalf("second package name = %q", eu.Name)
	}
	// The info row corrects both the unlimited total and the remaining figure.
	if eu.DataEU.Total != 2000 || eu.DataEU.Used != 77 {
		t.Fatalf("EU data quota = %+v, want 77/2000", eu.DataEU)
	}
	if eu.DataEU.Remaining() != 1500 {
		t.Fatalf("EU data remaining = %d, want the portal reported 1500", eu.DataEU.Remaining())
	}
}

func TestParseAccountUsageExcludedSections(t *testing.T) {
	usage, err := ParseAccountUsage(prepaidHomePage, []string{})
	if err != nil {
		t.Fatalf("ParseAccountUsage: %v", err)
	}
	if len(usage.Packages) != 3 {
		t.Fatalf("got %d packages, want 3 when nothing is excluded", len(usage.Packages))
	}

	usage, err = ParseAccountUsage(prepaidHomePage, []string{"Sprechen und Surfen"})
	if err != nil {
		t.Fatalf("ParseAccountUsage: %v", err)
	}
	for _, pkg := range usage.Packages {
		if pkg.Name == "Sprechen und Surfen" {
			t.Fatal("explicitly excluded section was parsed")
		}
	}
}

func TestParseAccountUsagePostpaid(t *testing.T) {
	body := `<html><body>
	<div class="progress-list">
		<h3>Ihr Tarif:</h3>
		<div class="progress-item">
			<div class="progress-heading left">Daten</div>
			<div class="progress-heading right">unlimited</div>
			<div class="bar-label">verbraucht: 512</div>
		</div>
	</div>
	<table class="data-item-list">
		<tr><td>Rechnungsdatum</td><td>15.03.2026</td></tr>
		<tr><td>Vorläufige Kosten</td><td>EUR 23,45</td></tr>
	</table>
	</body></html>`

	usage, err := ParseAccountUsage(body, nil)
	if err != nil {
		t.Fatalf("ParseAccountUsage: %v", err)
	}
	if usage.Prepaid {
		t.Fatal("postpaid account must not be marked prepaid")
	}
	if want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC); !usage.InvoiceDate.Equal(want) {
		t.Fatalf("InvoiceDate = %v, want %v", usage.InvoiceDate, want)
	}
	if usage.Cost != 23.45 {
		t.Fatalf("Cost = %v, want 23.45", usage.Cost)
	}
	if len(usage.Packages) != 1 {
		t.Fatalf("got %d packages, want 1", len(usage.Packages))
	}
	if got := usage.Packages[0].Data.Total; got != 999999 {
		t.Fatalf("unlimited data total = %d, want the sentinel", got)
	}
}

func TestUnitQuotaRemainingNeverNegative(t *testing.T) {
	q := UnitQuota{Used: 120, Total: 100}
	if got := q.Remaining(); got != 0 {
		t.Fatalf("Remaining = %d, want 0", got)
	}
}
