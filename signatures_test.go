package friendlybots

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scraperwall/friendlybots/matchers"
	"github.com/stretchr/testify/assert"
)

const vendorsTestTOML = `
Enabled = ["Pinterestbot"]
Disabled = ["YandexBot", "Msnbot"]
`

func TestDefaultSignatures(t *testing.T) {
	s := newTestSignatures(t)

	for _, v := range s.Vendors() {
		if !v.Default {
			t.Errorf("%s is not a default vendor and should not be enabled", v.Name)
		}
	}

	tests := []struct {
		ua       string
		ok       bool
		strategy matchers.Strategy
		vendor   string
	}{
		{googlebotUA, true, matchers.NetworkBlock, "Googlebot"},
		{"Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)", true, matchers.NetworkBlock, "Bingbot"},
		{"msnbot/2.0b (+http://search.msn.com/msnbot.htm)", true, matchers.NetworkBlock, "Msnbot"},
		{yandexUA, true, matchers.Address, "YandexBot"},
		{"Mozilla/5.0 (compatible; SeznamBot/3.2; +http://napoveda.seznam.cz/en/seznambot-intro/)", true, matchers.Address, "SeznamBot"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.1.1 Safari/605.1.15 (Applebot/0.1)", true, matchers.Address, "Applebot"},
		{"Mozilla/5.0 (compatible; Pinterestbot/1.0; +http://www.pinterest.com/bot.html)", false, matchers.FixedIP, ""},
		{"Sogou web spider/4.0(+http://www.sogou.com/docs/help/webmasters.htm#07)", false, matchers.FixedIP, ""},
		{"googlebot", false, matchers.FixedIP, ""},
	}

	for _, tt := range tests {
		strategy, vendor, ok := s.MatchUserAgent(tt.ua)
		if ok != tt.ok || strategy != tt.strategy || vendor != tt.vendor {
			t.Errorf("%s should match (%v, %s, %s) but matches (%v, %s, %s)", tt.ua, tt.ok, tt.strategy, tt.vendor, ok, strategy, vendor)
		}
	}

	for _, ip := range matchers.DuckDuckBotIPs {
		if ok, vendor := s.IsFixedIP(ip); !ok || vendor != "DuckDuckBot" {
			t.Errorf("%s should be a DuckDuckBot address", ip)
		}
	}

	if ok, _ := s.IsFixedIP("20.191.45.213"); ok {
		t.Error("20.191.45.213 is not a DuckDuckBot address")
	}
}

func TestMatchHostname(t *testing.T) {
	s := newTestSignatures(t)

	tests := map[string]bool{
		"crawl-66-249-79-207.googlebot.com":         true,
		"crawl-66-249-79-207.googlebot.com.":        true,
		"rate-limited-proxy-66-249-90-1.google.com": true,
		"googlebot.com":                     true,
		"msnbot-157-55-39-1.search.msn.com": true,
		"spider-5-255-253-1.yandex.com":     true,
		"fulltext-1.seznam.cz":              true,
		"17-58-98-1.applebot.apple.com":     true,
		"www.apple.com":                     false,
		"evilgooglebot.com":                 false,
		"googlebot.com.example.net":         false,
		"crawl.pinterest.com":               false,
		"":                                  false,
	}

	for host, match := range tests {
		if m := s.MatchHostname(host); m != match {
			t.Errorf("MatchHostname(%q) should be %v but is %v", host, match, m)
		}
	}
}

func TestSelectVendors(t *testing.T) {
	vendors, err := SelectVendors(VendorRules{
		Enabled:  []string{"Sogou"},
		Disabled: []string{"Googlebot"},
	})
	if err != nil {
		t.Fatalf("SelectVendors failed: %s", err)
	}

	names := make(map[string]bool)
	for _, v := range vendors {
		names[v.Name] = true
	}

	if !names["Sogou"] {
		t.Error("Sogou should be enabled")
	}
	if names["Googlebot"] {
		t.Error("Googlebot should be disabled")
	}
	if !names["DuckDuckBot"] || !names["Bingbot"] {
		t.Error("the other default vendors should stay enabled")
	}

	if _, err := SelectVendors(VendorRules{Enabled: []string{"Slurp"}}); err == nil {
		t.Error("enabling an unknown vendor should fail")
	}

	if _, err := SelectVendors(VendorRules{Disabled: []string{"Slurp"}}); err == nil {
		t.Error("disabling an unknown vendor should fail")
	}
}

func TestSignaturesLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "friendlybots-vendors")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "vendors.toml")
	if err = ioutil.WriteFile(file, []byte(vendorsTestTOML), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewSignatures(ctx, file)
	if err != nil {
		t.Fatalf("failed to create signatures: %s", err)
	}

	if _, vendor, ok := s.MatchUserAgent("Mozilla/5.0 (compatible; Pinterestbot/1.0; +http://www.pinterest.com/bot.html)"); !ok || vendor != "Pinterestbot" {
		t.Error("Pinterestbot should be enabled")
	}

	if _, _, ok := s.MatchUserAgent(yandexUA); ok {
		t.Error("YandexBot should be disabled")
	}

	if s.MatchHostname("spider-5-255-253-1.yandex.com") {
		t.Error("yandex.com hostnames should not match while YandexBot is disabled")
	}

	// the file gets reloaded when it changes
	if err = ioutil.WriteFile(file, []byte(`Enabled = ["YandexBot"]`), 0644); err != nil {
		t.Fatal(err)
	}

	assert.Eventually(t, func() bool {
		_, _, ok := s.MatchUserAgent(yandexUA)
		return ok
	}, 2*time.Second, 20*time.Millisecond, "YandexBot should be enabled after the rules file changed")
}

func TestSignaturesLoadErrors(t *testing.T) {
	if _, err := NewSignatures(context.Background(), "/nonexistent/vendors.toml"); err == nil {
		t.Error("a missing rules file should fail")
	}

	fh, err := ioutil.TempFile("", "friendlybots-vendors")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(fh.Name())

	fh.WriteString(`Enabled = ["Googlebot"`)
	fh.Close()

	if _, err := NewSignatures(context.Background(), fh.Name()); err == nil {
		t.Error("an invalid rules file should fail")
	}

	if err := ioutil.WriteFile(fh.Name(), []byte(`Disabled = ["Slurp"]`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewSignatures(context.Background(), fh.Name()); err == nil {
		t.Error("a rules file with an unknown vendor should fail")
	}
}
