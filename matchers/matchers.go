// Package matchers contains the built-in table of search engine crawlers that
// can be admitted as friendly bots.
package matchers

// Strategy is the way a vendor's crawlers get verified
type Strategy int

const (
	// FixedIP vendors crawl from a small, published set of addresses
	FixedIP Strategy = iota
	// NetworkBlock vendors are verified by DNS and cached per /24 network.
	// This is intended for bots that crawl a site constantly from many
	// addresses of the same block.
	NetworkBlock
	// Address vendors are verified by DNS and cached per IP address
	Address
)

func (s Strategy) String() string {
	switch s {
	case FixedIP:
		return "fixed-ip"
	case NetworkBlock:
		return "network-block"
	case Address:
		return "address"
	}
	return "unknown"
}

// Vendor describes a single crawler operator
type Vendor struct {
	Name       string   `json:"name"`
	Strategy   Strategy `json:"-"`
	UserAgents []string `json:"useragents,omitempty"`
	Hostnames  []string `json:"hostnames,omitempty"`
	IPs        []string `json:"ips,omitempty"`
	Default    bool     `json:"default"`
}

// DuckDuckBotIPs are the addresses DuckDuckBot crawls from
var DuckDuckBotIPs = []string{
	"20.191.45.212",
	"23.21.227.69",
	"40.88.21.235",
	"50.16.241.113",
	"50.16.241.114",
	"50.16.241.117",
	"50.16.247.234",
	"52.5.190.19",
	"52.204.97.54",
	"54.197.234.188",
	"54.208.100.253",
	"54.208.102.37",
	"107.21.1.8",
}

// Vendors is the built-in crawler table. Vendors with Default set to false are
// verifiable but have to be enabled explicitly.
var Vendors = []Vendor{
	{
		Name:     "DuckDuckBot",
		Strategy: FixedIP,
		IPs:      DuckDuckBotIPs,
		Default:  true,
	},
	{
		Name:       "Googlebot",
		Strategy:   NetworkBlock,
		UserAgents: []string{"Googlebot"},
		Hostnames:  []string{"googlebot.com", "google.com"},
		Default:    true,
	},
	{
		Name:       "Bingbot",
		Strategy:   NetworkBlock,
		UserAgents: []string{"bingbot"},
		Hostnames:  []string{"search.msn.com"},
		Default:    true,
	},
	{
		Name:       "Msnbot",
		Strategy:   NetworkBlock,
		UserAgents: []string{"msnbot"},
		Hostnames:  []string{"search.msn.com"},
		Default:    true,
	},
	{
		Name:       "YandexBot",
		Strategy:   Address,
		UserAgents: []string{"YandexBot"},
		Hostnames:  []string{"yandex.com", "yandex.ru"},
		Default:    true,
	},
	{
		Name:       "SeznamBot",
		Strategy:   Address,
		UserAgents: []string{"SeznamBot"},
		Hostnames:  []string{"seznam.cz"},
		Default:    true,
	},
	{
		Name:       "Applebot",
		Strategy:   Address,
		UserAgents: []string{"Applebot"},
		Hostnames:  []string{"applebot.apple.com"},
		Default:    true,
	},
	{
		Name:       "Pinterestbot",
		Strategy:   NetworkBlock,
		UserAgents: []string{"Pinterestbot"},
		Hostnames:  []string{"pinterest.com"},
	},
	{
		Name:       "Sogou",
		Strategy:   Address,
		UserAgents: []string{"Sogou web spider"},
		Hostnames:  []string{"sogou.com"},
	},
}

// Lookup returns the built-in vendor with the given name
func Lookup(name string) (Vendor, bool) {
	for _, v := range Vendors {
		if v.Name == name {
			return v, true
		}
	}
	return Vendor{}, false
}
