package data

import (
	"time"
)

// CheckRequest is a request for a decision about a client. It is sent by web servers
// over the webserver socket and over NATS
type CheckRequest struct {
	IP        string `json:"ip"`
	UserAgent string `json:"useragent"`
	URL       string `json:"url,omitempty"`
	Host      string `json:"host,omitempty"`
}

// CheckResult is the decision about a single client
type CheckResult struct {
	IP        string    `json:"ip"`
	UserAgent string    `json:"useragent"`
	GoodBot   bool      `json:"good_bot"`
	Decision  string    `json:"decision"`
	Time      time.Time `json:"time"`
}
