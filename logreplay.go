package friendlybots

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/satyrius/gonx"
	log "github.com/sirupsen/logrus"
)

// DefaultLogFormat is nginx' combined log format
const DefaultLogFormat = `$remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent "$http_referer" "$http_user_agent"`

// ReplaySummary is the result of a log replay
type ReplaySummary struct {
	Lines    int      `json:"lines"`
	Invalid  int      `json:"invalid"`
	Claimed  int      `json:"claimed"`
	Verified int      `json:"verified"`
	Fake     int      `json:"fake"`
	FakeIPs  []string `json:"fake_ips"`
}

// LogReplay classifies all requests in logfile that claim to come from a crawler
func (fb *FriendlyBots) LogReplay(logfile, format string) (*ReplaySummary, error) {
	fh, err := os.Open(logfile)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return ReplayLog(fb.ctx, fb.resources.Detector, fh, format)
}

// ReplayLog reads an access log in the given gonx format and classifies every request
// whose address or user agent belongs to a known crawler vendor
func ReplayLog(ctx context.Context, detector *Detector, r io.Reader, format string) (*ReplaySummary, error) {
	if format == "" {
		format = DefaultLogFormat
	}
	p := gonx.NewParser(format)

	summary := &ReplaySummary{
		FakeIPs: make([]string, 0),
	}
	fakes := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		summary.Lines++

		entry, err := p.ParseString(scanner.Text())
		if err != nil {
			summary.Invalid++
			continue
		}

		remote, err := entry.Field("remote_addr")
		if err != nil || remote == "" {
			summary.Invalid++
			continue
		}

		ua, _ := entry.Field("http_user_agent")
		if ua == "-" {
			ua = ""
		}

		dec := detector.Decide(ctx, remote, ua)
		switch dec {
		case FixedIP, Verified, CachedVerified:
			summary.Claimed++
			summary.Verified++
		case Rejected, CachedRejected, MalformedAddress:
			summary.Claimed++
			summary.Fake++
			if !fakes[remote] {
				fakes[remote] = true
				summary.FakeIPs = append(summary.FakeIPs, remote)
				log.Infof("fake crawler: %s - %s", remote, ua)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return summary, err
	}

	log.Infof("log replay: %d lines, %d claimed crawlers, %d verified, %d fake", summary.Lines, summary.Claimed, summary.Verified, summary.Fake)
	return summary, nil
}
