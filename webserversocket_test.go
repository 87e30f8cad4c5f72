/*
	friendlybots - verified search engine crawler admission by ScraperWall
	Copyright (C) 2021 ScraperWall, Tobias von Dewitz <tobias@scraperwall.com>

	This program is free software: you can redistribute it and/or modify it
	under the terms of the GNU Affero General Public License as published by
	the Free Software Foundation, either version 3 of the License, or (at your
	option) any later version.

	This program is distributed in the hope that it will be useful, but WITHOUT
	ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
	FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License
	for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program. If not, see <https://www.gnu.org/licenses/>.
*/

package friendlybots

import (
	"bufio"
	"context"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWebserverSocket(t *testing.T) {
	dir, err := ioutil.TempDir("", "fb-wss")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	socketFile := filepath.Join(dir, "fb.sock")

	// a stale socket file gets replaced
	if err = ioutil.WriteFile(socketFile, []byte{}, 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, resolver, _ := newTestDetector(t)
	resolver.add("66.249.79.207", "crawl-66-249-79-207.googlebot.com")

	wss, err := NewWebserverSocket(ctx, socketFile, d)
	if err != nil {
		t.Fatalf("failed to create the web server socket: %s", err)
	}

	conn, err := net.DialTimeout("unix", wss.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("failed to connect to %s: %s", wss.Addr(), err)
	}
	defer conn.Close()

	tests := []struct {
		line   string
		answer string
	}{
		{`{"ip":"66.249.79.207","useragent":"Googlebot/2.1"}`, wssOK},
		{`{"ip":"66.249.79.12","useragent":"Googlebot/2.1"}`, wssOK},
		{`{"ip":"12.249.79.207","useragent":"Googlebot/2.1"}`, wssBlock},
		{`{"ip":"66.249.79.207"}`, wssBlock},
		{`{"ip":"23.21.227.69","useragent":"DuckDuckBot/1.0"}`, wssOK},
		{`not json`, wssBlock},
	}

	reader := bufio.NewReader(conn)
	for _, tt := range tests {
		conn.SetDeadline(time.Now().Add(2 * time.Second))

		if _, err := conn.Write([]byte(tt.line + "\n")); err != nil {
			t.Fatalf("failed to write %s: %s", tt.line, err)
		}

		answer, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read the answer to %s: %s", tt.line, err)
		}

		if answer != tt.answer+"\n" {
			t.Errorf("the answer to %s should be %s but is %q", tt.line, tt.answer, answer)
		}
	}
}

func TestWebserverSocketLongLine(t *testing.T) {
	dir, err := ioutil.TempDir("", "fb-wss")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, _, _ := newTestDetector(t)

	wss, err := NewWebserverSocket(ctx, filepath.Join(dir, "fb.sock"), d)
	if err != nil {
		t.Fatalf("failed to create the web server socket: %s", err)
	}

	conn, err := net.DialTimeout("unix", wss.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("failed to connect to %s: %s", wss.Addr(), err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))

	line := `{"ip":"20.191.45.212","useragent":"` + strings.Repeat("a", bufio.MaxScanTokenSize) + `"}` + "\n"
	go conn.Write([]byte(line))

	answer, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read the answer to an oversized request: %s", err)
	}

	if answer != wssBlock+"\n" {
		t.Errorf("the answer to an oversized request should be %s but is %q", wssBlock, answer)
	}
}
