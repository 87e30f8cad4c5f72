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
	"encoding/json"
	"net"
	"os"

	"github.com/scraperwall/friendlybots/data"
	log "github.com/sirupsen/logrus"
)

const wssOK = "OK"
const wssBlock = "BLOCK"

// WebserverSocket answers decision requests from web servers on a unix socket.
// Every line a client sends is a JSON encoded data.CheckRequest; the answer is a
// line containing either OK or BLOCK
type WebserverSocket struct {
	listener net.Listener
	detector *Detector
	ctx      context.Context
}

// NewWebserverSocket creates the unix socket at socketFile and starts serving it
func NewWebserverSocket(ctx context.Context, socketFile string, detector *Detector) (*WebserverSocket, error) {
	// remove a stale socket from an earlier run
	if _, err := os.Stat(socketFile); err == nil {
		if err := os.Remove(socketFile); err != nil {
			return nil, err
		}
	}

	listener, err := net.Listen("unix", socketFile)
	if err != nil {
		return nil, err
	}

	wss := &WebserverSocket{
		listener: listener,
		detector: detector,
		ctx:      ctx,
	}

	go wss.run()
	go func() {
		<-ctx.Done()
		log.Infof("closing web server socket %s", wss.listener.Addr())
		wss.listener.Close()
	}()

	return wss, nil
}

// Addr returns the address of the socket
func (wss *WebserverSocket) Addr() net.Addr {
	return wss.listener.Addr()
}

func (wss *WebserverSocket) run() {
	for {
		conn, err := wss.listener.Accept()
		if err != nil {
			select {
			case <-wss.ctx.Done():
				return
			default:
			}
			log.Errorf("web server socket accept error: %s", err)
			return
		}

		go wss.serve(conn)
	}
}

func (wss *WebserverSocket) serve(conn net.Conn) {
	defer conn.Close()
	log.Debugf("web server socket client connected")

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req data.CheckRequest

		decision := wssBlock
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			log.Warnf("%s isn't valid: %s", scanner.Text(), err)
		} else if wss.detector.IsGoodBot(wss.ctx, req.IP, req.UserAgent) {
			decision = wssOK
		}

		if _, err := conn.Write([]byte(decision + "\n")); err != nil {
			log.Warnf("web server socket write error: %s", err)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.Warnf("web server socket read error: %s", err)
		if err == bufio.ErrTooLong {
			conn.Write([]byte(wssBlock + "\n"))
		}
		return
	}

	log.Debugf("web server socket connection closed")
}
