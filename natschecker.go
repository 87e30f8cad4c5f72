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
	"context"
	"errors"
	"fmt"
	"time"

	natsd "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
	"github.com/scraperwall/friendlybots/config"
	"github.com/scraperwall/friendlybots/data"
	log "github.com/sirupsen/logrus"
)

// CheckSubject is the NATS subject on which decision requests are answered
const CheckSubject = "friendlybots.check"

type natsAuth struct {
	User     string
	Password string
}

func (na *natsAuth) Check(c natsd.ClientAuthentication) bool {
	return c.GetOpts().Username == na.User && c.GetOpts().Password == na.Password
}

// StartNatsServer starts an embedded NATS server as configured
func StartNatsServer(cfg *config.Config) (*natsd.Server, error) {
	nopts := &natsd.Options{
		Host: cfg.NatsAddr,
		Port: cfg.NatsPort,
		CustomClientAuthentication: &natsAuth{
			User:     cfg.NatsUser,
			Password: cfg.NatsPassword,
		},
		MaxConn: 1 << 12,
		NoSigs:  true,
	}

	s := natsd.New(nopts)
	go s.Start()
	if !s.ReadyForConnections(2 * time.Second) {
		s.Shutdown()
		return nil, errors.New("nats server failed to startup")
	}

	return s, nil
}

// ConnectNats connects a client to the embedded NATS server
func ConnectNats(s *natsd.Server, cfg *config.Config) (*nats.Conn, error) {
	natsErrorFunc := func(c *nats.Conn, s *nats.Subscription, err error) {
		if s == nil {
			log.Warnf("nats error: %v", err)
			return
		}
		log.Warnf("nats error on %s: %v", s.Subject, err)
	}

	return nats.Connect(fmt.Sprintf("nats://%s/", s.Addr()), nats.ErrorHandler(natsErrorFunc), nats.UserInfo(cfg.NatsUser, cfg.NatsPassword))
}

// NatsChecker answers decision requests on CheckSubject
type NatsChecker struct {
	jsonc        *nats.EncodedConn
	subscription *nats.Subscription
	detector     *Detector
	ctx          context.Context
}

// NewNatsChecker subscribes to CheckSubject. The subscription is drained when ctx is done
func NewNatsChecker(ctx context.Context, nc *nats.Conn, detector *Detector) (*NatsChecker, error) {
	var err error

	n := &NatsChecker{
		detector: detector,
		ctx:      ctx,
	}

	n.jsonc, err = nats.NewEncodedConn(nc, nats.JSON_ENCODER)
	if err != nil {
		return nil, err
	}

	n.subscription, err = n.jsonc.Subscribe(CheckSubject, n.handle)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		log.Infof("draining nats subscription %s", CheckSubject)
		n.subscription.Drain()
	}()

	return n, nil
}

func (n *NatsChecker) handle(subject, reply string, req *data.CheckRequest) {
	if reply == "" {
		log.Tracef("ignoring check request for %s without reply subject", req.IP)
		return
	}

	dec := n.detector.Decide(n.ctx, req.IP, req.UserAgent)

	err := n.jsonc.Publish(reply, &data.CheckResult{
		IP:        req.IP,
		UserAgent: req.UserAgent,
		GoodBot:   dec.IsGoodBot(),
		Decision:  dec.String(),
		Time:      time.Now(),
	})
	if err != nil {
		log.Errorf("error publishing decision for %s: %s", req.IP, err)
	}
}
