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
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Gate wraps next so that only friendly bots reach it. All other clients get an empty
// 403 response
func (d *Detector) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !d.DecideRequest(r, RemoteIP(r)).IsGoodBot() {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GateFunc is Gate for handler functions
func (d *Detector) GateFunc(next http.HandlerFunc) http.HandlerFunc {
	return d.Gate(next).ServeHTTP
}

// GinGate is the gin middleware version of Gate
func (d *Detector) GinGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !d.DecideRequest(c.Request, RemoteIP(c.Request)).IsGoodBot() {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Next()
	}
}

// RemoteIP returns the address of the connecting client without the port
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
