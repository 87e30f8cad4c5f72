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
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newBotRequest(remoteAddr, ua string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Del("User-Agent")
	}
	return req
}

func TestGate(t *testing.T) {
	d, resolver, _ := newTestDetector(t)
	resolver.add("66.249.79.207", "crawl-66-249-79-207.googlebot.com")

	called := 0
	h := d.Gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.Write([]byte("hello bot"))
	}))

	tests := []struct {
		remoteAddr string
		ua         string
		status     int
	}{
		{"66.249.79.207:41234", googlebotUA, http.StatusOK},
		{"20.191.45.212:41234", "DuckDuckBot/1.0", http.StatusOK},
		{"12.249.79.207:41234", googlebotUA, http.StatusForbidden},
		{"66.249.79.207:41234", "", http.StatusForbidden},
		{"10.1.1.1:41234", "Mozilla/5.0", http.StatusForbidden},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newBotRequest(tt.remoteAddr, tt.ua))

		assert.Equal(t, tt.status, rec.Code, "%s [%s]", tt.remoteAddr, tt.ua)
		if tt.status == http.StatusForbidden {
			assert.Empty(t, rec.Body.String(), "denied responses have no body")
		}
	}

	assert.Equal(t, 2, called)
}

func TestGateFunc(t *testing.T) {
	d, _, _ := newTestDetector(t)

	h := d.GateFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	h(rec, newBotRequest("50.16.241.113:80", "DuckDuckBot/1.0"))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, newBotRequest("50.16.241.1:80", "DuckDuckBot/1.0"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGinGate(t *testing.T) {
	d, resolver, _ := newTestDetector(t)
	resolver.add("66.249.79.207", "crawl-66-249-79-207.googlebot.com")

	router := gin.New()
	router.Use(d.GinGate())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "hello bot")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newBotRequest("66.249.79.207:41234", googlebotUA))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello bot", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, newBotRequest("12.249.79.207:41234", googlebotUA))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRemoteIP(t *testing.T) {
	tests := map[string]string{
		"66.249.79.207:41234":          "66.249.79.207",
		"[2001:4860:4801:10::1]:41234": "2001:4860:4801:10::1",
		"66.249.79.207":                "66.249.79.207",
	}

	for remoteAddr, ip := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		assert.Equal(t, ip, RemoteIP(req))
	}
}

func newViewRouter(d *Detector, r Renderer) *gin.Engine {
	router := gin.New()

	tmpl := template.Must(template.New("page.html").Parse(`page {{ .title }}`))
	template.Must(tmpl.New("bot.html").Parse(`bot {{ .title }}`))
	template.Must(tmpl.New("annotated.html").Parse(`{{ .title }} bot={{ .is_good_bot }}`))
	router.SetHTMLTemplate(tmpl)

	router.GET("/", d.View(r))
	return router
}

func TestViews(t *testing.T) {
	d, _, _ := newTestDetector(t)
	data := gin.H{"title": "Home"}

	bot := func() *http.Request { return newBotRequest("107.21.1.8:80", "DuckDuckBot/1.0") }
	human := func() *http.Request { return newBotRequest("10.1.1.1:80", "Mozilla/5.0") }

	tests := []struct {
		name     string
		renderer Renderer
		req      func() *http.Request
		status   int
		body     string
	}{
		{"gated bot", GatedTemplate{Template: "bot.html", Data: data}, bot, http.StatusOK, "bot Home"},
		{"gated human", GatedTemplate{Template: "bot.html", Data: data}, human, http.StatusForbidden, ""},
		{"dual bot", DualTemplate{Template: "page.html", BotTemplate: "bot.html", Data: data}, bot, http.StatusOK, "bot Home"},
		{"dual human", DualTemplate{Template: "page.html", BotTemplate: "bot.html", Data: data}, human, http.StatusOK, "page Home"},
		{"annotated bot", AnnotatedTemplate{Template: "annotated.html", Data: data}, bot, http.StatusOK, "Home bot=true"},
		{"annotated human", AnnotatedTemplate{Template: "annotated.html", Data: data}, human, http.StatusOK, "Home bot=false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newViewRouter(d, tt.renderer).ServeHTTP(rec, tt.req())

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}

	if _, ok := data[BotTagName]; ok {
		t.Errorf("AnnotatedTemplate must not modify its Data")
	}
}

func TestGateEmptyUserAgent(t *testing.T) {
	d, resolver, _ := newTestDetector(t)
	resolver.add("66.249.79.207", "crawl-66-249-79-207.googlebot.com")

	h := d.Gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	emptyAgent := func(remoteAddr string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		req.Header["User-Agent"] = []string{""}
		return req
	}

	// a published crawler address is admitted with an empty user agent
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, emptyAgent("20.191.45.212:41234"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// but not without one
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newBotRequest("20.191.45.212:41234", ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// an empty user agent claims no crawler
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, emptyAgent("66.249.79.207:41234"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, resolver.reverseLookups())

	assert.Equal(t, Unknown, d.DecideRequest(emptyAgent("66.249.79.207:41234"), "66.249.79.207"))
	assert.Equal(t, MissingUserAgent, d.DecideRequest(newBotRequest("66.249.79.207:41234", ""), "66.249.79.207"))
}
