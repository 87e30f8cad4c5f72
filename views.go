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
	"net/http"

	"github.com/gin-gonic/gin"
)

// BotTagName is the name of the template value AnnotatedTemplate sets
const BotTagName = "is_good_bot"

// Renderer writes the response for a classified client
type Renderer interface {
	Render(c *gin.Context, goodBot bool)
}

// View returns a gin handler that classifies the client and lets r render the response
func (d *Detector) View(r Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		r.Render(c, d.DecideRequest(c.Request, RemoteIP(c.Request)).IsGoodBot())
	}
}

// GatedTemplate renders Template for friendly bots and an empty 403 for everybody else
type GatedTemplate struct {
	Template string
	Data     gin.H
}

// Render implements Renderer
func (t GatedTemplate) Render(c *gin.Context, goodBot bool) {
	if !goodBot {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	c.HTML(http.StatusOK, t.Template, t.Data)
}

// DualTemplate renders BotTemplate for friendly bots and Template for everybody else
type DualTemplate struct {
	Template    string
	BotTemplate string
	Data        gin.H
}

// Render implements Renderer
func (t DualTemplate) Render(c *gin.Context, goodBot bool) {
	name := t.Template
	if goodBot {
		name = t.BotTemplate
	}

	c.HTML(http.StatusOK, name, t.Data)
}

// AnnotatedTemplate always renders Template. The classification is available to the
// template as BotTagName
type AnnotatedTemplate struct {
	Template string
	Data     gin.H
}

// Render implements Renderer
func (t AnnotatedTemplate) Render(c *gin.Context, goodBot bool) {
	data := make(gin.H, len(t.Data)+1)
	for k, v := range t.Data {
		data[k] = v
	}
	data[BotTagName] = goodBot

	c.HTML(http.StatusOK, t.Template, data)
}
