package friendlybots

import (
	"context"
	"net/http"
	"time"

	"github.com/fvbock/endless"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/scraperwall/friendlybots/config"
	"github.com/scraperwall/friendlybots/data"
	log "github.com/sirupsen/logrus"
)

// API provides the HTTP REST API for friendlybots
type API struct {
	router    *gin.Engine
	config    *config.Config
	resources *Resources
	ctx       context.Context
}

// NewAPI creates a new REST-API for friendlybots
func NewAPI(ctx context.Context, config *config.Config, resources *Resources) *API {
	api := &API{
		config:    config,
		resources: resources,
		ctx:       ctx,
	}

	api.router = gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	api.router.Use(cors.New(corsConfig))

	api.router.GET("/check", api.check)
	api.router.GET("/auth", api.auth)
	api.router.GET("/cache", api.getCache)
	api.router.DELETE("/cache", api.clearCache)
	api.router.GET("/stats", api.getStats)
	api.router.GET("/decisions", api.getDecisions)
	api.router.GET("/vendors", api.getVendors)

	return api
}

// Handler returns the http.Handler that serves the API
func (a *API) Handler() http.Handler {
	return a.router
}

// Serve starts the API server in the background. It is shut down when the context is done
func (a *API) Serve() {
	srv := endless.NewServer(a.config.APIAddress, a.router)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("API server on %s: %s", a.config.APIAddress, err)
		}
	}()

	go func() {
		<-a.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Infof("API listening on %s", a.config.APIAddress)
}

func (a *API) check(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "ip is missing"})
		return
	}
	ua := c.Query("ua")

	dec := a.resources.Detector.Decide(c.Request.Context(), ip, ua)

	c.JSON(http.StatusOK, data.CheckResult{
		IP:        ip,
		UserAgent: ua,
		GoodBot:   dec.IsGoodBot(),
		Decision:  dec.String(),
		Time:      time.Now(),
	})
}

// auth answers nginx auth_request subrequests
func (a *API) auth(c *gin.Context) {
	ip := c.GetHeader("X-Real-IP")
	if ip == "" {
		ip = RemoteIP(c.Request)
	}

	if !a.resources.Detector.DecideRequest(c.Request, ip).IsGoodBot() {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) getCache(c *gin.Context) {
	n, err := a.resources.Cache.Len()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to count cache entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": n})
}

func (a *API) clearCache(c *gin.Context) {
	if err := a.resources.Detector.ClearCache(); err != nil {
		log.Errorf("failed to clear the cache: %s", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to clear the cache"})
		return
	}

	log.Infof("friendly bots cache cleared via API")
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (a *API) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"totals":  a.resources.Stats.Totals(),
		"windows": a.resources.Stats.All(),
		"vendors": a.resources.Vendors.Counts(),
	})
}

func (a *API) getDecisions(c *gin.Context) {
	c.JSON(http.StatusOK, a.resources.Decisions.Latest())
}

func (a *API) getVendors(c *gin.Context) {
	type vendor struct {
		Name       string   `json:"name"`
		Strategy   string   `json:"strategy"`
		UserAgents []string `json:"useragents,omitempty"`
		Hostnames  []string `json:"hostnames,omitempty"`
		IPs        []string `json:"ips,omitempty"`
	}

	enabled := a.resources.Signatures.Vendors()
	res := make([]vendor, len(enabled))
	for i, v := range enabled {
		res[i] = vendor{
			Name:       v.Name,
			Strategy:   v.Strategy.String(),
			UserAgents: v.UserAgents,
			Hostnames:  v.Hostnames,
			IPs:        v.IPs,
		}
	}

	c.JSON(http.StatusOK, res)
}
