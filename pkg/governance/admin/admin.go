/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package admin serves a read-only HTTP view of the governor state.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"sigs.k8s.io/traffic-governance/pkg/governance/identity"
	"sigs.k8s.io/traffic-governance/pkg/governance/rules"
	logutil "sigs.k8s.io/traffic-governance/pkg/governance/util/logging"
)

// View is the engine state exposed by the admin API.
type View interface {
	Identity() *identity.ServiceIdentity
	HasSynced() bool
	RuleCounts() map[rules.Category]int
	RulesView(category rules.Category) (map[string]rules.Rule, error)
}

type identityResponse struct {
	Service  string            `json:"service"`
	Version  string            `json:"version,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type rulesResponse struct {
	Category rules.Category        `json:"category"`
	Rules    map[string]rules.Rule `json:"rules"`
}

type healthResponse struct {
	Status string                 `json:"status"`
	Rules  map[rules.Category]int `json:"rules"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler returns the admin API router. Routes:
//
//	GET /healthz               200 once a configuration was applied, 503 before
//	GET /v1/identity           the local service identity
//	GET /v1/rules/:category    the stored rules of one category
func NewHandler(view View, logger logr.Logger) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		resp := healthResponse{Status: "ok", Rules: view.RuleCounts()}
		if !view.HasSynced() {
			resp.Status = "not synced"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	v1 := router.Group("/v1")
	v1.GET("/identity", func(c *gin.Context) {
		id := view.Identity()
		c.JSON(http.StatusOK, identityResponse{Service: id.Name(), Version: id.Version(), Metadata: id.Metadata()})
	})
	v1.GET("/rules/:category", func(c *gin.Context) {
		category := rules.Category(c.Param("category"))
		stored, err := view.RulesView(category)
		if err != nil {
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, rulesResponse{Category: category, Rules: stored})
	})
	return router
}

func requestLogger(logger logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.V(logutil.DEBUG).Info("Served admin request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}
