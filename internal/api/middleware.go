package api

import (
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger returns a middleware that logs one line per request to w
func Logger(w io.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		_, _ = io.WriteString(w,
			start.Format("2006/01/02 - 15:04:05")+
				" | "+strconv.Itoa(c.Writer.Status())+
				" | "+c.Request.Method+
				" | "+path+
				" | "+c.ClientIP()+
				" | "+time.Since(start).String()+"\n",
		)
	}
}

// CORS returns a middleware that handles CORS
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// NoCache disables caching so a rebuilt preview is always fetched
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Cache-Control", "no-store")
		c.Next()
	}
}

// Recovery returns a middleware that recovers from panics
func Recovery() gin.HandlerFunc {
	return gin.Recovery()
}
