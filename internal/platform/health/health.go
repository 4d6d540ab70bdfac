// Package health serves the /health endpoint of both services.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// Handler runs every check concurrently within timeout. The response is 200
// when all pass and 503 otherwise, listing each check's result.
func Handler(timeout time.Duration, checks map[string]CheckFunc) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		results := make(map[string]string, len(names))
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, name := range names {
			wg.Add(1)
			go func(name string, check CheckFunc) {
				defer wg.Done()
				result := "ok"
				if err := check(ctx); err != nil {
					result = err.Error()
				}
				mu.Lock()
				results[name] = result
				mu.Unlock()
			}(name, checks[name])
		}
		wg.Wait()

		status, code := "ok", http.StatusOK
		for _, r := range results {
			if r != "ok" {
				status, code = "degraded", http.StatusServiceUnavailable
				break
			}
		}

		body := gin.H{"status": status, "timestamp": time.Now().UTC()}
		if len(results) > 0 {
			body["checks"] = results
		}
		c.JSON(code, body)
	}
}
