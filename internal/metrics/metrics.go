// Package metrics provides a small counter registry with a Prometheus
// text-exposition HTTP handler, without pulling in client_golang.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n int64) { c.value.Add(n) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Registry holds the process's counters.
type Registry struct {
	mu        sync.Mutex
	counters  map[string]*Counter
	startTime time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Counter),
		startTime: time.Now(),
	}
}

// Counter returns the counter registered under name, creating it on first
// use. Repeated calls with the same name return the same counter.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	return c
}

// Uptime returns how long the registry has been running.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startTime)
}

// Handler serves the registry in Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		r.mu.Lock()
		names := make([]string, 0, len(r.counters))
		for name := range r.counters {
			names = append(names, name)
		}
		sort.Strings(names)
		counters := make([]*Counter, len(names))
		for i, name := range names {
			counters[i] = r.counters[name]
		}
		r.mu.Unlock()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		for _, c := range counters {
			if c.help != "" {
				fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
			}
			fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
			fmt.Fprintf(w, "%s %d\n", c.name, c.Value())
		}
		fmt.Fprintf(w, "# TYPE process_uptime_seconds gauge\n")
		fmt.Fprintf(w, "process_uptime_seconds %d\n", int64(r.Uptime().Seconds()))
	})
}
