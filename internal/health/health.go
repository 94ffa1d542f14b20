// Package health runs dependency checks concurrently and reports an overall
// service status.
package health

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Status is the state of one service or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const defaultCacheFor = 25 * time.Second

// CheckFunc returns nil when the dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Options tunes one registered check.
type Options struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	// Critical services make the whole report unhealthy when they fail.
	Critical bool
}

type service struct {
	name  string
	check CheckFunc
	opts  Options
}

// ServiceReport is the result of one check.
type ServiceReport struct {
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// Report aggregates all checks.
type Report struct {
	Status    Status                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceReport `json:"services"`
}

// Checker holds registered checks and caches the last report.
type Checker struct {
	mu       sync.Mutex
	services []service
	cacheFor time.Duration
	cached   *Report
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewChecker constructs a Checker. A zero cacheFor uses 25 seconds.
func NewChecker(cacheFor time.Duration, now func() time.Time) *Checker {
	if cacheFor <= 0 {
		cacheFor = defaultCacheFor
	}
	if now == nil {
		now = time.Now
	}
	return &Checker{cacheFor: cacheFor, now: now, sleep: sleepContext}
}

// Register adds a named check.
func (c *Checker) Register(name string, check CheckFunc, opts Options) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = append(c.services, service{name: name, check: check, opts: opts})
	c.cached = nil
}

// Check runs every registered check concurrently, or returns the cached
// report while it is fresh.
func (c *Checker) Check(ctx context.Context) Report {
	now := c.now().UTC()
	c.mu.Lock()
	if c.cached != nil && now.Sub(c.cached.Timestamp) < c.cacheFor {
		report := *c.cached
		c.mu.Unlock()
		return report
	}
	services := append([]service(nil), c.services...)
	c.mu.Unlock()

	results := make([]ServiceReport, len(services))
	g, groupCtx := errgroup.WithContext(ctx)
	for i, svc := range services {
		g.Go(func() error {
			results[i] = c.run(groupCtx, svc)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusHealthy, Timestamp: now, Services: make(map[string]ServiceReport, len(services))}
	for i, svc := range services {
		res := results[i]
		report.Services[svc.name] = res
		if res.Status == StatusHealthy {
			continue
		}
		if svc.opts.Critical {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	c.mu.Lock()
	c.cached = &report
	c.mu.Unlock()
	return report
}

func (c *Checker) run(ctx context.Context, svc service) ServiceReport {
	var lastErr error
	for attempt := 1; attempt <= svc.opts.Retries; attempt++ {
		checkCtx, cancel := context.WithTimeout(ctx, svc.opts.Timeout)
		lastErr = svc.check(checkCtx)
		cancel()
		if lastErr == nil {
			if attempt > 1 {
				log.Infof("health: %s recovered after %d attempts", svc.name, attempt)
			}
			return ServiceReport{Status: StatusHealthy, LastCheck: c.now().UTC()}
		}
		if attempt < svc.opts.Retries {
			if errSleep := c.sleep(ctx, svc.opts.RetryDelay); errSleep != nil {
				lastErr = errors.Join(lastErr, errSleep)
				break
			}
		}
	}
	log.WithError(lastErr).Warnf("health: %s unhealthy", svc.name)
	return ServiceReport{Status: StatusUnhealthy, Error: lastErr.Error(), LastCheck: c.now().UTC()}
}

// Names lists registered checks in name order.
func (c *Checker) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.services))
	for _, svc := range c.services {
		names = append(names, svc.name)
	}
	sort.Strings(names)
	return names
}

// Handler serves the report: 200 when healthy, 206 when degraded and 503
// when unhealthy.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		report := c.Check(ctx.Request.Context())
		status := http.StatusOK
		switch report.Status {
		case StatusDegraded:
			status = http.StatusPartialContent
		case StatusUnhealthy:
			status = http.StatusServiceUnavailable
		}
		ctx.JSON(status, report)
	}
}

// DatabaseCheck pings the database and runs SELECT 1.
func DatabaseCheck(conn *gorm.DB) CheckFunc {
	return func(ctx context.Context) error {
		sqlDB, errDB := conn.DB()
		if errDB != nil {
			return errDB
		}
		if errPing := sqlDB.PingContext(ctx); errPing != nil {
			return errPing
		}
		var one int
		return conn.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
	}
}

// RedisCheck pings Redis.
func RedisCheck(client *redis.Client) CheckFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
