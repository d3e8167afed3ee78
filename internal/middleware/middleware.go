package middleware

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"setora/internal/config"
	"setora/internal/database"
	"setora/internal/logger"
	"setora/internal/metrics"
	"setora/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	SessionCookieName = "session_token"
	RequestIDHeader   = "X-Request-ID"

	maxJSONBodyBytes = 1 << 20
)

type rateLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter hands out one token bucket per client IP and forgets IPs
// that have been idle for longer than idleTTL.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*rateLimiter
	every   time.Duration
	burst   int
	idleTTL time.Duration
}

func newClientLimiter(every time.Duration, burst int, idleTTL time.Duration) *clientLimiter {
	return &clientLimiter{
		clients: make(map[string]*rateLimiter),
		every:   every,
		burst:   burst,
		idleTTL: idleTTL,
	}
}

func (l *clientLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	client, exists := l.clients[ip]
	if !exists {
		client = &rateLimiter{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.clients[ip] = client
	}
	client.lastSeen = now

	for clientIP, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idleTTL {
			delete(l.clients, clientIP)
		}
	}

	return client.limiter.Allow()
}

func limit(cfg *config.Config, name, message string, l *clientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip rate limiting in development mode
		if cfg.IsDevelopment() {
			c.Next()
			return
		}

		if !l.allow(c.ClientIP()) {
			metrics.RateLimitedTotal.WithLabelValues(name).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": message})
			return
		}

		c.Next()
	}
}

// RateLimit allows 20 requests per second per client.
func RateLimit(cfg *config.Config) gin.HandlerFunc {
	return limit(cfg, "global", "Rate limit exceeded", newClientLimiter(time.Second/20, 20, 10*time.Minute))
}

// AuthRateLimit allows bursts of 5 signup or login attempts, refilled once a
// minute.
func AuthRateLimit(cfg *config.Config) gin.HandlerFunc {
	return limit(cfg, "auth", "Authentication rate limit exceeded", newClientLimiter(time.Minute, 5, 30*time.Minute))
}

type clientTracker struct {
	errors404    []time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

// NotFoundBlocker blocks clients that keep requesting routes that do not
// exist. Only unmatched routes count; a 404 from a real endpoint, such as
// an empty day, does not.
type NotFoundBlocker struct {
	cfg       *config.Config
	mu        sync.Mutex
	trackers  map[string]*clientTracker
	threshold int
	window    time.Duration
	blockFor  time.Duration
}

// NewNotFoundBlocker blocks a client for 15 minutes after 10 unknown routes
// within 5 minutes.
func NewNotFoundBlocker(cfg *config.Config) *NotFoundBlocker {
	return &NotFoundBlocker{
		cfg:       cfg,
		trackers:  make(map[string]*clientTracker),
		threshold: 10,
		window:    5 * time.Minute,
		blockFor:  15 * time.Minute,
	}
}

func (b *NotFoundBlocker) isBlocked(ip string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	tracker, exists := b.trackers[ip]
	return exists && now.Before(tracker.blockedUntil)
}

// IPBlocker rejects clients that are currently blocked.
func (b *NotFoundBlocker) IPBlocker() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip IP blocking in development mode
		if b.cfg.IsDevelopment() {
			c.Next()
			return
		}

		if b.isBlocked(c.ClientIP(), time.Now()) {
			metrics.RateLimitedTotal.WithLabelValues("blocked").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Too many invalid requests, try again later",
			})
			return
		}

		c.Next()
	}
}

// Track404AndBlock counts requests for unknown routes per client.
func (b *NotFoundBlocker) Track404AndBlock() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Skip 404 tracking in development mode
		if b.cfg.IsDevelopment() {
			return
		}

		if c.Writer.Status() != http.StatusNotFound || c.FullPath() != "" {
			return
		}

		b.record(c.ClientIP(), time.Now())
	}
}

func (b *NotFoundBlocker) record(ip string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tracker, exists := b.trackers[ip]
	if !exists {
		tracker = &clientTracker{}
		b.trackers[ip] = tracker
	}
	tracker.lastSeen = now

	cutoff := now.Add(-b.window)
	recent := tracker.errors404[:0]
	for _, at := range tracker.errors404 {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	tracker.errors404 = append(recent, now)

	if len(tracker.errors404) >= b.threshold {
		tracker.blockedUntil = now.Add(b.blockFor)
		logger.Warn("Blocked client for requesting unknown routes",
			"client_ip", ip,
			"not_found", len(tracker.errors404),
			"blocked_for", b.blockFor.String())
		tracker.errors404 = nil
	}

	for trackerIP, t := range b.trackers {
		if now.Sub(t.lastSeen) > 30*time.Minute && now.After(t.blockedUntil) {
			delete(b.trackers, trackerIP)
		}
	}
}

// TrimSpaces strips leading and trailing whitespace from every string in a
// JSON request body before handlers bind it. Password fields are left as
// sent.
func TrimSpaces() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
			c.Next()
			return
		}
		if c.Request.Body == nil || c.ContentType() != binding.MIMEJSON {
			c.Next()
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBodyBytes))
		c.Request.Body.Close()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "Request body too large"})
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(trimJSON(body)))
		c.Next()
	}
}

// trimJSON returns body unchanged when it is not valid JSON so that the
// handler reports the binding error.
func trimJSON(body []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return body
	}

	trimmed, err := json.Marshal(trimStrings("", v))
	if err != nil {
		return body
	}
	return trimmed
}

func trimStrings(key string, v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if strings.Contains(strings.ToLower(key), "password") {
			return val
		}
		return strings.TrimSpace(val)
	case map[string]interface{}:
		for k, item := range val {
			val[k] = trimStrings(k, item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = trimStrings(key, item)
		}
		return val
	default:
		return v
	}
}

func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				break
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func SecurityHeaders(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		if !cfg.IsDevelopment() {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func LogRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		keysAndValues := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		}
		if userID, ok := c.Get("user_id"); ok {
			keysAndValues = append(keysAndValues, "user_id", userID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request", keysAndValues...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request", keysAndValues...)
		default:
			logger.Info("HTTP request", keysAndValues...)
		}
	}
}

// Metrics records request counts and latency labelled by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		method := c.Request.Method

		metrics.HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// TokenFromRequest returns the session token from the Authorization header,
// falling back to the session cookie.
func TokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}

	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		return cookie
	}

	return ""
}

// Authenticate resolves the request's session to its user.
func Authenticate(db *sql.DB, c *gin.Context) (*models.User, error) {
	var user *models.User
	err := metrics.ObserveDB(metrics.DBOpValidateSession, func() error {
		var err error
		user, err = database.ValidateSession(db, TokenFromRequest(c))
		if errors.Is(err, database.ErrSessionNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, database.ErrSessionNotFound
	}
	return user, nil
}

func AuthRequired(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := Authenticate(db, c)
		if err != nil {
			if !errors.Is(err, database.ErrSessionNotFound) {
				logger.Error("Failed to validate session", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success":       false,
				"authenticated": false,
				"error":         "Authentication required",
			})
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

func AddDBContext(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db)
		c.Next()
	}
}

func AddConfigContext(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("config", cfg)
		c.Next()
	}
}
