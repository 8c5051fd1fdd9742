package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Proton-105/promo-bot/internal/ratelimit"
	"github.com/Proton-105/promo-bot/pkg/config"
)

const (
	// RoleAdmin is the only role issued by the back office.
	RoleAdmin = "admin"

	defaultTokenTTL = 24 * time.Hour
	claimsKey       = "adminClaims"
)

// Claims are the JWT claims of an admin session.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator checks admin credentials and issues and verifies session tokens.
type Authenticator struct {
	secret        []byte
	ttl           time.Duration
	adminEmail    string
	adminPassword string
	limiter       ratelimit.Limiter
	rules         *ratelimit.Rules
	log           *slog.Logger
	now           func() time.Time
}

// NewAuthenticator creates an Authenticator. limiter may be nil to disable login throttling.
func NewAuthenticator(cfg config.AuthConfig, limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &Authenticator{
		secret:        []byte(cfg.JWTSecret),
		ttl:           ttl,
		adminEmail:    cfg.AdminEmail,
		adminPassword: cfg.AdminPassword,
		limiter:       limiter,
		rules:         rules,
		log:           log,
		now:           time.Now,
	}
}

// IssueToken signs an HS256 admin token for email.
func (a *Authenticator) IssueToken(email string) (string, error) {
	now := a.now()
	claims := &Claims{
		Email: email,
		Role:  RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return token, nil
}

// ParseToken validates signature and expiry of tokenString.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("parse admin token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// validCredentials accepts the configured admin. A password starting with "$2" is a bcrypt hash.
func (a *Authenticator) validCredentials(email, password string) bool {
	if subtle.ConstantTimeCompare([]byte(email), []byte(a.adminEmail)) != 1 {
		return false
	}

	if strings.HasPrefix(a.adminPassword, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(a.adminPassword), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.adminPassword)) == 1
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login.
func (a *Authenticator) Login(c *gin.Context) {
	if !a.allowLogin(c) {
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	if !a.validCredentials(req.Email, req.Password) {
		a.log.Warn("admin login rejected", slog.String("client_ip", c.ClientIP()))
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := a.IssueToken(req.Email)
	if err != nil {
		a.log.Error("failed to issue admin token", slog.Any("error", err))
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	a.log.Info("admin logged in", slog.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    gin.H{"email": req.Email, "role": RoleAdmin},
	})
}

type verifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// Verify handles POST /api/auth/verify.
func (a *Authenticator) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Token is required")
		return
	}

	claims, err := a.ParseToken(req.Token)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": claims})
}

// Middleware rejects requests without a valid "Authorization: Bearer <jwt>" header.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			respondError(c, http.StatusUnauthorized, "No token provided")
			return
		}

		claims, err := a.ParseToken(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// allowLogin throttles login attempts per client IP. Limiter failures let the attempt through.
func (a *Authenticator) allowLogin(c *gin.Context) bool {
	if a.limiter == nil || !a.rules.Enabled() {
		return true
	}

	limit, window, err := a.rules.GetLoginLimit()
	if err != nil {
		a.log.Warn("login rate limit misconfigured", slog.Any("error", err))
		return true
	}

	ip := c.ClientIP()
	res, err := a.limiter.Check(c.Request.Context(), "login:"+ip, limit, window)
	if err != nil {
		a.log.Error("login rate limiter failed", slog.String("client_ip", ip), slog.Any("error", err))
		return true
	}
	if res.Allowed {
		return true
	}

	a.log.Warn("admin login rate limited", slog.String("client_ip", ip))
	c.Header("Retry-After", strconv.Itoa(res.RetryAfter(a.now())))
	respondError(c, http.StatusTooManyRequests, "Too many login attempts")
	return false
}

// ClaimsFrom returns the admin claims stored by Middleware.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
