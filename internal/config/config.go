package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"assesshub/internal/domain"
)

const (
	defaultAccessTTL      = "15m"
	defaultRefreshTTL     = "168h"
	defaultMFAPendingTTL  = "5m"
	defaultLockout        = "30m"
	defaultSessionTimeout = "30m"
	defaultSessionMin     = "15m"
	defaultSessionMax     = "120m"
	defaultInvitationTTL  = "168h"
	defaultResetTTL       = "1h"
	defaultJWTSecret      = "change-me-jwt-secret"
)

type Config struct {
	AppEnv      string
	DatabaseURL string
	ListenAddr  string

	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	MFAPendingTTL time.Duration

	MaxLoginAttempts int
	LockoutDuration  time.Duration

	SessionTimeout    time.Duration
	SessionTimeoutMin time.Duration
	SessionTimeoutMax time.Duration

	InvitationTTL    time.Duration
	PasswordResetTTL time.Duration

	PasswordMinLength        int
	PasswordRequireUppercase bool
	PasswordRequireNumber    bool
	PasswordRequireSpecial   bool

	ArgonTime        uint32
	ArgonMemoryKB    uint32
	ArgonParallelism uint8

	MFAMandatoryRoles map[domain.Role]bool
	MFAIssuer         string

	LoginRatePerMinute int

	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", "assesshub.db"))
	cfg.ListenAddr = strings.TrimSpace(getEnv("LISTEN_ADDR", ":8080"))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))

	var err error
	if cfg.AccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultAccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = parseDurationEnv("REFRESH_TTL", defaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.MFAPendingTTL, err = parseDurationEnv("MFA_PENDING_TTL", defaultMFAPendingTTL); err != nil {
		return nil, err
	}
	if cfg.LockoutDuration, err = parseDurationEnv("LOCKOUT_DURATION", defaultLockout); err != nil {
		return nil, err
	}
	if cfg.SessionTimeout, err = parseDurationEnv("SESSION_TIMEOUT", defaultSessionTimeout); err != nil {
		return nil, err
	}
	if cfg.SessionTimeoutMin, err = parseDurationEnv("SESSION_TIMEOUT_MIN", defaultSessionMin); err != nil {
		return nil, err
	}
	if cfg.SessionTimeoutMax, err = parseDurationEnv("SESSION_TIMEOUT_MAX", defaultSessionMax); err != nil {
		return nil, err
	}
	if cfg.InvitationTTL, err = parseDurationEnv("INVITATION_TTL", defaultInvitationTTL); err != nil {
		return nil, err
	}
	if cfg.PasswordResetTTL, err = parseDurationEnv("PASSWORD_RESET_TTL", defaultResetTTL); err != nil {
		return nil, err
	}

	cfg.MaxLoginAttempts = parseIntEnv("MAX_LOGIN_ATTEMPTS", 5)
	cfg.PasswordMinLength = parseIntEnv("PASSWORD_MIN_LENGTH", 8)
	cfg.PasswordRequireUppercase = parseBoolEnv("PASSWORD_REQUIRE_UPPERCASE", true)
	cfg.PasswordRequireNumber = parseBoolEnv("PASSWORD_REQUIRE_NUMBER", true)
	cfg.PasswordRequireSpecial = parseBoolEnv("PASSWORD_REQUIRE_SPECIAL", true)

	cfg.ArgonTime = uint32(parseIntEnv("ARGON_TIME", 2))
	cfg.ArgonMemoryKB = uint32(parseIntEnv("ARGON_MEMORY_KB", 64*1024))
	cfg.ArgonParallelism = uint8(parseIntEnv("ARGON_PARALLELISM", 1))

	cfg.MFAIssuer = strings.TrimSpace(getEnv("MFA_ISSUER", "AssessHub"))
	cfg.MFAMandatoryRoles = parseRolesEnv("MFA_MANDATORY_ROLES", "super_admin,analyst")

	cfg.LoginRatePerMinute = parseIntEnv("LOGIN_RATE_PER_MINUTE", 10)

	if extra := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); extra != "" {
		cfg.CORSAllowedOrigins = strings.Split(extra, ",")
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.MFAPendingTTL <= 0 || cfg.PasswordResetTTL <= 0 {
		return fmt.Errorf("token TTLs must be > 0")
	}
	if cfg.MaxLoginAttempts <= 0 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be > 0")
	}
	if cfg.SessionTimeoutMin > cfg.SessionTimeoutMax {
		return fmt.Errorf("SESSION_TIMEOUT_MIN must not exceed SESSION_TIMEOUT_MAX")
	}
	if cfg.SessionTimeout < cfg.SessionTimeoutMin || cfg.SessionTimeout > cfg.SessionTimeoutMax {
		return fmt.Errorf("SESSION_TIMEOUT must sit within [SESSION_TIMEOUT_MIN, SESSION_TIMEOUT_MAX]")
	}
	for role := range cfg.MFAMandatoryRoles {
		if !role.Valid() {
			return fmt.Errorf("MFA_MANDATORY_ROLES contains unknown role %q", role)
		}
	}

	if isProdLike(cfg.AppEnv) {
		if strings.TrimSpace(cfg.JWTSecret) == "" || cfg.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func parseBoolEnv(name string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if value == "" {
		return fallback
	}
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseRolesEnv(name, fallback string) map[domain.Role]bool {
	value := strings.TrimSpace(getEnv(name, fallback))
	roles := make(map[domain.Role]bool)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			roles[domain.Role(part)] = true
		}
	}
	return roles
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
