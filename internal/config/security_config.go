package config

import "time"

type SecurityConfig interface {
	GetMaxSessionAge() time.Duration
	GetSessionCookieName() string
}

type Security struct {
	file fileValues
}

var _ SecurityConfig = Security{}

func (s Security) GetMaxSessionAge() time.Duration {
	return parseDuration(s.file.get("SESSION_MAX_AGE", ""), 30*24*time.Hour)
}

func (s Security) GetSessionCookieName() string {
	return s.file.get("SESSION_COOKIE", "session_id")
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
