package config

import (
	"fmt"
	"strings"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	baseURLVar     = "BASE_URL"
	logLevelEnvVar = "LOG_LEVEL"
	envEnvVar      = "ENV"
)

type EnvVars struct {
	file fileValues
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.file.get(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.file.get(appNameVar, "Vibed To-Do")
}

// GetBaseURL returns the public URL of the server (e.g., "https://todo.example.com")
func (e EnvVars) GetBaseURL() string {
	return e.file.get(baseURLVar, "http://localhost:8080")
}

func (e EnvVars) GetLogLevel() string {
	return e.file.get(logLevelEnvVar, "info")
}

func (e EnvVars) GetEnv() string {
	return e.file.get(envEnvVar, "DEV")
}
