package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("RESUMAKER_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("RESUMAKER_DEBUG") == "true"
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("RESUMAKER_DB_FOLDER")
	if dbFolderPath == "" {
		return "/etc/resumaker"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("RESUMAKER_LOG_FOLDER")
	if logFolderPath == "" {
		return "/var/log/resumaker"
	}
	return logFolderPath
}

func GetGitHubClientID() string {
	return os.Getenv("RESUMAKER_GITHUB_CLIENT_ID")
}

func GetGitHubClientSecret() string {
	return os.Getenv("RESUMAKER_GITHUB_CLIENT_SECRET")
}

func GetEmailAPIURL() string {
	apiURL := os.Getenv("RESUMAKER_EMAIL_API_URL")
	if apiURL == "" {
		return "https://api.resend.com/emails"
	}
	return apiURL
}

func GetEmailAPIKey() string {
	return os.Getenv("RESUMAKER_EMAIL_API_KEY")
}
