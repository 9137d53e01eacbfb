package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

var (
	LogLevel       string
	APIBaseURL     string
	SocketURL      string
	UIHostAddress  string
	LocalStorePath string
	LocalStoreKey  string

	// SessionWindow is the inactivity window after which an end-user
	// session is treated as expired.
	SessionWindow time.Duration

	// AdminSessionWindow is the inactivity window for admin sessions.
	AdminSessionWindow time.Duration
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	LogLevel = os.Getenv("LOG_LEVEL")
	if LogLevel == "" {
		LogLevel = "info"
	}

	APIBaseURL = os.Getenv("RAHARPA_API_URL")
	if APIBaseURL == "" {
		APIBaseURL = "http://localhost:5000/api"
	}

	SocketURL = os.Getenv("RAHARPA_SOCKET_URL")
	if SocketURL == "" {
		SocketURL = "ws://localhost:5000/ws"
	}

	UIHostAddress = os.Getenv("UI_HOST_ADDRESS")
	if UIHostAddress == "" {
		UIHostAddress = "127.0.0.1:4173"
	}

	LocalStorePath = os.Getenv("LOCAL_STORE_PATH")
	if LocalStorePath == "" {
		LocalStorePath = ".raharpa"
	}

	LocalStoreKey = os.Getenv("LOCAL_STORE_KEY")
	if LocalStoreKey == "" {
		LocalStoreKey = "raharpa-local-store-signing-key-0"
	}

	SessionWindow = parseWindow("SESSION_WINDOW", 168*time.Hour)
	AdminSessionWindow = parseWindow("ADMIN_SESSION_WINDOW", 24*time.Hour)
}

func parseWindow(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	window, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Invalid %s value %q, using default", name, raw)
		return fallback
	}
	return window
}
