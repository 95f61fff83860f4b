package config

import (
	"os"      // For environment variables
	"strconv" // For string to number conversion
	"strings" // For normalising names
	"time"    // For call timeouts

	"github.com/joho/godotenv" // For loading .env files
)

// Service names accepted in SERVICE.
const (
	ServiceUser         = "user"
	ServiceWallet       = "wallet"
	ServicePayment      = "payment"
	ServiceCredit       = "credit"
	ServiceNotification = "notification"
)

// Config holds the application configuration
type Config struct {
	Service       string // Which service this process hosts
	AppPort       string // Application port
	DBDriver      string // mysql, postgres or sqlite
	DBUser        string // Database user
	DBPassword    string // Database password
	DBHost        string // Database host
	DBPort        string // Database port
	DBName        string // Database name (file path for sqlite)
	DBMaxOpen     int    // Connection pool ceiling
	JWTSecret     string // Shared secret for service and operator tokens
	RedisAddr     string // Redis server address, empty disables caching
	RedisPass     string // Redis password
	RedisDB       int    // Redis database number
	IsProd        bool   // Is production environment
	LogLevel      string // logrus level name
	UserURL       string // User service base URL
	WalletURL     string // Wallet service base URL
	PaymentURL    string // Payment service base URL
	NotifyURL     string // Notification service base URL
	CreditURL     string // Credit service base URL
	CallTimeout   time.Duration
	CallMaxConc   int64
	NotifyTimeout time.Duration
	GatewayDelay  time.Duration
	GatewayTO     time.Duration
	GatewayFail   float64
	RecoveryEvery time.Duration
	RecoveryGrace time.Duration
}

// DefaultPorts maps every service to the port the original deployment used.
var DefaultPorts = map[string]string{
	ServiceUser:         "3001",
	ServiceWallet:       "3002",
	ServicePayment:      "3003",
	ServiceNotification: "3004",
	ServiceCredit:       "3005",
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	service := strings.ToLower(getEnv("SERVICE", ServiceWallet))
	return &Config{
		Service:       service,
		AppPort:       getEnv("APP_PORT", DefaultPorts[service]),
		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        os.Getenv("DB_PORT"),
		DBName:        getEnv("DB_NAME", "wallet_saga_"+service),
		DBMaxOpen:     getPositive("DB_MAX_OPEN_CONNS", 20),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPass:     os.Getenv("REDIS_PASS"),
		RedisDB:       getInt("REDIS_DB", 0),
		IsProd:        os.Getenv("IS_PROD") == "true",
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		UserURL:       getEnv("USER_SERVICE_URL", "http://localhost:3001"),
		WalletURL:     getEnv("WALLET_SERVICE_URL", "http://localhost:3002"),
		PaymentURL:    getEnv("PAYMENT_SERVICE_URL", "http://localhost:3003"),
		NotifyURL:     getEnv("NOTIFICATION_SERVICE_URL", "http://localhost:3004"),
		CreditURL:     getEnv("CREDIT_SERVICE_URL", "http://localhost:3005"),
		CallTimeout:   getDuration("CALL_TIMEOUT", 3*time.Second),
		CallMaxConc:   int64(getPositive("CALL_MAX_CONCURRENT", 32)),
		NotifyTimeout: getDuration("NOTIFY_TIMEOUT", time.Second),
		GatewayDelay:  getDuration("GATEWAY_LATENCY", 500*time.Millisecond),
		GatewayTO:     getDuration("GATEWAY_TIMEOUT", 2*time.Second),
		GatewayFail:   getFloat("GATEWAY_FAILURE_RATE", 0),
		RecoveryEvery: getDuration("RECOVERY_INTERVAL", 30*time.Second),
		RecoveryGrace: getDuration("RECOVERY_GRACE", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// getPositive is getInt for ceilings, where zero would stop all traffic.
func getPositive(key string, fallback int) int {
	if v := getInt(key, fallback); v > 0 {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 || v > 1 {
		return fallback
	}
	return v
}

// getDuration accepts Go duration strings ("750ms") or plain milliseconds ("750").
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
