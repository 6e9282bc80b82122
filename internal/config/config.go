package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	// Server configuration
	Port        int    `json:"port"`
	Environment string `json:"environment"`

	// MongoDB configuration
	MongoURI      string `json:"mongo_uri"`
	MongoDatabase string `json:"mongo_database"`

	// Redis configuration
	RedisURI      string `json:"redis_uri"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	// Collection names
	PersonCollection          string `json:"mongo_person_collection"`
	FraudCheckCollection      string `json:"mongo_fraud_check_collection"`
	FraudReviewCollection     string `json:"mongo_fraud_review_collection"`
	PhoneValidationCollection string `json:"mongo_phone_validation_collection"`

	// Phone validation configuration
	PhoneCodeTTL       time.Duration `json:"phone_code_ttl"`
	MaxVerifyAttempts  int           `json:"max_verify_attempts"`
	SMSSendLimit       int           `json:"sms_send_limit"`
	SMSSendLimitWindow time.Duration `json:"sms_send_limit_window"`
	SMSSendMaxAttempts int           `json:"sms_send_max_attempts"`
	SMSSendBackoff     time.Duration `json:"sms_send_backoff"`
	SMSSendTimeout     time.Duration `json:"sms_send_timeout"`

	// SMS gateway configuration
	SMSGatewayURL   string `json:"sms_gateway_url"`
	SMSGatewayToken string `json:"-"`

	// Phone policy lists
	PhoneCountryAllowList []string `json:"phone_country_allow_list"`
	PhoneDenyList         []string `json:"phone_deny_list"`

	// Tracing configuration
	TracingEnabled  bool   `json:"tracing_enabled"`
	TracingEndpoint string `json:"tracing_endpoint"`
}

var (
	AppConfig *Config
)

// LoadConfig loads configuration from environment variables
func LoadConfig() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	phoneCodeTTL, err := time.ParseDuration(getEnvOrDefault("PHONE_CODE_TTL", "10m"))
	if err != nil {
		return fmt.Errorf("invalid PHONE_CODE_TTL: %w", err)
	}

	maxVerifyAttempts, err := strconv.Atoi(getEnvOrDefault("PHONE_MAX_VERIFY_ATTEMPTS", "3"))
	if err != nil {
		return fmt.Errorf("invalid PHONE_MAX_VERIFY_ATTEMPTS: %w", err)
	}

	smsSendLimit, err := strconv.Atoi(getEnvOrDefault("SMS_SEND_LIMIT", "3"))
	if err != nil {
		return fmt.Errorf("invalid SMS_SEND_LIMIT: %w", err)
	}

	smsSendLimitWindow, err := time.ParseDuration(getEnvOrDefault("SMS_SEND_LIMIT_WINDOW", "12h"))
	if err != nil {
		return fmt.Errorf("invalid SMS_SEND_LIMIT_WINDOW: %w", err)
	}

	smsSendMaxAttempts, err := strconv.Atoi(getEnvOrDefault("SMS_SEND_MAX_ATTEMPTS", "3"))
	if err != nil {
		return fmt.Errorf("invalid SMS_SEND_MAX_ATTEMPTS: %w", err)
	}

	smsSendBackoff, err := time.ParseDuration(getEnvOrDefault("SMS_SEND_BACKOFF", "2s"))
	if err != nil {
		return fmt.Errorf("invalid SMS_SEND_BACKOFF: %w", err)
	}

	smsSendTimeout, err := time.ParseDuration(getEnvOrDefault("SMS_SEND_TIMEOUT", "30s"))
	if err != nil {
		return fmt.Errorf("invalid SMS_SEND_TIMEOUT: %w", err)
	}

	// The dispatch deadline has to be shorter than the code's own lifetime,
	// otherwise a code could expire while we are still trying to send it.
	if smsSendTimeout >= phoneCodeTTL {
		return fmt.Errorf("SMS_SEND_TIMEOUT (%s) must be shorter than PHONE_CODE_TTL (%s)", smsSendTimeout, phoneCodeTTL)
	}

	AppConfig = &Config{
		// Server configuration
		Port:        port,
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		// MongoDB configuration
		MongoURI:      getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "eligibility"),

		// Redis configuration
		RedisURI:      getEnvOrDefault("REDIS_URI", "localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		// Collection names
		PersonCollection:          getEnvOrDefault("MONGODB_PERSON_COLLECTION", "persons"),
		FraudCheckCollection:      getEnvOrDefault("MONGODB_FRAUD_CHECK_COLLECTION", "fraud_checks"),
		FraudReviewCollection:     getEnvOrDefault("MONGODB_FRAUD_REVIEW_COLLECTION", "fraud_reviews"),
		PhoneValidationCollection: getEnvOrDefault("MONGODB_PHONE_VALIDATION_COLLECTION", "phone_validations"),

		// Phone validation configuration
		PhoneCodeTTL:       phoneCodeTTL,
		MaxVerifyAttempts:  maxVerifyAttempts,
		SMSSendLimit:       smsSendLimit,
		SMSSendLimitWindow: smsSendLimitWindow,
		SMSSendMaxAttempts: smsSendMaxAttempts,
		SMSSendBackoff:     smsSendBackoff,
		SMSSendTimeout:     smsSendTimeout,

		// SMS gateway configuration
		SMSGatewayURL:   getEnvOrDefault("SMS_GATEWAY_URL", ""),
		SMSGatewayToken: getEnvOrDefault("SMS_GATEWAY_TOKEN", ""),

		// Phone policy lists
		PhoneCountryAllowList: splitCSV(getEnvOrDefault("PHONE_COUNTRY_ALLOW_LIST", "FR,GP,MQ,GF,RE,PM,YT,WF,PF,NC")),
		PhoneDenyList:         splitCSV(getEnvOrDefault("PHONE_DENY_LIST", "")),

		// Tracing configuration
		TracingEnabled:  getEnvOrDefault("TRACING_ENABLED", "false") == "true",
		TracingEndpoint: getEnvOrDefault("TRACING_ENDPOINT", "localhost:4317"),
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// splitCSV splits a comma-separated list, trimming blanks
func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
