package config

import (
	"encoding/json"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Broker   BrokerConfig   `json:"broker"`
	Session  SessionConfig  `json:"session"`
	Auth     AuthConfig     `json:"auth"`
}

type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// BrokerConfig is the relay tuple: where the broker lives, how to
// authenticate, and which topic carries chat frames. An empty broker list
// runs the server without the relay (single instance mode).
type BrokerConfig struct {
	Brokers   []string `json:"brokers"`
	Topic     string   `json:"topic"`
	GroupID   string   `json:"group_id"` // base id, suffixed per instance
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	Mechanism string   `json:"mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	UseTLS    bool     `json:"use_tls"`
	CertFile  string   `json:"cert_file"`
	KeyFile   string   `json:"key_file"`
	CAFile    string   `json:"ca_file"`
}

type SessionConfig struct {
	CookieName string `json:"cookie_name"`
	TTLMinutes int    `json:"ttl_minutes"`
}

type OAuthProvider struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURL  string   `json:"redirect_url"`
	Scopes       []string `json:"scopes"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	TokenExpiry   int    `json:"token_expiry"`   // in hours
	RefreshExpiry int    `json:"refresh_expiry"` // in hours
	OAuth         struct {
		Google OAuthProvider `json:"google"`
		GitHub OAuthProvider `json:"github"`
	} `json:"oauth"`
}

func LoadConfig() (config Config, err error) {
	// .env is optional, secrets may come from the real environment
	_ = godotenv.Load()

	file, err := os.Open("config/config.json")
	if err != nil {
		return config, err
	}
	defer func(file *os.File) {
		closeErr := file.Close()
		if closeErr != nil {
			log.Printf("Error closing config file: %v", closeErr)
		}
	}(file)
	decoder := json.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil {
		return config, err
	}
	config.applyEnvOverrides()
	config.applyDefaults()
	return config, nil
}

// Secrets do not belong in config.json, the environment wins for them.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("BROKER_PASSWORD"); v != "" {
		c.Broker.Password = v
	}
	if v := os.Getenv("BROKER_ADDRS"); v != "" {
		c.Broker.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Broker.Topic == "" {
		c.Broker.Topic = "chat.frames"
	}
	if c.Broker.GroupID == "" {
		c.Broker.GroupID = "chatrelay"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "CHATSESSION"
	}
	if c.Session.TTLMinutes == 0 {
		c.Session.TTLMinutes = 30
	}
}
