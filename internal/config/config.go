package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"checkout.db"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	Checkout Checkout `envPrefix:"CHECKOUT_"`
	Wallet   Wallet   `envPrefix:"WALLET_"`
	Hosted   Hosted   `envPrefix:"HOSTED_"`
	Express  Express  `envPrefix:"EXPRESS_"`
	Session  Session  `envPrefix:"SESSION_"`
}

type Wallet struct {
	BaseApiURL   string `env:"BASE_API_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	WebhookID    string `env:"WEBHOOK_ID"`
}

type Hosted struct {
	BaseApiURL     string `env:"BASE_API_URL"`
	SecretKey      string `env:"SECRET_KEY"`
	PublishableKey string `env:"PUBLISHABLE_KEY"`
}

type Express struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Checkout struct {
	// How long the wallet coordinator waits for an approval signal
	// before treating the attempt as abandoned.
	ApprovalTimeout     time.Duration `env:"APPROVAL_TIMEOUT" envDefault:"10m"`
	StoragePollInterval time.Duration `env:"STORAGE_POLL_INTERVAL" envDefault:"500ms"`
}

type Session struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
