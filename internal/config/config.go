package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"` // sqlite, mysql
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"rwa-shop.db"`

	Stripe    Stripe    `envPrefix:"STRIPE_"`
	Minter    Minter    `envPrefix:"MINTER_"`
	MintQueue MintQueue `envPrefix:"MINT_"`
	Payment   Payment   `envPrefix:"PAYMENT_"`
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

type Stripe struct {
	// Shared secret for verifying the Stripe-Signature header.
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	// Max accepted age of the signed timestamp.
	SignatureTolerance time.Duration `env:"SIGNATURE_TOLERANCE" envDefault:"5m"`
}

type Minter struct {
	BaseURL string        `env:"BASE_URL"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

type MintQueue struct {
	WorkerCount        int           `env:"WORKER_COUNT" envDefault:"1"`
	WorkerInterval     time.Duration `env:"WORKER_INTERVAL" envDefault:"5s"`
	MaxRetries         int           `env:"MAX_RETRIES" envDefault:"5"`
	StalenessThreshold time.Duration `env:"STALENESS_THRESHOLD" envDefault:"10m"`
	BaseRetryDelay     time.Duration `env:"BASE_RETRY_DELAY" envDefault:"5s"`
	CapRetryDelay      time.Duration `env:"CAP_RETRY_DELAY" envDefault:"5m"`
}

type Payment struct {
	// Accepted deviation between the order amount and the provider amount,
	// in currency minor units.
	AmountTolerance   int64  `env:"AMOUNT_TOLERANCE" envDefault:"1"`
	SupportedCurrency string `env:"SUPPORTED_CURRENCY" envDefault:"usd"`
}
