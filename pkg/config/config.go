package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Ledger        LedgerConfig
	Settlement    SettlementConfig
	Cache         CacheConfig
	Cron          CronConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDORPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDORPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDORPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDORPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORPAY_DB_DSN"`
	Driver string `envconfig:"VENDORPAY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"VENDORPAY_DB_HOST"`
	Port     int    `envconfig:"VENDORPAY_DB_PORT" default:"5432"`
	User     string `envconfig:"VENDORPAY_DB_USER"`
	Password string `envconfig:"VENDORPAY_DB_PASSWORD"`
	Name     string `envconfig:"VENDORPAY_DB_NAME"`
	SSLMode  string `envconfig:"VENDORPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORPAY_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"VENDORPAY_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"VENDORPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"VENDORPAY_JWT_EXPIRATION_MINUTES" default:"180"`
	RefreshTokenTTLMinutes int    `envconfig:"VENDORPAY_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VENDORPAY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VENDORPAY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VENDORPAY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VENDORPAY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VENDORPAY_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"VENDORPAY_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"VENDORPAY_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"VENDORPAY_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"VENDORPAY_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"VENDORPAY_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"VENDORPAY_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VENDORPAY_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"VENDORPAY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	CheckoutIdemTTL      time.Duration `envconfig:"VENDORPAY_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"VENDORPAY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"VENDORPAY_PUBSUB_ORDERS_TOPIC" default:"vp-order-events"`
	OrdersSubscription string `envconfig:"VENDORPAY_PUBSUB_ORDERS_SUBSCRIPTION" default:"vp-order-events-notifications"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VENDORPAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VENDORPAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VENDORPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// LedgerConfig points at the wallet-compatible JSON-RPC node that moves funds.
type LedgerConfig struct {
	Driver              string        `envconfig:"VENDORPAY_LEDGER_DRIVER" default:"rpc"`
	RPCURL              string        `envconfig:"VENDORPAY_LEDGER_RPC_URL" default:"http://localhost:7545"`
	TransferTimeout     time.Duration `envconfig:"VENDORPAY_LEDGER_TRANSFER_TIMEOUT" default:"30s"`
	ReceiptTimeout      time.Duration `envconfig:"VENDORPAY_LEDGER_RECEIPT_TIMEOUT" default:"10s"`
	ReceiptPollInterval time.Duration `envconfig:"VENDORPAY_LEDGER_RECEIPT_POLL_INTERVAL" default:"500ms"`
}

func (l LedgerConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(l.Driver)) {
	case LedgerDriverRPC:
		if strings.TrimSpace(l.RPCURL) == "" {
			return fmt.Errorf("%s is required for the rpc ledger driver", EnvLedgerRPCURL)
		}
		return nil
	case LedgerDriverMemory:
		return nil
	default:
		return fmt.Errorf("unsupported ledger driver %q", l.Driver)
	}
}

// UseMemory reports whether the in-process ledger is selected.
func (l LedgerConfig) UseMemory() bool {
	return strings.EqualFold(strings.TrimSpace(l.Driver), LedgerDriverMemory)
}

type SettlementConfig struct {
	ExchangeRate     string `envconfig:"VENDORPAY_SETTLEMENT_EXCHANGE_RATE" default:"0.0005"`
	Currency         string `envconfig:"VENDORPAY_SETTLEMENT_CURRENCY" default:"ETH"`
	ShippingStandard string `envconfig:"VENDORPAY_SHIPPING_STANDARD" default:"10.00"`
	ShippingExpress  string `envconfig:"VENDORPAY_SHIPPING_EXPRESS" default:"15.00"`
}

// Rate returns the configured cart-currency to settlement-currency rate.
func (s SettlementConfig) Rate() (decimal.Decimal, error) {
	return parseDecimal(EnvSettlementRate, s.ExchangeRate)
}

// StandardShipping returns the flat standard shipping fee.
func (s SettlementConfig) StandardShipping() decimal.Decimal {
	value, _ := parseDecimal(EnvShippingStandard, s.ShippingStandard)
	return value
}

// ExpressShipping returns the flat express shipping fee.
func (s SettlementConfig) ExpressShipping() decimal.Decimal {
	value, _ := parseDecimal(EnvShippingExpress, s.ShippingExpress)
	return value
}

func (s SettlementConfig) validate() error {
	if strings.TrimSpace(s.ExchangeRate) != "" {
		if _, err := s.Rate(); err != nil {
			return err
		}
	}
	if _, err := parseDecimal(EnvShippingStandard, s.ShippingStandard); err != nil {
		return err
	}
	if _, err := parseDecimal(EnvShippingExpress, s.ShippingExpress); err != nil {
		return err
	}
	return nil
}

type CacheConfig struct {
	VendorKeyTTL     time.Duration `envconfig:"VENDORPAY_CACHE_VENDOR_KEY_TTL" default:"1h"`
	ProductVendorTTL time.Duration `envconfig:"VENDORPAY_CACHE_PRODUCT_VENDOR_TTL" default:"1h"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"VENDORPAY_CRON_INTERVAL" default:"5m"`
	ReceiptBatchSize      int           `envconfig:"VENDORPAY_CRON_RECEIPT_BATCH_SIZE" default:"100"`
	OutboxRetentionDays   int           `envconfig:"VENDORPAY_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetention int           `envconfig:"VENDORPAY_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"VENDORPAY_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func parseDecimal(env, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal: %w", env, err)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", env)
	}
	return value, nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range hostDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
