package config

const (
	EnvPrefix = "VENDORPAY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	LedgerDriverRPC    = "rpc"
	LedgerDriverMemory = "memory"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv                 = "VENDORPAY_APP_ENV"
	EnvPort                   = "VENDORPAY_APP_PORT"
	EnvDBDSN                  = "VENDORPAY_DB_DSN"
	EnvDBHost                 = "VENDORPAY_DB_HOST"
	EnvDBUser                 = "VENDORPAY_DB_USER"
	EnvDBName                 = "VENDORPAY_DB_NAME"
	EnvDBPassword             = "VENDORPAY_DB_PASSWORD"
	EnvRedisURL               = "VENDORPAY_REDIS_URL"
	EnvJWTSecret              = "VENDORPAY_JWT_SECRET"
	EnvJWTIssuer              = "VENDORPAY_JWT_ISSUER"
	EnvJWTExpMins             = "VENDORPAY_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "VENDORPAY_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "VENDORPAY_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "VENDORPAY_PUBSUB_ORDERS_TOPIC"
	EnvLedgerDriver           = "VENDORPAY_LEDGER_DRIVER"
	EnvLedgerRPCURL           = "VENDORPAY_LEDGER_RPC_URL"
	EnvSettlementRate         = "VENDORPAY_SETTLEMENT_EXCHANGE_RATE"
	EnvShippingStandard       = "VENDORPAY_SHIPPING_STANDARD"
	EnvShippingExpress        = "VENDORPAY_SHIPPING_EXPRESS"
	EnvCacheVendorKeyTTL      = "VENDORPAY_CACHE_VENDOR_KEY_TTL"
)

var hostDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
