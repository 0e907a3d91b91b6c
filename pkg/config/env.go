package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	OutboxSinkPubSub = "pubsub"
	OutboxSinkKafka  = "kafka"
)

const (
	EnvAppEnv = "STOREFRONT_APP_ENV"
	EnvPort   = "STOREFRONT_APP_PORT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvGatewayServerKey = "STOREFRONT_GATEWAY_SERVER_KEY"

	EnvShippingBaseCost = "STOREFRONT_SHIPPING_BASE_COST"
	EnvShippingCooldown = "STOREFRONT_SHIPPING_BREAKER_COOLDOWN"

	EnvOutboxSink   = "STOREFRONT_OUTBOX_SINK"
	EnvKafkaBrokers = "STOREFRONT_KAFKA_BROKERS"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
