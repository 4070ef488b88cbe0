package config

const (
	EnvPrefix = "PRINTSHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "PRINTSHOP_APP_ENV"
	EnvPort     = "PRINTSHOP_APP_PORT"
	EnvLogLevel = "PRINTSHOP_LOG_LEVEL"

	EnvDBDSN  = "PRINTSHOP_DB_DSN"
	EnvDBHost = "PRINTSHOP_DB_HOST"
	EnvDBUser = "PRINTSHOP_DB_USER"
	EnvDBName = "PRINTSHOP_DB_NAME"

	EnvRedisURL  = "PRINTSHOP_REDIS_URL"
	EnvJWTSecret = "PRINTSHOP_JWT_SECRET"

	EnvPublicBaseURL       = "PRINTSHOP_PUBLIC_BASE_URL"
	EnvChapaSecretKey      = "PRINTSHOP_CHAPA_SECRET_KEY"
	EnvChapaWebhookSecret  = "PRINTSHOP_CHAPA_WEBHOOK_SECRET"
	EnvPaymentStrictAmount = "PRINTSHOP_PAYMENT_STRICT_AMOUNT"

	EnvGCPProjectID = "PRINTSHOP_GCP_PROJECT_ID"
	EnvGCSBucket    = "PRINTSHOP_GCS_BUCKET_NAME"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
