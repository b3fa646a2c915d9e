package config

const EnvPrefix = "LOCALBIZ"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "LOCALBIZ_APP_ENV"
	EnvPort     = "LOCALBIZ_APP_PORT"
	EnvLogLevel = "LOCALBIZ_LOG_LEVEL"

	EnvDBDSN  = "LOCALBIZ_DB_DSN"
	EnvDBHost = "LOCALBIZ_DB_HOST"
	EnvDBUser = "LOCALBIZ_DB_USER"
	EnvDBName = "LOCALBIZ_DB_NAME"

	EnvRedisURL = "LOCALBIZ_REDIS_URL"

	EnvJWTSecret               = "LOCALBIZ_JWT_SECRET"
	EnvJWTIssuer               = "LOCALBIZ_JWT_ISSUER"
	EnvJWTExpMins              = "LOCALBIZ_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "LOCALBIZ_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID            = "LOCALBIZ_GCP_PROJECT_ID"
	EnvPubSubBusinessTopic     = "LOCALBIZ_PUBSUB_BUSINESS_TOPIC"
	EnvPubSubNotificationSub   = "LOCALBIZ_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvHooksSecret             = "LOCALBIZ_HOOKS_SECRET"
	EnvCronNotificationRetains = "LOCALBIZ_CRON_NOTIFICATION_RETENTION"
	EnvCronReadRetention       = "LOCALBIZ_CRON_NOTIFICATION_READ_RETENTION"
	EnvOutboxRetryBase         = "LOCALBIZ_OUTBOX_RETRY_BASE"
)
