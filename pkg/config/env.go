package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvPayChanguBaseURL = "PAYCHANGU_BASE_URL"
	EnvPayChanguSecret  = "PAYCHANGU_SECRET_KEY"
	EnvPayChanguTimeout = "PAYCHANGU_TIMEOUT"
	EnvPaymentReturnURL = "PAYMENT_RETURN_URL"
	EnvPaymentCallback  = "PAYMENT_CALLBACK_URL"
	EnvPaymentCurrency  = "PAYMENT_CURRENCY"

	EnvMailerSendAPIKey   = "MAILERSEND_API_KEY"
	EnvMailerFromName     = "MAILER_FROM_NAME"
	EnvMailerFromEmail    = "MAILER_FROM_EMAIL"
	EnvMailerTemplateID   = "MAILER_TEMPLATE_ID"

	EnvAuditInterval  = "AUDIT_INTERVAL"
	EnvAuditBatchSize = "AUDIT_BATCH_SIZE"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
