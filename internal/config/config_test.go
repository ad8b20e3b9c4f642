package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, map[string]string{"ENVIRONMENT": "development"})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, "kafka", cfg.NotifyEmailTransport)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.RateLimitCapacity)
	assert.Equal(t, 5, cfg.OTPMaxMisses)
	assert.Equal(t, 15*time.Minute, cfg.OTPMissRefill)
	assert.Empty(t, cfg.TrustedProxyCIDRs)
}

func TestLoad_TrustedProxies(t *testing.T) {
	setEnvs(t, map[string]string{"TRUSTED_PROXY_CIDRS": "10.0.0.0/8,172.16.0.0/12"})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, cfg.TrustedProxyCIDRs)
}

func TestLoad_Development_AcceptsDefaultSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":  "development",
		"TOKEN_SECRET": defaultTokenSecret,
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, defaultTokenSecret, cfg.TokenSecret)
}

func TestLoad_Validation(t *testing.T) {
	strong := "0123456789abcdef0123456789abcdef"
	tests := []struct {
		name    string
		envs    map[string]string
		wantErr string
	}{
		{
			name:    "production rejects default secret",
			envs:    map[string]string{"ENVIRONMENT": "production", "TOKEN_SECRET": defaultTokenSecret},
			wantErr: "TOKEN_SECRET must be explicitly set",
		},
		{
			name:    "staging rejects short secret",
			envs:    map[string]string{"ENVIRONMENT": "staging", "TOKEN_SECRET": "short"},
			wantErr: "at least 32 characters",
		},
		{
			name:    "invalid port",
			envs:    map[string]string{"HTTP_PORT": "70000"},
			wantErr: "invalid HTTP port",
		},
		{
			name:    "unparsable duration",
			envs:    map[string]string{"OTP_TTL": "soon"},
			wantErr: "load mobile config",
		},
		{
			name:    "negative otp ttl",
			envs:    map[string]string{"OTP_TTL": "-1m"},
			wantErr: "OTP_TTL must not be negative",
		},
		{
			name:    "zero otp miss budget",
			envs:    map[string]string{"OTP_MAX_MISSES": "0"},
			wantErr: "OTP_MAX_MISSES must be at least 1",
		},
		{
			name:    "zero otp miss refill",
			envs:    map[string]string{"OTP_MISS_REFILL": "0s"},
			wantErr: "OTP_MISS_REFILL must be positive",
		},
		{
			name:    "amqp transport without url",
			envs:    map[string]string{"NOTIFY_EMAIL_TRANSPORT": "amqp"},
			wantErr: "AMQP_URL is required",
		},
		{
			name:    "unknown transport",
			envs:    map[string]string{"NOTIFY_EMAIL_TRANSPORT": "smtp"},
			wantErr: "unknown NOTIFY_EMAIL_TRANSPORT",
		},
		{
			name:    "sample rate out of range",
			envs:    map[string]string{"OTEL_SAMPLE_RATE": "1.5"},
			wantErr: "OTEL_SAMPLE_RATE",
		},
		{
			name: "billplz key without signature key",
			envs: map[string]string{
				"ENVIRONMENT": "production", "TOKEN_SECRET": strong,
				"BILLPLZ_API_KEY": "live-key", "BILLPLZ_COLLECTION_ID": "inbmmepb",
			},
			wantErr: "BILLPLZ_SIGNATURE_KEY",
		},
		{
			name:    "billplz key without collection in development",
			envs:    map[string]string{"BILLPLZ_API_KEY": "key", "BILLPLZ_SIGNATURE_KEY": "sig"},
			wantErr: "BILLPLZ_COLLECTION_ID",
		},
		{
			name: "paypal client without webhook id",
			envs: map[string]string{
				"ENVIRONMENT": "production", "TOKEN_SECRET": strong,
				"PAYPAL_CLIENT_ID": "client", "PAYPAL_CLIENT_SECRET": "secret",
			},
			wantErr: "PAYPAL_WEBHOOK_ID",
		},
		{
			name: "production accepts complete gateways",
			envs: map[string]string{
				"ENVIRONMENT": "production", "TOKEN_SECRET": strong,
				"BILLPLZ_API_KEY": "live-key", "BILLPLZ_COLLECTION_ID": "inbmmepb", "BILLPLZ_SIGNATURE_KEY": "sig",
				"PAYPAL_CLIENT_ID": "client", "PAYPAL_CLIENT_SECRET": "secret", "PAYPAL_WEBHOOK_ID": "WH-1",
			},
		},
		{
			name: "production accepts strong secret",
			envs: map[string]string{"ENVIRONMENT": "production", "TOKEN_SECRET": strong},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)

			cfg, err := Load()

			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, cfg)
				return
			}
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ZeroOTPTTLDisablesExpiry(t *testing.T) {
	setEnvs(t, map[string]string{"OTP_TTL": "0s"})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Zero(t, cfg.OTPTTL)
}

func TestConfig_Postgres(t *testing.T) {
	setEnvs(t, map[string]string{
		"POSTGRES_HOST":             "db",
		"DB_MAX_CONNS":              "20",
		"DB_MAX_CONN_LIFETIME_MINS": "60",
	})

	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "db", pg.Host)
	assert.Equal(t, int32(20), pg.MaxConns)
	assert.Equal(t, time.Hour, pg.MaxConnLifetime)
	assert.Equal(t, "postgres://mobile:mobile_secret@db:5432/mobile?sslmode=disable", pg.DSN())
}
