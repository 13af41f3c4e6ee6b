package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, c.HTTP.Port)
	assert.Equal(t, 9090, c.GRPCHealthPort)
	assert.Equal(t, "localhost", c.Postgres.Host)
	assert.Equal(t, "checkout", c.Postgres.DBName)
	assert.Equal(t, []string{"localhost:9092"}, c.Broker.KafkaBrokers)
	assert.Equal(t, 10*time.Second, c.Gateway.Timeout)
	assert.Equal(t, 15*time.Minute, c.Outbox.StaleAfter)
	assert.Equal(t, LockRedis, c.Lock.Driver)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("BROKER_KIND", "rabbitmq")
	t.Setenv("BROKER_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("LOCK_DRIVER", "memory")
	t.Setenv("LOG_FORMAT", "text")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, c.HTTP.Port)
	assert.Equal(t, "db", c.Postgres.Host)
	assert.Equal(t, BrokerRabbitMQ, c.Broker.Kind)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Broker.KafkaBrokers)
	assert.Equal(t, 3*time.Second, c.Gateway.Timeout)
	assert.Equal(t, LockMemory, c.Lock.Driver)
	assert.Equal(t, "text", c.Log.Format)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("GATEWAY_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{name: "unknown broker", env: map[string]string{"BROKER_KIND": "nats"}, errMsg: "BROKER_KIND"},
		{name: "unknown lock driver", env: map[string]string{"LOCK_DRIVER": "etcd"}, errMsg: "LOCK_DRIVER"},
		{name: "success rate", env: map[string]string{"GATEWAY_SUCCESS_RATE": "101"}, errMsg: "GATEWAY_SUCCESS_RATE"},
		{name: "lock ttl too short", env: map[string]string{"LOCK_TTL": "5s", "GATEWAY_TIMEOUT": "10s"}, errMsg: "LOCK_TTL"},
		{name: "lock ttl ignores finalize", env: map[string]string{"LOCK_TTL": "12s", "GATEWAY_TIMEOUT": "10s"}, errMsg: "LOCK_TTL"},
		{
			name:   "lock ttl without headroom",
			env:    map[string]string{"LOCK_TTL": "18s", "GATEWAY_TIMEOUT": "10s", "GATEWAY_FINALIZE_TIMEOUT": "5s"},
			errMsg: "LOCK_TTL",
		},
		{name: "finalize timeout", env: map[string]string{"GATEWAY_FINALIZE_TIMEOUT": "0s"}, errMsg: "GATEWAY_FINALIZE_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_LockTTLCoversWholePaymentSection(t *testing.T) {
	t.Setenv("GATEWAY_TIMEOUT", "10s")
	t.Setenv("GATEWAY_FINALIZE_TIMEOUT", "5s")
	t.Setenv("LOCK_TTL", "20s")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, c.Gateway.Timeout+c.Gateway.FinalizeTimeout+LockHeadroom, c.Lock.TTL)
}
