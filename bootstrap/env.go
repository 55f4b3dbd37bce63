package bootstrap

import (
	"fmt"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	ProductionEnvironmentName  = "production"
	DevelopmentEnvironmentName = "development"
)

type Env struct {
	CassandraHosts        []string `env:"CASSANDRA_HOSTS" env-required:"true"`
	HTTPPortNumber        int      `env:"HTTP_PORT_NUMBER" env-default:"8080"`
	EnvironmentName       string   `env:"ENVIRONMENT_NAME" env-required:"true"`
	RabbitMQURL           string   `env:"RABBITMQ_URL" env-required:"true"`
	RedisURL              string   `env:"REDIS_URL" env-required:"true"`
	UIDGeneratorStartTime string   `env:"UNIQUE_ID_GENERATOR_START_TIME" env-default:"2024-06-13"`
	MachineID             uint16   `env:"MACHINE_ID" env-required:"true"`

	MaxConnections      int `env:"MAX_CONNECTIONS" env-default:"1000"`
	HeartbeatIntervalMs int `env:"HEARTBEAT_INTERVAL_MS" env-default:"30000"`
	HeartbeatTimeoutMs  int `env:"HEARTBEAT_TIMEOUT_MS" env-default:"45000"`
	AwayTimeoutMs       int `env:"AWAY_TIMEOUT_MS" env-default:"300000"`
	AFKTimeoutMs        int `env:"AFK_TIMEOUT_MS" env-default:"1800000"`
	EventRingSize       int `env:"EVENT_RING_SIZE" env-default:"64"`
	EventRingTTLMs      int `env:"EVENT_RING_TTL_MS" env-default:"300000"`
}

func (e *Env) HeartbeatInterval() time.Duration {
	return time.Duration(e.HeartbeatIntervalMs) * time.Millisecond
}

func (e *Env) HeartbeatTimeout() time.Duration {
	return time.Duration(e.HeartbeatTimeoutMs) * time.Millisecond
}

func (e *Env) AwayTimeout() time.Duration {
	return time.Duration(e.AwayTimeoutMs) * time.Millisecond
}

func (e *Env) AFKTimeout() time.Duration {
	return time.Duration(e.AFKTimeoutMs) * time.Millisecond
}

func (e *Env) EventRingTTL() time.Duration {
	return time.Duration(e.EventRingTTLMs) * time.Millisecond
}

func newEnv() (*Env, error) {
	var env Env
	err := cleanenv.ReadConfig(".env", &env)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(
		[]string{DevelopmentEnvironmentName, ProductionEnvironmentName},
		env.EnvironmentName,
	) {
		return nil, fmt.Errorf(
			"ENVIRONMENT_NAME must be one of %s or %s",
			ProductionEnvironmentName,
			DevelopmentEnvironmentName,
		)
	}

	return &env, nil
}
