package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Email     string `env:"EMAIL,required"`
		Password  string `env:"PASSWORD,required"`
		FirstName string `env:"FIRST_NAME" envDefault:"System"`
		LastName  string `env:"LAST_NAME" envDefault:"Administrator"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天，单位秒
		Secret     string `env:"SECRET,required"`
		CookieName string `env:"COOKIE_NAME" envDefault:"__employer_access_token"`
	} `envPrefix:"JWT_"`
	Seed struct {
		Account struct {
			Password string `env:"PASSWORD" envDefault:"seed-password"`
			Domain   string `env:"DOMAIN" envDefault:"example.com"`
		} `envPrefix:"ACCOUNT_"`
	} `envPrefix:"SEED_"`
	Email struct {
		SMTP struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD"`
		ConnectTimeout   int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationTimeout int    `env:"OPERATION_TIMEOUT" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	OTP struct {
		Expiration  int `env:"EXPIRATION" envDefault:"900"` // 15 分钟，单位秒
		MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"5"`
	} `envPrefix:"OTP_"`
	NewAccount struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_ACCOUNT_"`
	RateLimit struct {
		AuthRequestsPerMinute int `env:"AUTH_REQUESTS_PER_MINUTE" envDefault:"20"`
	} `envPrefix:"RATE_LIMIT_"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func LoadConfig() (*Config, error) {
	// .env 文件可选，环境变量优先
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}
