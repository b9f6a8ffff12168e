package config

import (
	"errors"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"monofloor-presence"`
	// 允许跨域的来源，逗号分隔；为空时放行所有来源
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"monofloor"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	// 只读副本，为空时不启用 dbresolver
	PostgreSQLReplicaHost string `env:"POSTGRESQL_REPLICA_HOST" envDefault:""`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"mfp"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// JWT 配置
	JWTSecret        string `env:"JWT_SECRET"` // 必填，用于签名 JWT
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"720"`
	JWTRefreshDays   int    `env:"JWT_REFRESH_DAYS" envDefault:"30"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置
	OTLPEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`

	// 工作日时区，所有“当天”都按该时区切分
	WorkdayTimezone string `env:"WORKDAY_TIMEZONE" envDefault:"America/Sao_Paulo"`

	// 在岗检测
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	GPSSilenceThreshold  time.Duration `env:"GPS_SILENCE_THRESHOLD" envDefault:"60s"`
	GPSConfirmMisses     int           `env:"GPS_CONFIRM_MISSES" envDefault:"2"`
	MaxSessionDuration   time.Duration `env:"MAX_SESSION_DURATION" envDefault:"16h"`
	ManualPriorityWindow time.Duration `env:"MANUAL_PRIORITY_WINDOW" envDefault:"30s"`
	GeofencePolicy       string        `env:"GEOFENCE_POLICY" envDefault:"flag"` // flag, reject

	// 午休
	LunchTickInterval   time.Duration `env:"LUNCH_TICK_INTERVAL" envDefault:"1m"`
	LunchPromptAfter    time.Duration `env:"LUNCH_PROMPT_AFTER" envDefault:"4h"`
	LunchAlertMinutes   []int         `env:"LUNCH_ALERT_MINUTES" envDefault:"70,80,90" envSeparator:","`
	LunchTimeoutAfter   time.Duration `env:"LUNCH_TIMEOUT_AFTER" envDefault:"120m"`
	BreakMandatoryHours float64       `env:"BREAK_MANDATORY_HOURS" envDefault:"6"`
	SkippedBreakXP      int           `env:"SKIPPED_BREAK_XP_PENALTY" envDefault:"20"`

	// 日结与薪资
	LongBreakHours     float64       `env:"LONG_BREAK_HOURS" envDefault:"6"`
	LongBreakInclusive bool          `env:"LONG_BREAK_INCLUSIVE" envDefault:"true"`
	LongBreakMinutes   int           `env:"LONG_BREAK_MINUTES" envDefault:"60"`
	ShortBreakHours    float64       `env:"SHORT_BREAK_HOURS" envDefault:"4"`
	ShortBreakMinutes  int           `env:"SHORT_BREAK_MINUTES" envDefault:"15"`
	DailyNormalHours   float64       `env:"DAILY_NORMAL_HOURS" envDefault:"8"`
	RateTablePath      string        `env:"RATE_TABLE_PATH" envDefault:""`
	SummaryCacheTTL    time.Duration `env:"SUMMARY_CACHE_TTL" envDefault:"10m"`

	// 缺勤
	AbsenceUnreportedXP int `env:"ABSENCE_UNREPORTED_XP_PENALTY" envDefault:"50"`
	AbsenceNotifiedXP   int `env:"ABSENCE_NOTIFIED_XP_PENALTY" envDefault:"0"`

	// 定时任务（工作日时区的 HH:MM）
	EndOfShiftAt       string `env:"END_OF_SHIFT_AT" envDefault:"23:00"`
	BreakReviewAt      string `env:"BREAK_REVIEW_AT" envDefault:"05:00"`
	AbsenceDetectionAt string `env:"ABSENCE_DETECTION_AT" envDefault:"20:00"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
}

// Validate 由各个进程入口调用，测试只依赖默认值
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.GeofencePolicy != "flag" && c.GeofencePolicy != "reject" {
		return errors.New("GEOFENCE_POLICY must be flag or reject")
	}
	if c.GPSConfirmMisses < 1 {
		return errors.New("GPS_CONFIRM_MISSES must be at least 1")
	}
	if _, err := time.LoadLocation(c.WorkdayTimezone); err != nil {
		return errors.New("WORKDAY_TIMEZONE is not a valid IANA zone")
	}
	if c.RateTablePath == "" {
		log.Printf("WARN: RATE_TABLE_PATH is not set, using built-in role rates")
	}
	return nil
}

// Location 返回工作日时区，非法值退回 UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.WorkdayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) GetDSN() string {
	return c.dsnFor(c.PostgreSQLHost)
}

func (c *Config) GetReplicaDSN() string {
	if c.PostgreSQLReplicaHost == "" {
		return ""
	}
	return c.dsnFor(c.PostgreSQLReplicaHost)
}

func (c *Config) dsnFor(host string) string {
	return "host=" + host +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
