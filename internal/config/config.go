package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"120"` // 同步排课可能耗时较长
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
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"排课管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Email struct {
		NotifyTo []string `env:"NOTIFY_TO" envSeparator:","` // 运行结束后额外通知的邮箱
		SMTP     struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN             string `env:"DSN,required"`
		PublishTimeout  int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		SchedulingQueue string `env:"SCHEDULING_QUEUE" envDefault:"scheduling_queue"`
		EmailQueue      string `env:"EMAIL_QUEUE" envDefault:"email_queue"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                  string `env:"HOST" envDefault:"localhost"`
		Port                  int    `env:"PORT" envDefault:"6379"`
		Password              string `env:"PASSWORD,required"`
		ConnectTimeout        int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration   int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
		RunLockExpiration     int    `env:"RUN_LOCK_EXPIRATION" envDefault:"600"`
		ResultCacheExpiration int    `env:"RESULT_CACHE_EXPIRATION" envDefault:"3600"`
	} `envPrefix:"REDIS_"`
	Scheduler struct {
		PopulationSize    int     `env:"POPULATION_SIZE" envDefault:"250"`
		MinPopulationSize int     `env:"MIN_POPULATION_SIZE" envDefault:"250"`
		MinGenerations    int     `env:"MIN_GENERATIONS" envDefault:"100"`
		MaxGenerations    int     `env:"MAX_GENERATIONS" envDefault:"500"`
		MutationRate      float64 `env:"MUTATION_RATE" envDefault:"0.01"`
		CrossoverMethod   string  `env:"CROSSOVER_METHOD" envDefault:"single_point"`
		ElitismCount      int     `env:"ELITISM_COUNT" envDefault:"1"`
		AdaptiveMutation  bool    `env:"ADAPTIVE_MUTATION" envDefault:"true"`
		Seed              uint64  `env:"SEED" envDefault:"0"`
		CacheSize         int     `env:"CACHE_SIZE" envDefault:"100000"`
	} `envPrefix:"SCHEDULER_"`
	Archive struct {
		Bucket         string `env:"BUCKET"` // 为空时不归档
		Region         string `env:"REGION" envDefault:"us-east-1"`
		Endpoint       string `env:"ENDPOINT"`
		ForcePathStyle bool   `env:"FORCE_PATH_STYLE" envDefault:"true"`
		Prefix         string `env:"PREFIX" envDefault:"reports/"`
	} `envPrefix:"ARCHIVE_"`
	Export struct {
		Directory string `env:"DIRECTORY" envDefault:"./exports"`
	} `envPrefix:"EXPORT_"`
}

func LoadConfig() (*Config, error) {
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

// LoadSchedulerConfig 只解析排课参数，供不依赖数据库等外部服务的命令行工具使用
func LoadSchedulerConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(&cfg.Scheduler, env.Options{Prefix: "SCHEDULER_"}); err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(&cfg.Export, env.Options{Prefix: "EXPORT_"}); err != nil {
		return nil, err
	}
	return cfg, nil
}
