package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"crm-social/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	Database    Database    `json:"database"`
	App         App         `json:"app"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	RedisClient RedisClient `json:"redisClient"`
	Logger      Logger      `json:"logger"`
	Platforms   Platforms   `json:"platforms"`
	Adapter     Adapter     `json:"adapter"`
	Events      Events      `json:"events"`
	Share       Share       `json:"share"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
	// AllowOrigins lists the CRM front-ends allowed by CORS.
	AllowOrigins []string `json:"allowOrigins"`
}

type Database struct {
	// Store selects the credential store: psql, mssql, mysql or mongo.
	Store string `json:"store"`
	Psql  Db     `json:"psql"`
	MySql Db     `json:"mysql"`
	Mongo Db     `json:"mongo"`
	Mssql Db     `json:"mssql"`
}

type Db struct {
	Name     string `json:"string"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

type Logger struct {
	Format string `json:"format"`
	Level  string `json:"level"`
}

// Platforms holds the app registration of every supported platform.
type Platforms struct {
	Facebook  PlatformApp `json:"facebook"`
	Instagram PlatformApp `json:"instagram"`
	YouTube   PlatformApp `json:"youtube"`
	Zalo      PlatformApp `json:"zalo"`
}

type PlatformApp struct {
	AppID       string   `json:"appId"`
	AppSecret   string   `json:"appSecret"`
	RedirectURI string   `json:"redirectURI"`
	APIBaseURL  string   `json:"apiBaseURL"`
	AuthBaseURL string   `json:"authBaseURL"`
	Scopes      []string `json:"scopes"`
}

// Adapter tunes the polling, retry and fan-out loops of the adapters.
type Adapter struct {
	ContainerPollAttempts        int `json:"containerPollAttempts"`
	ContainerPollIntervalSeconds int `json:"containerPollIntervalSeconds"`
	UploadPollAttempts           int `json:"uploadPollAttempts"`
	UploadPollIntervalSeconds    int `json:"uploadPollIntervalSeconds"`
	UploadRetries                int `json:"uploadRetries"`
	UploadBaseDelayMillis        int `json:"uploadBaseDelayMillis"`
	ResumeAttempts               int `json:"resumeAttempts"`
	FanOutBatchSize              int `json:"fanOutBatchSize"`
	FanOutConcurrency            int `json:"fanOutConcurrency"`
	TokenBufferSeconds           int `json:"tokenBufferSeconds"`
	HTTPTimeoutSeconds           int `json:"httpTimeoutSeconds"`
	GraphRetries                 int `json:"graphRetries"`
}

// Events selects the bus adapter-layer events are published to.
type Events struct {
	// Provider is pubsub, servicebus or empty to only log events.
	Provider string `json:"provider"`
	Topic    string `json:"topic"`
	Queue    string `json:"queue"`
}

// Share lists the platforms a post may be published to.
type Share struct {
	Platforms []string `json:"platforms"`
}

var C Config

func init() {
	// OS env keeps precedence over config.env / .env
	LoadEnvFromFile("config.env", ".env")
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initPlatforms(&C)
	initAdapter(&C)
	initEvents(&C)
	// Prefer https redirect URIs locally when TLS enabled
	if C.App.TLSEnabled {
		for _, app := range []*PlatformApp{&C.Platforms.Facebook, &C.Platforms.Instagram, &C.Platforms.YouTube, &C.Platforms.Zalo} {
			if app.RedirectURI != "" && !hasHTTPS(app.RedirectURI) {
				app.RedirectURI = toHTTPSCallback(app.RedirectURI)
			}
		}
	}
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error if desired
			logger.GetLogger().Warn("Config file not found")
		} else {
			// Config file was found but another error was produced
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	// Config file found and successfully parsed
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if v := os.Getenv("DB_STORE"); v != "" {
		C.Database.Store = v
	}
	if C.Database.Store == "" {
		C.Database.Store = "psql"
	}
	logger.GetLogger().WithField("store", C.Database.Store).WithField("host", C.Database.Psql.Host).Info("Database configuration")
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}

	// Optional MSSQL config via environment variables (for Azure SQL in production)
	if C.Database.Mssql.Name == "" {
		if v := os.Getenv("MSSQL_DB_NAME"); v != "" {
			C.Database.Mssql.Name = v
		}
	}
	if C.Database.Mssql.Host == "" {
		if v := os.Getenv("MSSQL_HOST"); v != "" {
			C.Database.Mssql.Host = v
		}
	}
	if C.Database.Mssql.Password == "" {
		if v := os.Getenv("MSSQL_PASSWORD"); v != "" {
			C.Database.Mssql.Password = v
		}
	}
	if C.Database.Mssql.Port == "" {
		if v := os.Getenv("MSSQL_PORT"); v != "" {
			C.Database.Mssql.Port = v
		} else {
			C.Database.Mssql.Port = "1433"
		}
	}
	if C.Database.Mssql.User == "" {
		if v := os.Getenv("MSSQL_USER"); v != "" {
			C.Database.Mssql.User = v
		}
	}

	// Fill local/dev sensible defaults for MSSQL if still empty (matches docker-compose.yml)
	if C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = "localhost"
	}
	if C.Database.Mssql.Port == "" {
		C.Database.Mssql.Port = "1433"
	}
	// Default to SA user for local container only when nothing provided
	if C.Database.Mssql.User == "" {
		C.Database.Mssql.User = "sa"
	}
	if C.Database.Mssql.Password == "" {
		// Matches MSSQL_SA_PASSWORD in docker-compose.yml; safe for local dev only
		C.Database.Mssql.Password = "Toughpass1!"
	}
}

func initApp(C *Config) {
	// Prefer SECRET_KEY from environment for JWT verification; overrides config file when provided
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	// Allow overriding TLS settings via env variables (both enable and disable)
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	if C.App.TLSCertFile == "" {
		C.App.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	}
	if C.App.TLSKeyFile == "" {
		C.App.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	}
	// Prefer local certs if TLS enabled and paths not provided
	if C.App.TLSEnabled {
		if C.App.TLSCertFile == "" {
			if _, err := os.Stat("certs/localhost.crt"); err == nil {
				C.App.TLSCertFile = "certs/localhost.crt"
			}
		}
		if C.App.TLSKeyFile == "" {
			if _, err := os.Stat("certs/localhost.key"); err == nil {
				C.App.TLSKeyFile = "certs/localhost.key"
			}
		}
	}
	if C.App.TLSEnabled {
		logger.GetLogger().WithFields(map[string]interface{}{"cert": C.App.TLSCertFile, "key": C.App.TLSKeyFile}).Info("TLS enabled via configuration")
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func initEvents(C *Config) {
	C.Events.Provider = getConfigValue(C.Events.Provider, "EVENTS_PROVIDER", "")
	C.Events.Topic = getConfigValue(C.Events.Topic, "EVENTS_TOPIC", "crm-social-events")
	C.Events.Queue = getConfigValue(C.Events.Queue, "EVENTS_QUEUE", "crm-social-events")
	if C.Pubsub.ProjectID == "" {
		C.Pubsub.ProjectID = os.Getenv("PUBSUB_PROJECT_ID")
	}
	if C.ServiceBus.Namespace == "" {
		C.ServiceBus.Namespace = os.Getenv("SERVICEBUS_NAMESPACE")
	}
	if v := os.Getenv("ALLOW_ORIGINS"); v != "" {
		C.App.AllowOrigins = strings.Split(v, ",")
	}
}

// helpers to coerce local callback to https
func hasHTTPS(u string) bool { return len(u) >= 8 && u[:8] == "https://" }
func toHTTPSCallback(u string) string {
	// simple swap for localhost callbacks
	if len(u) >= 7 && u[:7] == "http://" {
		return "https://" + u[7:]
	}
	return u
}
