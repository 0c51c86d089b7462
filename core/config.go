package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string `mapstructure:"env"` // DEV (local; default), TEST, QA, PROD
		Build        string `mapstructure:"build"`
		Debug        bool   `mapstructure:"debug"`
		TestMode     bool   `mapstructure:"testMode"`
		AppName      string `mapstructure:"appName"`
		SecretKey    string `mapstructure:"secretKey"`
		RollbarToken string `mapstructure:"rollbarToken"`
		WorkDir      string `mapstructure:"-"`

		Server   ServerConfig   `mapstructure:"server"`
		Database DatabaseConfig `mapstructure:"database"`
		Chat     ChatConfig     `mapstructure:"chat"`
		Redis    RedisConfig    `mapstructure:"redis"`
	}

	ServerConfig struct {
		Host                      string        `mapstructure:"host"`
		Address                   string        `mapstructure:"address"`
		DebugHost                 string        `mapstructure:"debugHost"`
		DisableReqLogs            bool          `mapstructure:"disableReqLogs"`
		ShutdownTimeout           time.Duration `mapstructure:"shutdownTimeout"`
		JWTExpirationDelta        time.Duration `mapstructure:"jwtExpirationDelta"`
		JWTRefreshExpirationDelta time.Duration `mapstructure:"jwtRefreshExpirationDelta"`
	}

	DatabaseConfig struct {
		Engine        string `mapstructure:"engine"` // postgres | sqlite3
		Host          string `mapstructure:"host"`
		Port          string `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminUser"`
		AdminPassword string `mapstructure:"adminPassword"`
		DisableTLS    bool   `mapstructure:"disableTLS"`
	}

	ChatConfig struct {
		GroupPrefix    string        `mapstructure:"groupPrefix"`
		Broker         string        `mapstructure:"broker"` // memory | redis
		SendBuffer     int           `mapstructure:"sendBuffer"`
		MaxMessageSize int64         `mapstructure:"maxMessageSize"` // 0: unlimited
		WriteWait      time.Duration `mapstructure:"writeWait"`
		PongWait       time.Duration `mapstructure:"pongWait"`
		PingPeriod     time.Duration `mapstructure:"pingPeriod"`
		PersistTimeout time.Duration `mapstructure:"persistTimeout"`
		CheckOrigin    bool          `mapstructure:"checkOrigin"`
	}

	RedisConfig struct {
		Addr          string `mapstructure:"addr"`
		Password      string `mapstructure:"password"`
		DB            int    `mapstructure:"db"`
		ChannelPrefix string `mapstructure:"channelPrefix"`
	}
)

const (
	BrokerMemory = "memory"
	BrokerRedis  = "redis"
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "masomo")
	v.SetDefault("database.user", "masomo")
	v.SetDefault("database.password", "masomo")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("chat.groupPrefix", "chat_")
	v.SetDefault("chat.broker", BrokerMemory)
	v.SetDefault("chat.sendBuffer", 256)
	v.SetDefault("chat.maxMessageSize", 0) // bytes; 0 is unlimited, larger frames are dropped
	v.SetDefault("chat.writeWait", 10*time.Second)
	v.SetDefault("chat.pongWait", 60*time.Second)
	v.SetDefault("chat.pingPeriod", 54*time.Second) // must be less than pongWait
	v.SetDefault("chat.persistTimeout", 10*time.Second)
	v.SetDefault("chat.checkOrigin", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channelPrefix", "masomo:")
}

// NewConfig loads the app configuration from defaults, an optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed by the upper-cased env, eg. `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatal(fmt.Errorf("config.Unmarshal: %v", err))
	}
	conf.WorkDir = wd
	return conf
}
