package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/wfunc/mafiaserver/rules"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Rooms    RoomsConfig    `mapstructure:"rooms"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

// 存储驱动
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverGorm     = "gorm"
)

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameConfig 角色分配比例和房间策略
type GameConfig struct {
	MinPlayers          int  `mapstructure:"min_players"`
	MafiaDivisor        int  `mapstructure:"mafia_divisor"`
	PoliceDivisor       int  `mapstructure:"police_divisor"`
	MaxMafia            int  `mapstructure:"max_mafia"`
	MaxPolice           int  `mapstructure:"max_police"`
	AllowDuplicateNames bool `mapstructure:"allow_duplicate_names"`
	CodeLength          int  `mapstructure:"code_length"`
	MaxNameLength       int  `mapstructure:"max_name_length"`
}

// Distribution converts the game section into a role ratio policy.
func (g GameConfig) Distribution() rules.Distribution {
	return rules.Distribution{
		MinPlayers:    g.MinPlayers,
		MafiaDivisor:  g.MafiaDivisor,
		PoliceDivisor: g.PoliceDivisor,
		MaxMafia:      g.MaxMafia,
		MaxPolice:     g.MaxPolice,
	}
}

type RoomsConfig struct {
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.metrics_address", ":9090")

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "mafia")

	d := rules.DefaultDistribution()
	v.SetDefault("game.min_players", d.MinPlayers)
	v.SetDefault("game.mafia_divisor", d.MafiaDivisor)
	v.SetDefault("game.police_divisor", d.PoliceDivisor)
	v.SetDefault("game.max_mafia", d.MaxMafia)
	v.SetDefault("game.max_police", d.MaxPolice)
	v.SetDefault("game.allow_duplicate_names", false)
	v.SetDefault("game.code_length", 6)
	v.SetDefault("game.max_name_length", 24)

	v.SetDefault("rooms.idle_timeout", 2*time.Hour)
	v.SetDefault("rooms.reap_interval", time.Minute)

	v.SetDefault("log.development", false)
}

// LoadConfig reads config.yaml from path. A missing file is not an error;
// defaults apply and MAFIA_* environment variables (also from .env) override.
func LoadConfig(path string) (config *Config, err error) {
	// .env 可选
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MAFIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	config = &Config{}
	if err = v.Unmarshal(config); err != nil {
		return nil, err
	}
	if err = config.Game.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// validate 每局最多一个杀手和一个警察
func (g GameConfig) validate() error {
	if g.MaxMafia > rules.MaxPerRole || g.MaxPolice > rules.MaxPerRole {
		return fmt.Errorf("game.max_mafia=%d and game.max_police=%d: at most %d of each role is allowed",
			g.MaxMafia, g.MaxPolice, rules.MaxPerRole)
	}
	return nil
}
