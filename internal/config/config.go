package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	APIBase        string `mapstructure:"API_BASE"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	Port           string `mapstructure:"PORT"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	AccessSecret   string `mapstructure:"ACCESS_SECRET"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBPort         string `mapstructure:"DB_PORT"`

	SigninRateLimit     int `mapstructure:"SIGNIN_RATE_LIMIT"`
	SigninRateWindowSec int `mapstructure:"SIGNIN_RATE_WINDOW_SEC"`
}

func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	// ВАЖНО: Явно биндим
	viper.BindEnv("API_BASE")
	viper.BindEnv("REDIS_ADDR")
	viper.BindEnv("PORT")
	viper.BindEnv("ALLOWED_ORIGINS")
	viper.BindEnv("ACCESS_SECRET")
	viper.BindEnv("DB_HOST")
	viper.BindEnv("DB_USER")
	viper.BindEnv("DB_PASSWORD")
	viper.BindEnv("DB_NAME")
	viper.BindEnv("DB_PORT")
	viper.BindEnv("SIGNIN_RATE_LIMIT")
	viper.BindEnv("SIGNIN_RATE_WINDOW_SEC")

	viper.SetDefault("API_BASE", "http://localhost:8080/api")
	viper.SetDefault("PORT", ":8080")
	viper.SetDefault("SIGNIN_RATE_LIMIT", 5)
	viper.SetDefault("SIGNIN_RATE_WINDOW_SEC", 60)

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
