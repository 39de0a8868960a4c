package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

func init() {
	loadConfig()
}

func loadConfig() {
	viper.SetConfigFile("./config/config.yaml")
	viper.SetEnvPrefix("nebula")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("gateway.ws_url", "ws://localhost:8080/ws")
	viper.SetDefault("api.base_url", "http://localhost:8080/api")
	viper.SetDefault("auth.token", "")
	viper.SetDefault("store.inactive_limit", 25)
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.ttl_hours", 24)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Failed to read config file:", err)
		return
	}
	log.Println("Config Loaded")
}

func GetString(key string) string {
	return viper.GetString(key)
}

func GetInt(key string) int {
	return viper.GetInt(key)
}
