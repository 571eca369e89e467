package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ApiBaseUrl  string
	WsUrl       string
	SessionFile string

	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	MaxReconnects     int
	QueueLimit        int

	MatchFoundDelay time.Duration
	VerdictFlash    time.Duration
	InviteTTL       time.Duration
	SearchDebounce  time.Duration
}

func LoadConfig() (Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs/client")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("Api.BaseUrl", "http://localhost:8080/api")
	viper.SetDefault("Ws.Url", "ws://localhost:8080/ws")
	viper.SetDefault("Session.File", ".pkarena/session.json")
	viper.SetDefault("Ws.HeartbeatInterval", "30s")
	viper.SetDefault("Ws.ReconnectDelay", "3s")
	viper.SetDefault("Ws.MaxReconnects", 5)
	viper.SetDefault("Ws.QueueLimit", 64)
	viper.SetDefault("Battle.MatchFoundDelay", "3s")
	viper.SetDefault("Battle.VerdictFlash", "1500ms")
	viper.SetDefault("Arena.InviteTTL", "30s")
	viper.SetDefault("Arena.SearchDebounce", "300ms")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("fatal error config file: %w", err)
		}
	}

	return Config{
		ApiBaseUrl:        viper.GetString("Api.BaseUrl"),
		WsUrl:             viper.GetString("Ws.Url"),
		SessionFile:       viper.GetString("Session.File"),
		HeartbeatInterval: viper.GetDuration("Ws.HeartbeatInterval"),
		ReconnectDelay:    viper.GetDuration("Ws.ReconnectDelay"),
		MaxReconnects:     viper.GetInt("Ws.MaxReconnects"),
		QueueLimit:        viper.GetInt("Ws.QueueLimit"),
		MatchFoundDelay:   viper.GetDuration("Battle.MatchFoundDelay"),
		VerdictFlash:      viper.GetDuration("Battle.VerdictFlash"),
		InviteTTL:         viper.GetDuration("Arena.InviteTTL"),
		SearchDebounce:    viper.GetDuration("Arena.SearchDebounce"),
	}, nil
}
