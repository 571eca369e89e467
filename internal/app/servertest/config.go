package servertest

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string
	JwtSecret          string
	AccessTokenTTL     time.Duration
	QuestionsPerBattle int
	BattleDuration     time.Duration
}

func NewConfig() Config {
	viper.AutomaticEnv()
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("JWT_SECRET", "servertest-secret")
	viper.SetDefault("ACCESS_TOKEN_TTL", "1h")
	viper.SetDefault("QUESTIONS_PER_BATTLE", 5)
	viper.SetDefault("BATTLE_DURATION", "5m")

	return Config{
		Port:               viper.GetString("PORT"),
		JwtSecret:          viper.GetString("JWT_SECRET"),
		AccessTokenTTL:     viper.GetDuration("ACCESS_TOKEN_TTL"),
		QuestionsPerBattle: viper.GetInt("QUESTIONS_PER_BATTLE"),
		BattleDuration:     viper.GetDuration("BATTLE_DURATION"),
	}
}
