package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/watchparty/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 9,
	}
	roomCodeLength = configVar[int]{
		envKey:       "SERVER_ROOM_CODE_LENGTH",
		flagKey:      "room-code-length",
		defaultValue: 6,
	}
	roomTTLHours = configVar[int]{
		envKey:       "SERVER_ROOM_TTL_HOURS",
		flagKey:      "room-ttl-hours",
		defaultValue: 24,
	}
	leadTimeMs = configVar[int]{
		envKey:       "SERVER_LEAD_TIME_MS",
		flagKey:      "lead-time-ms",
		defaultValue: 3000,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, "Credential signing secret")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Maximum number of members in a room")
	pflag.Int(roomCodeLength.flagKey, roomCodeLength.defaultValue, "Length of generated room codes")
	pflag.Int(roomTTLHours.flagKey, roomTTLHours.defaultValue, "Idle room expiry in hours")
	pflag.Int(leadTimeMs.flagKey, leadTimeMs.defaultValue, "Delay before a scheduled playback start in milliseconds")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(membersLimit.flagKey, membersLimit.envKey)
	viper.BindEnv(roomCodeLength.flagKey, roomCodeLength.envKey)
	viper.BindEnv(roomTTLHours.flagKey, roomTTLHours.envKey)
	viper.BindEnv(leadTimeMs.flagKey, leadTimeMs.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	return &app.AppConfig{
		Secret:         viper.GetString(secret.flagKey),
		Host:           viper.GetString(host.flagKey),
		Port:           viper.GetInt(port.flagKey),
		LogLevel:       viper.GetString(logLevel.flagKey),
		MembersLimit:   viper.GetInt(membersLimit.flagKey),
		RoomCodeLength: viper.GetInt(roomCodeLength.flagKey),
		RoomTTLHours:   viper.GetInt(roomTTLHours.flagKey),
		LeadTimeMs:     viper.GetInt(leadTimeMs.flagKey),
		RedisHost:      viper.GetString(redisHost.flagKey),
		RedisPort:      viper.GetInt(redisPort.flagKey),
		RedisPassword:  viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
