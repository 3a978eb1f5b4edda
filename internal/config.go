package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	LogLevel            string        `env:"LOG_LEVEL,default=INFO"`
	WsAddress           string        `env:"WS_ADDRESS,default=:8080"`
	WsPath              string        `env:"WS_PATH,default=/ws"`
	GrpcAddress         string        `env:"GRPC_ADDRESS"`
	AdminAddress        string        `env:"ADMIN_ADDRESS"`
	BadgerFilepath      string        `env:"BADGER_FILEPATH,required=true"`
	JwtSecret           string        `env:"JWT_SECRET,required=true"`
	JwtIssuer           string        `env:"JWT_ISSUER,default=chat-relay"`
	AllowedOrigins      string        `env:"ALLOWED_ORIGINS"`
	LimitMessages       *int          `env:"LIMIT_MESSAGES"`
	ConnectionBuffer    int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	PersistBuffer       int           `env:"PERSIST_BUFFER_SIZE,default=1024"`
	PersistWorkers      int           `env:"PERSIST_WORKERS,default=2"`
	PersistTimeout      time.Duration `env:"PERSIST_TIMEOUT,default=5s"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval      time.Duration `env:"METRIC_INTERVAL,default=5s"`
	WriteTimeout        time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PingInterval        time.Duration `env:"PING_INTERVAL,default=30s"`
	EventRate           float64       `env:"EVENT_RATE,default=0"`
	EventBurst          int           `env:"EVENT_BURST,default=20"`
	CensoredWordsDir    string        `env:"CENSORED_WORDS_DIR"`
	CharReplacement     string        `env:"CHARACTER_REPLACEMENT,default=*"`
	VerifyMembership    bool          `env:"VERIFY_MEMBERSHIP,default=false"`
	StrictPresence      bool          `env:"STRICT_PRESENCE_IDENTITY,default=false"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD,default=10s"`
}

// Validate rejects values the components cannot run with.
func (c Config) Validate() error {
	if c.PersistWorkers < 1 {
		return fmt.Errorf("PERSIST_WORKERS must be at least 1, got %d", c.PersistWorkers)
	}
	if c.ConnectionBuffer < 1 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be at least 1, got %d", c.ConnectionBuffer)
	}
	if c.EventRate < 0 {
		return fmt.Errorf("EVENT_RATE must not be negative, got %v", c.EventRate)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
