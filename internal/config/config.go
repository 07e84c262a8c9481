package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 配送サービス（送料はサーバー側で決める）
type Courier struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Cost int64  `json:"cost"`
	ETD  string `json:"etd"`
}

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod

	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	DBMaxOpenConns   int

	JWTSecret      string // JWT署名シークレット
	AccessTokenTTL time.Duration

	AppURL string // 自分のURL（mock決済のリダイレクト先に使う）
	FEURL  string // フロントURL（CORSと決済後の戻り先）

	MidtransServerKey  string
	MidtransClientKey  string
	MidtransProduction bool

	MinPayableAmount     int64
	PaymentExpiryMinutes int

	RedisAddr       string // 空ならキャッシュなし
	RedisPassword   string
	ProductCacheTTL time.Duration

	RabbitMQURL         string // 空ならイベントはログに出すだけ
	OrderEventsExchange string

	Couriers []Courier
}

var defaultCouriers = []Courier{
	{Code: "jne-reg", Name: "JNE Regular", Cost: 15000, ETD: "2-3 days"},
	{Code: "jne-yes", Name: "JNE YES", Cost: 30000, ETD: "1 day"},
	{Code: "sicepat-reg", Name: "SiCepat Regular", Cost: 12000, ETD: "2-4 days"},
}

// Loadは.env（あれば）を読んでから環境変数を解釈する
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnvはgetenvから設定を組み立てる（テストでは差し替える）
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:  withDefault(getenv("PORT"), "8080"),
		GoEnv: withDefault(getenv("GO_ENV"), "dev"),

		DatabaseURL:      getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER"),
		PostgresPassword: getenv("POSTGRES_PASSWORD"),
		PostgresDB:       getenv("POSTGRES_DB"),
		PostgresHost:     withDefault(getenv("POSTGRES_HOST"), "localhost"),

		JWTSecret: getenv("JWT_SECRET"),

		AppURL: strings.TrimRight(withDefault(getenv("APP_URL"), "http://localhost:8080"), "/"),
		FEURL:  strings.TrimRight(withDefault(getenv("FE_URL"), "http://localhost:3000"), "/"),

		MidtransServerKey: strings.TrimSpace(getenv("MIDTRANS_SERVER_KEY")),
		MidtransClientKey: strings.TrimSpace(getenv("MIDTRANS_CLIENT_KEY")),

		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),

		RabbitMQURL:         getenv("RABBITMQ_URL"),
		OrderEventsExchange: withDefault(getenv("ORDER_EVENTS_EXCHANGE"), "storefront.orders"),

		Couriers: defaultCouriers,
	}

	var err error
	if cfg.PostgresPort, err = intOr(getenv, "POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxOpenConns, err = intOr(getenv, "DB_MAX_OPEN_CONNS", 20); err != nil {
		return Config{}, err
	}
	ttlMin, err := intOr(getenv, "ACCESS_TOKEN_TTL_MINUTES", 15)
	if err != nil {
		return Config{}, err
	}
	cfg.AccessTokenTTL = time.Duration(ttlMin) * time.Minute

	minPayable, err := intOr(getenv, "MIN_PAYABLE_AMOUNT", 10000)
	if err != nil {
		return Config{}, err
	}
	cfg.MinPayableAmount = int64(minPayable)

	if cfg.PaymentExpiryMinutes, err = intOr(getenv, "PAYMENT_EXPIRY_MINUTES", 60); err != nil {
		return Config{}, err
	}
	cacheSec, err := intOr(getenv, "PRODUCT_CACHE_TTL_SECONDS", 300)
	if err != nil {
		return Config{}, err
	}
	cfg.ProductCacheTTL = time.Duration(cacheSec) * time.Second

	if v := getenv("MIDTRANS_PRODUCTION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("MIDTRANS_PRODUCTION must be bool: %w", err)
		}
		cfg.MidtransProduction = b
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
	}
	if cfg.MinPayableAmount <= 0 {
		return Config{}, fmt.Errorf("MIN_PAYABLE_AMOUNT must be positive")
	}
	if cfg.PaymentExpiryMinutes <= 0 {
		return Config{}, fmt.Errorf("PAYMENT_EXPIRY_MINUTES must be positive")
	}

	return cfg, nil
}

// 両方のキーがそろっているときだけlive
func (c Config) PaymentMode() string {
	if c.MidtransServerKey != "" && c.MidtransClientKey != "" {
		return "live"
	}
	return "mock"
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// gorm(postgres)用の接続文字列
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDB,
		RawQuery: "sslmode=disable&TimeZone=UTC",
	}
	return u.String()
}

func withDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

func intOr(getenv func(string) string, key string, def int) (int, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
