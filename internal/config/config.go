// Package config предоставляет структуры и функции для парсинга и загрузки
// конфига. Секреты Stripe заданы парами prod/test и разрешаются один раз
// на старте процесса в неизменяемый объект Stripe.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string `yaml:"env" env-default:"prod"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	RabbitMQConnection      string `yaml:"rabbitmq_connection"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	StripeSecrets           `yaml:"stripe"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// StripeSecrets хранит пары секретов prod/test как они заданы в конфиге,
// до разрешения по окружению.
type StripeSecrets struct {
	SecretKey          string `yaml:"secret_key"`
	TestSecretKey      string `yaml:"test_secret_key"`
	WebhookSecret      string `yaml:"webhook_secret"`
	TestWebhookSecret  string `yaml:"test_webhook_secret"`
	PriceIDMonthly     string `yaml:"price_id_monthly"`
	TestPriceIDMonthly string `yaml:"test_price_id_monthly"`
	PriceIDYearly      string `yaml:"price_id_yearly"`
	TestPriceIDYearly  string `yaml:"test_price_id_yearly"`
	SuccessURL         string `yaml:"success_url"`
	TestSuccessURL     string `yaml:"test_success_url"`
	CancelURL          string `yaml:"cancel_url"`
	TestCancelURL      string `yaml:"test_cancel_url"`
}

// Stripe — разрешённая конфигурация платёжного провайдера: для каждого
// значения берётся секрет своего окружения, при его отсутствии — парный.
// Создаётся один раз на старте и внедряется в сервисы.
type Stripe struct {
	Environment    string
	SecretKey      string
	WebhookSecret  string
	PriceIDMonthly string
	PriceIDYearly  string
	SuccessURL     string
	CancelURL      string
}

// PriceID возвращает идентификатор цены для типа плана.
// Пустая строка означает ненастроенный план.
func (s Stripe) PriceID(planType string) string {
	switch planType {
	case "monthly":
		return s.PriceIDMonthly
	case "yearly":
		return s.PriceIDYearly
	default:
		return ""
	}
}

// Resolve разрешает пары секретов по окружению ("prod" или "dev"):
// предпочитается секрет своего окружения, при пустом значении берётся
// парный. Отсутствие обоих значений — ошибка конфигурации.
func (ss StripeSecrets) Resolve(env string) (Stripe, error) {
	if env != "dev" {
		env = "prod"
	}

	pick := func(name, prod, test string) (string, error) {
		first, second := prod, test
		if env == "dev" {
			first, second = test, prod
		}
		if first != "" {
			return first, nil
		}
		if second != "" {
			return second, nil
		}
		return "", fmt.Errorf("stripe secret %s is not configured for %s", name, env)
	}

	var (
		resolved = Stripe{Environment: env}
		err      error
	)
	if resolved.SecretKey, err = pick("secret_key", ss.SecretKey, ss.TestSecretKey); err != nil {
		return Stripe{}, err
	}
	if resolved.WebhookSecret, err = pick("webhook_secret", ss.WebhookSecret, ss.TestWebhookSecret); err != nil {
		return Stripe{}, err
	}
	if resolved.PriceIDMonthly, err = pick("price_id_monthly", ss.PriceIDMonthly, ss.TestPriceIDMonthly); err != nil {
		return Stripe{}, err
	}
	if resolved.PriceIDYearly, err = pick("price_id_yearly", ss.PriceIDYearly, ss.TestPriceIDYearly); err != nil {
		return Stripe{}, err
	}
	if resolved.SuccessURL, err = pick("success_url", ss.SuccessURL, ss.TestSuccessURL); err != nil {
		return Stripe{}, err
	}
	if resolved.CancelURL, err = pick("cancel_url", ss.CancelURL, ss.TestCancelURL); err != nil {
		return Stripe{}, err
	}
	return resolved, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH, при ошибке завершает процесс.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
