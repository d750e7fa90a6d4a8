package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HttpPort string

	// OpenAI-compatible model endpoint
	OpenAIKey   string
	OpenAIBase  string
	OpenAIModel string

	// Knowledge service (vectorize + search)
	KnowledgeAgent string

	// S3/MinIO
	BucketEndpoint  string
	BucketAccessID  string
	BucketAccessKey string
	BucketName      string
	BucketRegion    string
	UseSSL          bool   // MinIO: false, S3: true
	StorageType     string // "minio" or "s3"

	// Redis
	RedisURL      string
	RedisPassword string

	// Postgres
	Host     string
	User     string
	Password string
	DBName   string
	Port     string

	// pipeline defaults
	GroupSize     int
	VectorTimeout time.Duration
	SearchTopK    int
	HistoryBudget int
}

func LoadConfig() *Config {
	groupSize, _ := strconv.Atoi(os.Getenv("GROUP_SIZE"))
	if groupSize <= 0 {
		groupSize = 10
	}
	storageType := os.Getenv("STORAGE_TYPE")
	if storageType == "" {
		storageType = "minio"
	}
	return &Config{
		HttpPort:        os.Getenv("PORT"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBase:      os.Getenv("OPENAI_API_BASE"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),
		KnowledgeAgent:  os.Getenv("KNOWLEDGE_AGENT"),
		BucketEndpoint:  os.Getenv("BUCKET_ENDPOINT"),
		BucketAccessID:  os.Getenv("BUCKET_ACCESS_ID"),
		BucketAccessKey: os.Getenv("BUCKET_ACCESS_KEY"),
		BucketName:      os.Getenv("BUCKET_NAME"),
		BucketRegion:    os.Getenv("BUCKET_REGION"),
		UseSSL:          os.Getenv("BUCKET_USE_SSL") == "true",
		StorageType:     storageType,
		RedisURL:        os.Getenv("REDIS_URL"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		Host:            os.Getenv("PG_HOST"),
		User:            os.Getenv("PG_USER"),
		Password:        os.Getenv("PG_PASSWORD"),
		DBName:          os.Getenv("PG_DB"),
		Port:            os.Getenv("PG_PORT"),
		GroupSize:       groupSize,
		VectorTimeout:   60 * time.Second,
		SearchTopK:      3,
		HistoryBudget:   4096,
	}
}
