package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string

	QdrantURL      string
	CollectionName string

	ElasticURL      string
	ElasticIndex    string
	ElasticUser     string
	ElasticPassword string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	S3Endpoint   string // set for MinIO / non-AWS deployments
	BucketName   string

	AIAPIKey   string
	EmbedModel string
	EmbedDim   int

	DefaultChunkSize    int
	DefaultChunkOverlap int

	EnableHybridSearch bool
	VectorWeight       float64
	KeywordWeight      float64

	APIKey string
	Port   string
}

// LoadConfig loads the environment variables and returns the config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		QdrantURL:      getEnv("QDRANT_URL", "http://localhost:6333"),
		CollectionName: getEnv("COLLECTION_NAME", "documents"),

		ElasticURL:      getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		ElasticIndex:    getEnv("ELASTICSEARCH_INDEX", "documents"),
		ElasticUser:     getEnv("ELASTICSEARCH_USERNAME", ""),
		ElasticPassword: getEnv("ELASTICSEARCH_PASSWORD", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", "minioadmin"),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", "minioadmin"),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		BucketName:   getEnv("BUCKET_NAME", "documents"),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:   getEnvInt("EMBED_DIM", 768),

		DefaultChunkSize:    getEnvInt("DEFAULT_CHUNK_SIZE", 1000),
		DefaultChunkOverlap: getEnvInt("DEFAULT_CHUNK_OVERLAP", 200),

		EnableHybridSearch: getEnvBool("ENABLE_HYBRID_SEARCH", true),
		VectorWeight:       getEnvFloat("VECTOR_WEIGHT", 0.7),
		KeywordWeight:      getEnvFloat("KEYWORD_WEIGHT", 0.3),

		APIKey: getEnv("API_KEY", ""),
		Port:   getEnv("PORT", "8001"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a float, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}
