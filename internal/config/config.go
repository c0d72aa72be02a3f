package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// DeletePolicy decides what happens to question sets when their passage is deleted.
type DeletePolicy string

const (
	DeleteCascade DeletePolicy = "cascade"
	DeleteBlock   DeletePolicy = "block"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver      string // sqlite|postgres|mongo
	DBDSN         string
	MongoDatabase string

	BlobBasePath      string
	EnableTranscripts bool

	AuthSecret    string
	TokenTTL      time.Duration
	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAIModel    string
	OpenAITimeout  time.Duration
	EnableAITitles bool

	PassageDeletePolicy DeletePolicy

	Verbose bool
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	key := os.Getenv("OPENAI_API_KEY")
	policy := DeletePolicy(envOr("PASSAGE_DELETE_POLICY", string(DeleteCascade)))
	if policy != DeleteBlock {
		policy = DeleteCascade
	}
	return Config{
		Mode:          mode,
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		DBDriver:      envOr("DB_DRIVER", "sqlite"),
		DBDSN:         envOr("DB_DSN", ""),
		MongoDatabase: envOr("MONGO_DATABASE", "qbank"),

		BlobBasePath:      envOr("BLOB_BASE_PATH", "./data"),
		EnableTranscripts: envBool("ENABLE_TRANSCRIPTS", mode == ModeOffline),

		AuthSecret:    envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		TokenTTL:      envDuration("TOKEN_TTL", 8*time.Hour),
		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://qbank.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),

		OpenAIKey:      key,
		OpenAIBaseURL:  envOr("OPENAI_BASE_URL", ""),
		OpenAIModel:    envOr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITimeout:  envDuration("OPENAI_TIMEOUT", 60*time.Second),
		EnableAITitles: envBool("ENABLE_AI_TITLES", key != ""),

		PassageDeletePolicy: policy,

		Verbose: envBool("VERBOSE", false),
	}
}

// CORSOrigins returns the allowed origins for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return v
	}
	return def
}

// envDuration accepts Go durations ("45s") or a bare number of seconds.
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n := envInt(k, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
