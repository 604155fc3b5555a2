package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// App holds process settings read from the environment once at boot.
type App struct {
	Port    string
	TempDir string

	FFmpegPath          string
	CombineMode         string
	TakeTimeout         time.Duration
	StageTimeout        time.Duration
	Async               bool
	IdleTakeTTL         time.Duration
	MaxChunkBytes       int64
	EmbeddingDim        int
	STTLanguage         string
	STTProvider         string
	LLMProvider         string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIChatModel     string
	OpenAIEmbedModel    string
	GCPProjectID        string
	GCPLocation         string
	VertexModel         string
	GCSBucket           string
	GCSPublic           bool
	WorkerCount         int
	ProcessStream       string
	ChunkJournalTTL     time.Duration
	SessionCacheTTL     time.Duration
	NotifyBackend       string
	JWTSecret           string
	JWTIssuer           string
	JWTAudience         string
	MongoDB             string
	QuestionTimeout     time.Duration
	HistorySize         int
	WebSocketBufferSize int
}

func LoadApp() App {
	return App{
		Port:    str("PORT", "8080"),
		TempDir: str("TEMP_DIR", os.TempDir()),

		FFmpegPath:          str("FFMPEG_PATH", "ffmpeg"),
		CombineMode:         str("REALTIME_COMBINE_MODE", "concat"),
		TakeTimeout:         dur("REALTIME_TAKE_TIMEOUT", 2*time.Minute),
		StageTimeout:        dur("REALTIME_STAGE_TIMEOUT", 45*time.Second),
		Async:               boolean("REALTIME_ASYNC", true),
		IdleTakeTTL:         dur("REALTIME_IDLE_TTL", 10*time.Minute),
		MaxChunkBytes:       int64(num("REALTIME_MAX_CHUNK_BYTES", 25<<20)),
		EmbeddingDim:        num("EMBEDDING_DIM", 384),
		STTLanguage:         str("STT_LANGUAGE", "en-US"),
		STTProvider:         strings.ToLower(str("STT_PROVIDER", "google")),
		LLMProvider:         strings.ToLower(str("LLM_PROVIDER", "vertex")),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		OpenAIChatModel:     os.Getenv("OPENAI_CHAT_MODEL"),
		OpenAIEmbedModel:    os.Getenv("OPENAI_EMBEDDING_MODEL"),
		GCPProjectID:        os.Getenv("GCP_PROJECT_ID"),
		GCPLocation:         str("GCP_LOCATION", "us-central1"),
		VertexModel:         os.Getenv("VERTEX_MODEL"),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
		GCSPublic:           boolean("GCS_PUBLIC", false),
		WorkerCount:         num("WORKER_COUNT", 2),
		ProcessStream:       str("PROCESS_STREAM", "session:process"),
		ChunkJournalTTL:     dur("CHUNK_JOURNAL_TTL", 24*time.Hour),
		SessionCacheTTL:     dur("SESSION_CACHE_TTL", 5*time.Minute),
		NotifyBackend:       strings.ToLower(str("NOTIFY_BACKEND", "redis")),
		JWTSecret:           os.Getenv("SUPABASE_JWT_SECRET"),
		JWTIssuer:           os.Getenv("SUPABASE_JWT_ISSUER"),
		JWTAudience:         str("SUPABASE_JWT_AUDIENCE", "authenticated"),
		MongoDB:             str("MONGO_DB", "casecoach"),
		QuestionTimeout:     dur("WORKER_QUESTION_TIMEOUT", 3*time.Minute),
		HistorySize:         num("REALTIME_HISTORY_SIZE", 200),
		WebSocketBufferSize: num("WS_EVENT_BUFFER", 64),
	}
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func num(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return n
}

func boolean(key string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return b
}

// dur accepts Go durations ("90s") or plain seconds.
func dur(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
