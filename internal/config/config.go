// Package config loads the realtime engine's process-wide configuration
// from the environment (§6), the way the teacher's cmd/agent/main.go loads
// provider credentials with godotenv, generalized to every env var §6
// names. BUSINESS_SCHEDULE is the one structured, nested setting and is
// parsed as YAML (grounded on NeboLoop-nebo's internal/config package),
// since it doesn't fit a flat env var.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Hours is one open window on a business day, e.g. {Start: 9, End: 18}.
type Hours struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Schedule maps weekday (0=Monday .. 6=Sunday per §6 "weekday 0..4") to the
// list of open windows that day. A weekday absent from the map, or an empty
// Schedule, means closed (§4.9 INIT "business hours closed" branch).
type Schedule map[int][]Hours

// OpenAt reports whether weekday/hour falls inside one of that day's
// windows (§6 BUSINESS_SCHEDULE, §4.9 INIT closed-hours branch).
func (s Schedule) OpenAt(weekday int, hour int) bool {
	for _, h := range s[weekday] {
		if hour >= h.Start && hour < h.End {
			return true
		}
	}
	return false
}

// Config is the realtime engine's complete process-wide configuration,
// built from the env vars enumerated in §6.
type Config struct {
	AudioSocketHost string
	AudioSocketPort string

	MaxConcurrentCalls int

	SilenceWarningTimeoutSec int
	SilenceHangupTimeoutSec  int
	MaxCallDurationSec       int

	ProcessPoolWorkers int

	DeepgramAPIKey string
	DeepgramModel  string
	GroqAPIKey     string
	GroqModel      string

	ElevenLabsAPIKey string
	ElevenLabsVoice  string
	ElevenLabsModel  string

	AMIHost     string
	AMIPort     string
	AMIUsername string
	AMISecret   string

	DBClientsDSN string
	DBTicketsDSN string

	BusinessSchedule Schedule

	TechnicianMaxActiveTransfers int
	TechnicianLoadWindowMin      int

	DynamicCacheMaxSize int

	SentimentAngerThreshold int

	PhraseCacheDir string
	RecordingsDir  string
	PromptFile     string

	MetricsAddr string
}

// defaults mirrors §4.12/§4.2/§4.7/§4.9's stated defaults.
func defaults() Config {
	return Config{
		AudioSocketHost:              "0.0.0.0",
		AudioSocketPort:              "9092",
		MaxConcurrentCalls:           20,
		SilenceWarningTimeoutSec:     15,
		SilenceHangupTimeoutSec:      30,
		MaxCallDurationSec:           600,
		ProcessPoolWorkers:           3,
		TechnicianMaxActiveTransfers: 3,
		TechnicianLoadWindowMin:      60,
		DynamicCacheMaxSize:          500,
		SentimentAngerThreshold:      3,
		PhraseCacheDir:               "assets/cache",
		RecordingsDir:                "logs/calls",
		MetricsAddr:                 ":9100",
	}
}

// MissingRequired lists the settings that must be present before the
// admission server is allowed to start listening (§7 ConfigMissing).
func (c Config) MissingRequired() []string {
	var missing []string
	required := map[string]string{
		"DB_CLIENTS_DSN":     c.DBClientsDSN,
		"DB_TICKETS_DSN":     c.DBTicketsDSN,
		"DEEPGRAM_API_KEY":   c.DeepgramAPIKey,
		"ELEVENLABS_API_KEY": c.ElevenLabsAPIKey,
	}
	for name, val := range required {
		if val == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// ErrConfigMissing is returned by Load when a required setting is absent;
// the caller (cmd/voicebot) exits non-zero before accepting connections
// (§6 exit codes, §7 ConfigMissing).
type ErrConfigMissing struct {
	Missing []string
}

func (e *ErrConfigMissing) Error() string {
	return fmt.Sprintf("config: missing required settings: %s", strings.Join(e.Missing, ", "))
}

// Load reads a .env file if present (teacher's cmd/agent/main.go pattern),
// then layers the process environment over the defaults, and validates the
// result. A non-nil error is always *ErrConfigMissing.
func Load() (Config, error) {
	_ = godotenv.Load()

	c := defaults()

	if v := os.Getenv("AUDIOSOCKET_HOST"); v != "" {
		c.AudioSocketHost = v
	}
	if v := os.Getenv("AUDIOSOCKET_PORT"); v != "" {
		c.AudioSocketPort = v
	}
	c.MaxConcurrentCalls = envInt("MAX_CONCURRENT_CALLS", c.MaxConcurrentCalls)
	c.SilenceWarningTimeoutSec = envInt("SILENCE_WARNING_TIMEOUT", c.SilenceWarningTimeoutSec)
	c.SilenceHangupTimeoutSec = envInt("SILENCE_HANGUP_TIMEOUT", c.SilenceHangupTimeoutSec)
	c.MaxCallDurationSec = envInt("MAX_CALL_DURATION", c.MaxCallDurationSec)
	c.ProcessPoolWorkers = envInt("PROCESS_POOL_WORKERS", c.ProcessPoolWorkers)

	c.DeepgramAPIKey = os.Getenv("DEEPGRAM_API_KEY")
	c.DeepgramModel = envOr("DEEPGRAM_MODEL", "nova-2")
	c.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	c.GroqModel = envOr("GROQ_MODEL", "llama-3.3-70b-versatile")

	c.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.ElevenLabsVoice = envOr("ELEVENLABS_VOICE", "")
	c.ElevenLabsModel = envOr("ELEVENLABS_MODEL", "eleven_multilingual_v2")

	c.AMIHost = os.Getenv("AMI_HOST")
	c.AMIPort = envOr("AMI_PORT", "5038")
	c.AMIUsername = os.Getenv("AMI_USERNAME")
	c.AMISecret = os.Getenv("AMI_SECRET")

	c.DBClientsDSN = os.Getenv("DB_CLIENTS_DSN")
	c.DBTicketsDSN = os.Getenv("DB_TICKETS_DSN")

	if v := os.Getenv("BUSINESS_SCHEDULE"); v != "" {
		sched, err := ParseSchedule(v)
		if err == nil {
			c.BusinessSchedule = sched
		}
	}

	c.TechnicianMaxActiveTransfers = envInt("TECHNICIAN_MAX_ACTIVE_TRANSFERS", c.TechnicianMaxActiveTransfers)
	c.TechnicianLoadWindowMin = envInt("TECHNICIAN_LOAD_WINDOW_MIN", c.TechnicianLoadWindowMin)
	c.DynamicCacheMaxSize = envInt("DYNAMIC_CACHE_MAX_SIZE", c.DynamicCacheMaxSize)
	c.SentimentAngerThreshold = envInt("SENTIMENT_ANGER_THRESHOLD", c.SentimentAngerThreshold)

	c.PhraseCacheDir = envOr("PHRASE_CACHE_DIR", c.PhraseCacheDir)
	c.RecordingsDir = envOr("RECORDINGS_DIR", c.RecordingsDir)
	c.MetricsAddr = envOr("METRICS_ADDR", c.MetricsAddr)

	if missing := c.MissingRequired(); len(missing) > 0 {
		return c, &ErrConfigMissing{Missing: missing}
	}
	return c, nil
}

// ParseSchedule parses the YAML document behind BUSINESS_SCHEDULE: a map of
// weekday (0..6) to a list of [start, end] hour pairs, end exclusive (§6).
func ParseSchedule(doc string) (Schedule, error) {
	var raw map[int][][2]int
	if err := yaml.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, fmt.Errorf("config: invalid BUSINESS_SCHEDULE: %w", err)
	}
	sched := make(Schedule, len(raw))
	for day, windows := range raw {
		for _, w := range windows {
			sched[day] = append(sched[day], Hours{Start: w[0], End: w[1]})
		}
	}
	return sched, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
