package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Extractor backends.
const (
	ExtractorDlib = "dlib"
	ExtractorHTTP = "http"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
)

type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Storage     StorageConfig     `yaml:"storage"`
	Embedding   EmbeddingConfig   `yaml:"-"`
	Database    DatabaseConfig    `yaml:"-"`
	MariaDB     MariaDBConfig     `yaml:"-"`
	Web         WebConfig         `yaml:"web"`
}

type PathsConfig struct {
	Dataset   string `yaml:"dataset"`   // root of dataset/<person>/<i>.jpg
	Encodings string `yaml:"encodings"` // serialized encoding database
	Ledger    string `yaml:"ledger"`    // attendance CSV
}

type CameraConfig struct {
	Device  int    `yaml:"device"`
	Frames  int    `yaml:"frames"`
	StopKey string `yaml:"stop_key"`
}

// StopKeyCode returns the key code the preview window reports for the stop key.
func (c *CameraConfig) StopKeyCode() int {
	if c.StopKey == "" {
		return 'q'
	}
	return int(c.StopKey[0])
}

type RecognitionConfig struct {
	Extractor    string  `yaml:"extractor"`  // dlib or http
	ModelsDir    string  `yaml:"models_dir"` // dlib model files for go-face
	Metric       string  `yaml:"metric"`     // euclidean or cosine
	Tolerance    float64 `yaml:"tolerance"`
	TieBreak     string  `yaml:"tie_break"` // first or closest
	MaxImageSize int     `yaml:"max_image_size"`

	toleranceSet bool
}

// DefaultMetric returns the distance metric that suits the extractor's
// embeddings: euclidean for dlib descriptors, cosine for InsightFace.
func DefaultMetric(extractor string) string {
	if extractor == ExtractorHTTP {
		return string(facematch.MetricCosine)
	}
	return string(facematch.MetricEuclidean)
}

// fillDefaults derives the metric from the extractor and the tolerance from
// the metric, keeping values that were set explicitly.
func (r *RecognitionConfig) fillDefaults() {
	if r.Metric == "" {
		r.Metric = DefaultMetric(r.Extractor)
	}
	if r.Tolerance > 0 {
		r.toleranceSet = true
		return
	}
	r.Tolerance = facematch.DefaultTolerance(facematch.Metric(r.Metric))
}

// SetMetric changes the metric. A tolerance that was not set explicitly
// follows the new metric's default.
func (r *RecognitionConfig) SetMetric(metric string) {
	r.Metric = metric
	if !r.toleranceSet {
		r.Tolerance = facematch.DefaultTolerance(facematch.Metric(metric))
	}
}

// SetTolerance sets an explicit tolerance that later metric changes keep.
func (r *RecognitionConfig) SetTolerance(tolerance float64) {
	r.Tolerance = tolerance
	r.toleranceSet = true
}

type StorageConfig struct {
	Encodings string `yaml:"encodings"` // file or postgres
	Ledger    string `yaml:"ledger"`    // csv, postgres or mariadb
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the encoding HNSW graph (optional)
}

type MariaDBConfig struct {
	DSN string // e.g. attendance:attendance@tcp(mariadb:3306)/attendance?parseTime=true
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"-"` // extra CORS origins besides localhost
}

// envList splits a comma-separated environment variable.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envIndex is like envInt but accepts zero, which is a valid device index.
func envIndex(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to the default on bad input.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// Defaults returns the configuration embedded in defaults.yaml with the
// metric and tolerance derived from the default extractor.
func Defaults() Config {
	cfg := defaultsFile()
	cfg.Recognition.fillDefaults()
	return cfg
}

func defaultsFile() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

func Load() *Config {
	cfg := defaultsFile()

	cfg.Paths = PathsConfig{
		Dataset:   envString("DATASET_DIR", cfg.Paths.Dataset),
		Encodings: envString("ENCODINGS_PATH", cfg.Paths.Encodings),
		Ledger:    envString("LEDGER_PATH", cfg.Paths.Ledger),
	}
	cfg.Camera = CameraConfig{
		Device:  envIndex("CAMERA_DEVICE", cfg.Camera.Device),
		Frames:  envInt("CAPTURE_FRAMES", cfg.Camera.Frames),
		StopKey: envString("STOP_KEY", cfg.Camera.StopKey),
	}
	cfg.Recognition = RecognitionConfig{
		Extractor:    envString("EXTRACTOR", cfg.Recognition.Extractor),
		ModelsDir:    envString("MODELS_DIR", cfg.Recognition.ModelsDir),
		Metric:       envString("MATCH_METRIC", cfg.Recognition.Metric),
		Tolerance:    envFloat("MATCH_TOLERANCE", cfg.Recognition.Tolerance),
		TieBreak:     envString("TIE_BREAK", cfg.Recognition.TieBreak),
		MaxImageSize: envInt("MAX_IMAGE_SIZE", cfg.Recognition.MaxImageSize),
	}
	cfg.Recognition.fillDefaults()
	cfg.Storage = StorageConfig{
		Encodings: envString("ENCODINGS_BACKEND", cfg.Storage.Encodings),
		Ledger:    envString("LEDGER_BACKEND", cfg.Storage.Ledger),
	}
	cfg.Embedding = EmbeddingConfig{
		URL: os.Getenv("EMBEDDING_URL"),
	}
	cfg.Database = DatabaseConfig{
		URL:           os.Getenv("DATABASE_URL"),
		MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
		HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
	}
	cfg.MariaDB = MariaDBConfig{
		DSN: os.Getenv("MARIADB_DSN"),
	}
	cfg.Web = WebConfig{
		Host:           envString("WEB_HOST", cfg.Web.Host),
		Port:           envInt("WEB_PORT", cfg.Web.Port),
		AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
	}

	return &cfg
}

// Validate checks that enumerated settings hold known values and that the
// selected storage backends have connection settings.
func (c *Config) Validate() error {
	switch c.Recognition.Extractor {
	case ExtractorDlib, ExtractorHTTP:
	default:
		return fmt.Errorf("unknown extractor %q (want %s or %s)", c.Recognition.Extractor, ExtractorDlib, ExtractorHTTP)
	}
	switch c.Recognition.Metric {
	case "euclidean", "cosine":
	default:
		return fmt.Errorf("unknown match metric %q", c.Recognition.Metric)
	}
	switch c.Recognition.TieBreak {
	case "first", "closest":
	default:
		return fmt.Errorf("unknown tie-break policy %q", c.Recognition.TieBreak)
	}
	if c.Recognition.Tolerance <= 0 {
		return fmt.Errorf("match tolerance must be positive, got %v", c.Recognition.Tolerance)
	}

	switch c.Storage.Encodings {
	case BackendFile:
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s encodings", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown encodings backend %q", c.Storage.Encodings)
	}

	switch c.Storage.Ledger {
	case BackendCSV:
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s ledger", BackendPostgres)
		}
	case BackendMariaDB:
		if c.MariaDB.DSN == "" {
			return fmt.Errorf("MARIADB_DSN is required for %s ledger", BackendMariaDB)
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Storage.Ledger)
	}
	return nil
}
