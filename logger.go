package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// AppLogger provides the extended diagnostics channels: debug lines,
// request/response capture, websocket traffic, database dumps. All methods
// are safe on a nil receiver so components can take a logger without
// nil-guarding every call.
type AppLogger struct {
	outputDir   string
	logRequests bool
	logDB       bool
	logWS       bool
	debug       bool
	requestLog  *os.File
	dbLog       *os.File
	wsLog       *os.File

	mu             sync.Mutex
	requestCount   int
	wsMessageCount int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	OutputDir   string
	LogRequests bool
	LogDB       bool
	LogWS       bool
	Debug       bool
}

// NewAppLogger creates an application logger, opening the per-channel log
// files when an output directory is configured.
func NewAppLogger(config LogConfig) (*AppLogger, error) {
	al := &AppLogger{
		outputDir:   config.OutputDir,
		logRequests: config.LogRequests,
		logDB:       config.LogDB,
		logWS:       config.LogWS,
		debug:       config.Debug,
	}

	if al.outputDir == "" {
		return al, nil // no file logging, debug still goes to stdout
	}

	open := func(name string) (*os.File, error) {
		path := fmt.Sprintf("%s/%s", al.outputDir, name)
		return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}

	var err error
	if al.logRequests {
		if al.requestLog, err = open("requests.log"); err != nil {
			return nil, fmt.Errorf("failed to open request log: %w", err)
		}
	}
	if al.logDB {
		if al.dbLog, err = open("database.log"); err != nil {
			return nil, fmt.Errorf("failed to open database log: %w", err)
		}
	}
	if al.logWS {
		if al.wsLog, err = open("websocket.log"); err != nil {
			return nil, fmt.Errorf("failed to open WebSocket log: %w", err)
		}
	}

	return al, nil
}

// Close closes all open log files.
func (al *AppLogger) Close() {
	if al == nil {
		return
	}
	for _, f := range []*os.File{al.requestLog, al.dbLog, al.wsLog} {
		if f != nil {
			f.Close()
		}
	}
}

// Debug logs a debug line if debug mode is enabled.
func (al *AppLogger) Debug(format string, args ...any) {
	if al == nil || !al.debug {
		return
	}
	log.Printf("[DEBUG] "+format, args...)
}

// IsEnabled reports whether any extended channel is on.
func (al *AppLogger) IsEnabled() bool {
	if al == nil {
		return false
	}
	return al.logRequests || al.logDB || al.logWS || al.debug
}

// LogWS records one websocket message.
func (al *AppLogger) LogWS(direction, roomID, message string) {
	if al == nil || !al.logWS || al.wsLog == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()

	al.wsMessageCount++
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(al.wsLog, "[%s] #%d %s [room %s]: %s\n",
		timestamp, al.wsMessageCount, direction, roomID, message)
}

// LogRequest records an HTTP request/response pair.
func (al *AppLogger) LogRequest(method, url string, reqBody []byte, status int, respBody []byte) {
	if al == nil || !al.logRequests || al.requestLog == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()

	al.requestCount++
	timestamp := time.Now().Format("15:04:05.000")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n========== REQUEST #%d [%s] ==========\n", al.requestCount, timestamp)
	fmt.Fprintf(&buf, "%s %s\n", method, url)
	if len(reqBody) > 0 {
		fmt.Fprintf(&buf, "\n--- Request Body ---\n")
		buf.Write(reqBody)
		buf.WriteString("\n")
	}
	fmt.Fprintf(&buf, "\n--- Response [%d] ---\n", status)
	if len(respBody) > 5000 {
		buf.Write(respBody[:5000])
		fmt.Fprintf(&buf, "\n... (truncated, %d bytes total)\n", len(respBody))
	} else {
		buf.Write(respBody)
	}
	buf.WriteString("\n")

	al.requestLog.Write(buf.Bytes())
}

// LogDB dumps the room table for post-mortem debugging.
func (al *AppLogger) LogDB(db *sqlx.DB, context string) {
	if al == nil || !al.logDB || al.dbLog == nil || db == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n========== DATABASE DUMP [%s] ==========\n", timestamp)
	fmt.Fprintf(&buf, "Context: %s\n\n", context)

	rows, err := db.Query("SELECT room_id, generation, state FROM room ORDER BY room_id")
	if err != nil {
		fmt.Fprintf(&buf, "Error: %v\n", err)
		al.dbLog.Write(buf.Bytes())
		return
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var roomID, state string
		var generation int64
		if err := rows.Scan(&roomID, &generation, &state); err != nil {
			fmt.Fprintf(&buf, "Error scanning row: %v\n", err)
			continue
		}
		n++
		fmt.Fprintf(&buf, "Row %d: %s | gen %d | %s\n", n, roomID, generation, state)
	}
	if n == 0 {
		fmt.Fprintf(&buf, "(empty)\n")
	}
	buf.WriteString("\n")

	al.dbLog.Write(buf.Bytes())
}

// NewAppLoggerFromEnv creates a logger from environment variables, checking
// both the server and test variants.
func NewAppLoggerFromEnv() (*AppLogger, error) {
	envBool := func(serverVar, testVar string) bool {
		return os.Getenv(serverVar) == "1" || os.Getenv(testVar) == "1"
	}
	envStr := func(serverVar, testVar string) string {
		if v := os.Getenv(serverVar); v != "" {
			return v
		}
		return os.Getenv(testVar)
	}

	return NewAppLogger(LogConfig{
		OutputDir:   envStr("LOG_OUTPUT_DIR", "TEST_OUTPUT_DIR"),
		LogRequests: envBool("LOG_REQUESTS", "TEST_LOG_REQUESTS"),
		LogDB:       envBool("LOG_DB", "TEST_LOG_DB"),
		LogWS:       envBool("LOG_WS", "TEST_LOG_WS"),
		Debug:       envBool("LOG_DEBUG", "TEST_DEBUG"),
	})
}

// LoggingHandler wraps an http.Handler to capture requests/responses.
// WebSocket upgrades need http.Hijacker, which the recorder does not
// support, so they pass through.
type LoggingHandler struct {
	Handler http.Handler
	Logger  *AppLogger
}

func (l *LoggingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/ws") {
		l.Logger.LogRequest(r.Method, r.URL.String(), nil, 0, []byte("[WebSocket upgrade]"))
		l.Handler.ServeHTTP(w, r)
		return
	}

	var reqBody []byte
	if r.Body != nil {
		reqBody, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewBuffer(reqBody))
	}

	rec := httptest.NewRecorder()
	l.Handler.ServeHTTP(rec, r)

	for k, v := range rec.Header() {
		w.Header()[k] = v
	}
	w.WriteHeader(rec.Code)
	respBody := rec.Body.Bytes()
	w.Write(respBody)

	l.Logger.LogRequest(r.Method, r.URL.String(), reqBody, rec.Code, respBody)
}
