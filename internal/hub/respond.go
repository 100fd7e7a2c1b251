package hub

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

const maxBodyBytes = 1 << 20

// queryIntMax bounds float query values before conversion to int.
const queryIntMax = 1 << 30

var errInvalidPayload = errors.New("invalid payload")

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Debug("Write response failed", "error", err)
	}
}

// readJSON decodes the request body into v. An empty body decodes as {}.
// A literal null leaves v untouched and is reported as invalid.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errInvalidPayload
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || string(raw) == "null" {
		return errInvalidPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errInvalidPayload
	}
	return nil
}

// queryInt parses a numeric query value. Missing, unparsable, non-finite
// and zero values yield def. Fractions are truncated and huge values
// saturate at queryIntMax.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		n = int(math.Max(-queryIntMax, math.Min(queryIntMax, math.Trunc(f))))
	}
	if n == 0 {
		return def
	}
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(isoMillis)
}

func parseISO(ts string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
