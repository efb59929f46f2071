package obslog

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

var logger = log.New(os.Stdout, "", 0)

// LogEvent emits one structured JSON line to stdout, enriched with
// whatever RunInfo is present on ctx.
func LogEvent(ctx context.Context, level, event string, fields map[string]any) {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"level": level,
		"event": event,
	}

	info := RunInfoFromContext(ctx)
	if info.SimulatorID != "" {
		payload["simulator_id"] = info.SimulatorID
	}
	if info.WindowIndex != 0 {
		payload["window_index"] = info.WindowIndex
	}

	for key, value := range fields {
		if err, ok := value.(error); ok {
			payload[key] = err.Error()
			continue
		}
		payload[key] = value
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("{\"level\":\"error\",\"event\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	logger.Print(string(raw))
}

// LogRunComplete logs one window's terminal outcome.
func LogRunComplete(ctx context.Context, runID uint64, survivalDuration int, finalValue float64) {
	LogEvent(ctx, "info", "run_complete", map[string]any{
		"run_id":            runID,
		"survival_duration": survivalDuration,
		"final_value":       finalValue,
	})
}

// LogRunFailed logs a window that could not be initialised or run.
func LogRunFailed(ctx context.Context, err error) {
	LogEvent(ctx, "warn", "run_failed", map[string]any{"error": err})
}
