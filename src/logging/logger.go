package logging

import (
	"fmt"
	"os"
	"time"
)

type LoggerEntry struct {
	Messages  []string
	Timestamp time.Time
}

type Logger struct {
	Logs   chan LoggerEntry
	prefix string
}

func CreateLogger(prefix string, logs chan LoggerEntry) *Logger {
	return &Logger{
		Logs:   logs,
		prefix: prefix,
	}
}

func (logg *Logger) Log(message string) {
	logg.Logs <- LoggerEntry{
		Messages: []string{
			fmt.Sprintf("%s %s", logg.prefix, message),
		},
		Timestamp: time.Now(),
	}
}

func (logg *Logger) Logf(format string, args ...interface{}) {
	logg.Log(fmt.Sprintf(format, args...))
}

func (logg *Logger) LogMultiple(messages []string) {
	for idx, message := range messages {
		messages[idx] = fmt.Sprintf("%s %s", logg.prefix, message)
	}
	logg.Logs <- LoggerEntry{
		Messages:  messages,
		Timestamp: time.Now(),
	}
}

// StartStderrWriter drains logs to stderr until quit is closed. Used by the
// daemon entrypoint, where no UI consumes the channel.
func StartStderrWriter(logs chan LoggerEntry, quit chan struct{}) {
	start := time.Now()
	for {
		select {
		case entry := <-logs:
			prefix := FormatTimestamp(start, entry.Timestamp)
			for _, message := range entry.Messages {
				fmt.Fprintf(os.Stderr, "%s %s\n", prefix, message)
			}
		case <-quit:
			return
		}
	}
}

func FormatTimestamp(start time.Time, end time.Time) string {
	diff := end.Sub(start)
	return fmt.Sprintf("[%02d:%02d:%04d]", int(diff.Minutes()), int(diff.Seconds())%60, diff.Milliseconds()%1000)
}
