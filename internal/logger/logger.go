// Package logger wires logrus for every hioload-reactor component.
//
// Components obtain a tagged entry with NewLogger; the tag is rendered as a
// "[tag]: " message prefix by TaggedHook.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var root = newRoot()

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.AddHook(new(TaggedHook))
	return l
}

// Root returns the logger all tagged entries write to.
func Root() *logrus.Logger {
	return root
}

// NewLogger returns an entry tagged with the component name.
func NewLogger(tag string) *logrus.Entry {
	return logrus.NewEntry(root).WithField("tag", tag)
}

// Configure sets level ("debug", "INFO", ...), format ("text" or "json") and
// output ("stdout", "stderr" or a file path opened for appending).
func Configure(level, format, output string) error {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	var formatter logrus.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		return fmt.Errorf("log format %q: must be text or json", format)
	}

	w, err := openOutput(output)
	if err != nil {
		return err
	}

	root.SetLevel(lvl)
	root.SetFormatter(formatter)
	root.SetOutput(w)
	return nil
}

func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("log output: %w", err)
	}
	return f, nil
}

// TaggedHook moves the "tag" field into the message prefix.
type TaggedHook struct{}

func (h *TaggedHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *TaggedHook) Fire(entry *logrus.Entry) error {
	if tagObj, loaded := entry.Data["tag"]; loaded {
		tag, ok := tagObj.(string)
		if !ok {
			return nil
		}
		delete(entry.Data, "tag")
		entry.Message = strings.ReplaceAll(entry.Message, tag+": ", "")
		entry.Message = "[" + tag + "]: " + entry.Message
	}
	return nil
}
