package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/op/go-logging"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// The logging library being used everywhere.
var Log = Logging{
	Logger: "logrus",
}

// -----------------
// This a gologging
// -> github.com/op/go-logging

var gologging = logging.MustGetLogger("ptz")

func ConfigureGoLogging(level string, logDirectory string) {
	var format = logging.MustStringFormatter(
		`%{color}%{time:15:04:05.000} %{shortfunc} ▶ %{level:.4s} %{id:03x}%{color:reset} %{message}`,
	)
	stdBackend := logging.NewLogBackend(os.Stderr, "", 0)
	stdBackendLeveled := logging.AddModuleLevel(logging.NewBackendFormatter(stdBackend, format))
	stdBackendLeveled.SetLevel(goLoggingLevel(level), "")

	if logDirectory == "" {
		logging.SetBackend(stdBackendLeveled)
		return
	}

	var plain = logging.MustStringFormatter(
		`%{time:15:04:05.000} %{shortfunc} ▶ %{level:.4s} %{id:03x} %{message}`,
	)
	fileBackend := logging.NewLogBackend(rotatingFile(logDirectory), "", 0)
	fileBackendLeveled := logging.AddModuleLevel(logging.NewBackendFormatter(fileBackend, plain))
	fileBackendLeveled.SetLevel(goLoggingLevel(level), "")
	logging.SetBackend(stdBackendLeveled, fileBackendLeveled)
}

func goLoggingLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.DEBUG
	case "warning":
		return logging.WARNING
	case "error":
		return logging.ERROR
	case "fatal":
		return logging.CRITICAL
	}
	return logging.INFO
}

// -----------------
// This a logrus
// -> github.com/sirupsen/logrus

func ConfigureLogrus(level string, logDirectory string, timezone *time.Location) {
	if timezone == nil {
		timezone = time.Local
	}
	logrus.SetFormatter(LocalTimeZoneFormatter{
		Timezone:  timezone,
		Formatter: &logrus.JSONFormatter{},
	})

	var output io.Writer = os.Stdout
	if logDirectory != "" {
		output = io.MultiWriter(os.Stdout, rotatingFile(logDirectory))
	}
	logrus.SetOutput(output)
	logrus.SetLevel(logrusLevel(level))
}

func logrusLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	}
	return logrus.InfoLevel
}

func rotatingFile(logDirectory string) io.Writer {
	return &lumberjack.Logger{
		Filename:   logDirectory + "/ptz-agent.log",
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		Compress:   true,
	}
}

type LocalTimeZoneFormatter struct {
	Timezone  *time.Location
	Formatter logrus.Formatter
}

func (u LocalTimeZoneFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.In(u.Timezone)
	return u.Formatter.Format(e)
}

type Logging struct {
	Logger string
}

// Init configures the selected backend. An empty logDirectory keeps
// the output on the console only.
func (self *Logging) Init(level string, logDirectory string, timezone *time.Location) {
	switch self.Logger {
	case "go-logging":
		ConfigureGoLogging(level, logDirectory)
	case "logrus":
		ConfigureLogrus(level, logDirectory, timezone)
	default:
	}
}

func (self *Logging) Info(sentence string) {
	switch self.Logger {
	case "go-logging":
		gologging.Info(sentence)
	case "logrus":
		logrus.Info(sentence)
	default:
	}
}

func (self *Logging) Warning(sentence string) {
	switch self.Logger {
	case "go-logging":
		gologging.Warning(sentence)
	case "logrus":
		logrus.Warn(sentence)
	default:
	}
}

func (self *Logging) Debug(sentence string) {
	switch self.Logger {
	case "go-logging":
		gologging.Debug(sentence)
	case "logrus":
		logrus.Debug(sentence)
	default:
	}
}

func (self *Logging) Error(sentence string) {
	switch self.Logger {
	case "go-logging":
		gologging.Error(sentence)
	case "logrus":
		logrus.Error(sentence)
	default:
	}
}

func (self *Logging) Fatal(sentence string) {
	switch self.Logger {
	case "go-logging":
		gologging.Fatal(sentence)
	case "logrus":
		logrus.Fatal(sentence)
	default:
	}
}

// WithFields logs an info line with structured context. The go-logging
// backend has no fields, so they are appended to the sentence.
func (self *Logging) WithFields(fields map[string]interface{}, sentence string) {
	switch self.Logger {
	case "go-logging":
		for k, v := range fields {
			sentence += fmt.Sprintf(" %s=%v", k, v)
		}
		gologging.Info(sentence)
	case "logrus":
		logrus.WithFields(logrus.Fields(fields)).Info(sentence)
	default:
	}
}
