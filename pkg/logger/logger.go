// Package logger provides leveled, file-and-console logging for the
// orchestrator and warehouse sink.
package logger

import (
	"io"
	"log"
	"os"
)

var (
	debugLog   *log.Logger
	infoLog    *log.Logger
	warnLog    *log.Logger
	errorLog   *log.Logger
	successLog *log.Logger
	logFile    *os.File
	verbose    bool
)

func init() {
	Init()
}

// Init wires the loggers to stdout/stderr only. Called automatically at
// package load so the package is always usable without explicit setup.
func Init() {
	debugLog = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime)
	infoLog = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime)
	warnLog = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime)
	errorLog = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime)
	successLog = log.New(os.Stdout, "SUCCESS: ", log.Ldate|log.Ltime)
}

// InitLogger tees all levels to filename in addition to stdout/stderr, and
// enables Debug-level output when verbose is true (the CLI's --verbose flag).
func InitLogger(filename string, verboseFlag bool) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	logFile = f
	verbose = verboseFlag

	out := io.MultiWriter(os.Stdout, logFile)
	errOut := io.MultiWriter(os.Stderr, logFile)

	debugLog = log.New(out, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	infoLog = log.New(out, "INFO: ", log.Ldate|log.Ltime)
	warnLog = log.New(out, "WARN: ", log.Ldate|log.Ltime)
	errorLog = log.New(errOut, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	successLog = log.New(out, "SUCCESS: ", log.Ldate|log.Ltime)
	return nil
}

// Close releases the log file opened by InitLogger, if any.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func Debugf(format string, v ...interface{}) {
	if !verbose {
		return
	}
	debugLog.Printf(format, v...)
}

func Infof(format string, v ...interface{}) {
	infoLog.Printf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	warnLog.Printf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	errorLog.Printf(format, v...)
}

// Successf marks a completion milestone, mirroring the source pipeline's
// frequent use of a distinct success-level log line.
func Successf(format string, v ...interface{}) {
	successLog.Printf(format, v...)
}
