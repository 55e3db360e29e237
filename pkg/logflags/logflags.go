package logflags

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var provider = false
var rot = false
var automation = false
var proctree = false

var logOut io.WriteCloser

func makeLogger(flag bool, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(flag, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = DefaultFormatter()
	if logOut != nil {
		logger.Logger.Out = logOut
	} else {
		logger.Logger.Out = colorable.NewColorableStderr()
	}
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.ErrorLevel
	}
	return &logrusLogger{logger}
}

// Provider returns true if the provider registry and the providers should
// log.
func Provider() bool {
	return provider
}

// ProviderLogger returns a logger for the provider packages.
func ProviderLogger() Logger {
	return makeLogger(provider, Fields{"layer": "provider"})
}

// ROT returns true if the running object table scanner should log every
// entry it visits.
func ROT() bool {
	return rot
}

// ROTLogger returns a logger for the running object table scanner.
func ROTLogger() Logger {
	return makeLogger(rot, Fields{"layer": "rot"})
}

// Automation returns true if navigation of the debugger's automation
// object should be logged.
func Automation() bool {
	return automation
}

func AutomationLogger() Logger {
	return makeLogger(automation, Fields{"layer": "automation"})
}

// ProcTree returns true if the ancestry walk should be logged.
func ProcTree() bool {
	return proctree
}

func ProcTreeLogger() Logger {
	return makeLogger(proctree, Fields{"layer": "proctree"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the log flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	provider, rot, automation, proctree = false, false, false, false
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "vsattach-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "provider"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch logcmd {
		case "provider":
			provider = true
		case "rot":
			rot = true
		case "automation":
			automation = true
		case "proctree":
			proctree = true
		default:
			return fmt.Errorf("unknown log component %q", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
		logOut = nil
	}
}

// DefaultFormatter returns the formatter used by loggers created by this
// package. Colors are only used when standard error is a terminal.
func DefaultFormatter() logrus.Formatter {
	tty := logOut == nil && isatty.IsTerminal(os.Stderr.Fd())
	return &logrus.TextFormatter{
		DisableColors: !tty,
		ForceColors:   tty,
	}
}
