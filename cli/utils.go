package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/opencsp/opencsp-go/config"
	"github.com/opencsp/opencsp-go/logging"
)

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "Warning: "+format+"\n", a...)
}

// newLogger returns the command logger at the --log-level level, or debug when --debug is set.
func newLogger(c *cli.Context, name string) logging.Logger {
	if c.Bool(flagDebug) {
		return logging.NewDebugLogger(name)
	}
	logger := logging.NewLogger(name)
	if level, err := logging.LevelFromString(c.String(flagLogLevel)); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// readConfig reads and validates the --config file into cfg.
func readConfig(c *cli.Context, cfg config.Validator) error {
	return config.Read(c.Path(flagConfig), cfg)
}
