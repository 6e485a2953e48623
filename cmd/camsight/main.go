package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yixinin/camsight/config"
	"golang.org/x/term"
)

var (
	cfgFilename string
	debugLevel  bool
	logfile     string
)

var rootCmd = &cobra.Command{
	Use:   "camsight",
	Short: "Camera session relay and adaptive object detection",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLog()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFilename, "config", "c", "", "config file name")
	rootCmd.PersistentFlags().BoolVar(&debugLevel, "debug", false, "log debug mode")
	rootCmd.PersistentFlags().StringVar(&logfile, "log", "", "log to filename")
	rootCmd.AddCommand(serveCmd, detectCmd, telemetryCmd, viewCmd)
}

type funcremove struct {
}

func (funcremove) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (funcremove) Fire(e *logrus.Entry) error {
	if e.Data == nil {
		return nil
	}
	if e.Caller == nil {
		return nil
	}

	e.Data["file"] = fmt.Sprintf("%s:%d", filepath.Base(e.Caller.File), e.Caller.Line)
	e.Caller = nil
	return nil
}

func initLog() error {
	var out = os.Stderr
	if logfile != "" {
		ext := filepath.Ext(logfile)
		var old = fmt.Sprintf("%s_bak%s", logfile[:len(logfile)-len(ext)], ext)
		os.Remove(old)
		os.Rename(logfile, old)

		f, err := os.Create(logfile)
		if err != nil {
			return err
		}
		out = f
	}
	logrus.SetOutput(out)

	if term.IsTerminal(int(out.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	logrus.AddHook(funcremove{})
	logrus.SetReportCaller(true)
	if debugLevel {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFilename)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("config loaded from %q", cfgFilename)
	return cfg, nil
}

// signalContext is cancelled on the first interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
