package util

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// GoFunc runs f on its own goroutine. Panics are recovered and errors logged.
func GoFunc(ctx context.Context, f func(ctx context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("stacks", string(debug.Stack())).Errorf("run go func panic, r:%v", r)
			}
		}()
		err := f(ctx)
		if err != nil && ctx.Err() == nil {
			logrus.Errorf("run go func error:%v", err)
		}
	}()
}

// Recover logs a recovered panic with its stack. Use as `defer util.Recover("name")`.
func Recover(name string) {
	if r := recover(); r != nil {
		logrus.WithField("stacks", string(debug.Stack())).Errorf("%s paniced:%v", name, r)
	}
}
