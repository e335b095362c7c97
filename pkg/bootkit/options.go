package bootkit

import "time"

type bootkitOptions struct {
	startTimeout time.Duration
	stopTimeout  time.Duration
}

type bootkitApplyOptions struct {
	bootkit *bootkitOptions
}

type Option interface {
	apply(options *bootkitApplyOptions)
}

type optionFunc func(options *bootkitApplyOptions)

func (f optionFunc) apply(options *bootkitApplyOptions) {
	f(options)
}

// StartTimeout bounds how long the Runnables may take to wire everything.
func StartTimeout(d time.Duration) Option {
	return optionFunc(func(options *bootkitApplyOptions) {
		if d > 0 {
			options.bootkit.startTimeout = d
		}
	})
}

func StopTimeout(d time.Duration) Option {
	return optionFunc(func(options *bootkitApplyOptions) {
		if d > 0 {
			options.bootkit.stopTimeout = d
		}
	})
}
