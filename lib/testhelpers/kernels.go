// Package testhelpers provides reusable test utilities and helpers for testing cipherswarm-dispatch.
package testhelpers

import (
	"context"
	"sync/atomic"

	"github.com/unclesp1d3r/cipherswarmdispatch/lib/device"
)

// NopKernel matches nothing.
func NopKernel() device.Kernel {
	return device.KernelFunc(func(context.Context, device.Batch) ([]device.Match, error) { return nil, nil })
}

// HookKernel calls hook with the 1-based call number before delegating each submission to inner. A non-nil
// error from hook is returned instead of calling inner.
func HookKernel(inner device.Kernel, hook func(call int64) error) device.Kernel {
	var calls atomic.Int64

	return device.KernelFunc(func(ctx context.Context, b device.Batch) ([]device.Match, error) {
		if err := hook(calls.Add(1)); err != nil {
			return nil, err
		}

		return inner.Submit(ctx, b)
	})
}

// FailingKernel delegates to inner until call failAt, from which on it returns err.
func FailingKernel(inner device.Kernel, failAt int64, err error) device.Kernel {
	return HookKernel(inner, func(call int64) error {
		if call >= failAt {
			return err
		}

		return nil
	})
}
