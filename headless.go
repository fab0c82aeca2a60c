package main

import (
	"context"
	"fmt"
	"io"

	"murmur/controller"
)

// runHeadless records once (or until continuous mode stops), prints the
// transcript and, with -rewrite, its rewrite.
func runHeadless(ctx context.Context, a *app, out io.Writer) int {
	if a.promptErr != nil {
		fmt.Fprintf(out, "Warning: %v, using %s prompt\n", a.promptErr, a.prompts.Label())
	}
	fmt.Fprintln(out, a.modeLine())
	fmt.Fprintln(out, deviceLine(a.device))

	if err := a.ctrl.Start(ctx); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
	done := make(chan struct{})
	go func() {
		a.ctrl.Wait()
		close(done)
	}()

	failed := pump(a.ctrl.Events(), done, out)
	if failed {
		return 1
	}
	if !a.cfg.Rewrite {
		return 0
	}
	if _, err := a.ctrl.Rewrite(ctx); err != nil {
		fmt.Fprintf(out, "Error: rewrite: %v\n", err)
		return 1
	}
	drain(a.ctrl.Events(), out)
	return 0
}

// pump prints events until done closes and the buffer is empty. It reports
// whether any operation failed.
func pump(events <-chan controller.Event, done <-chan struct{}, out io.Writer) bool {
	failed := false
	for {
		select {
		case ev := <-events:
			failed = show(ev, out) || failed
		case <-done:
			return drain(events, out) || failed
		}
	}
}

func drain(events <-chan controller.Event, out io.Writer) bool {
	failed := false
	for {
		select {
		case ev := <-events:
			failed = show(ev, out) || failed
		default:
			return failed
		}
	}
}

func show(ev controller.Event, out io.Writer) (failed bool) {
	feedback(ev)
	if ev.Kind != controller.StateChanged {
		fmt.Fprintln(out, describe(ev))
	}
	return ev.Kind == controller.Failed
}
