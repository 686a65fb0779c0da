// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"
	"sync"
	"time"

	"malloy/cli/internal/compiler"
	apperrors "malloy/cli/internal/errors"
	"malloy/cli/internal/render"
	"malloy/cli/internal/terminal"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// startSpinner shows an animated line with text until the returned function is
// called. It does nothing when stdout is not a terminal, so piped SQL and query
// output stay clean.
func startSpinner(text string) func() {
	if !terminal.IsInteractive(os.Stdout) {
		return func() {}
	}

	cursor.Hide()
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start()
	if err != nil {
		cursor.Show()
		return func() {}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(120 * time.Millisecond)
		defer t.Stop()
		for i := 0; ; i++ {
			area.Update(fmt.Sprintf("%s %s", spinnerFrames[i%len(spinnerFrames)], text))
			select {
			case <-t.C:
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			_ = area.Stop()
			cursor.Show()
		})
	}
}

// compileFailure prints a failed compilation to stderr and returns the error
// the command exits with.
func compileFailure(res *compiler.Result, err error) error {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, render.Failure(res))
	if err != nil {
		return err
	}
	if res == nil {
		return apperrors.New(apperrors.CompileFailed, "compilation failed")
	}
	return apperrors.New(res.Kind, "compilation failed")
}
