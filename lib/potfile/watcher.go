package potfile

import (
	"context"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/nxadm/tail"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

// Watcher follows an outfile written by another instance and marks every hash it finds there as shown.
type Watcher struct {
	Path     string
	Registry *hashlist.Registry
	Parser   hashlist.Parser

	// OnEntry is called for each newly shown entry. Optional.
	OnEntry func(Entry)
	// OnAllShown is called once when the last digest becomes shown. Optional.
	OnAllShown func()
}

// Watch tails w.Path from the beginning until ctx is done or every digest is shown.
func (w *Watcher) Watch(ctx context.Context) error {
	tailer, err := tail.TailFile(w.Path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:    state.Logger.StandardLog(),
	})
	if err != nil {
		return errors.Wrapf(err, "couldn't tail outfile %q", w.Path)
	}

	defer func() {
		if err := tailer.Stop(); err != nil {
			state.Logger.Debug("Stopping outfile tailer", "path", w.Path, "error", err)
		}

		tailer.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-tailer.Lines:
			if !ok {
				return errors.Wrapf(tailer.Err(), "outfile tailer for %q stopped", w.Path)
			}

			if line.Err != nil {
				state.Logger.Warn("Error reading outfile", "path", w.Path, "error", line.Err)

				continue
			}

			if w.handle(line.Text) {
				return nil
			}
		}
	}
}

// handle resolves one outfile line. It returns true when every digest is shown.
func (w *Watcher) handle(text string) bool {
	text = strings.TrimRight(text, "\r")
	if text == "" {
		return false
	}

	e, ok := Resolve(w.Registry, w.Parser, text)
	if !ok {
		return false
	}

	state.Logger.Debug("Hash found in outfile", "hash", e.Hash)

	if w.OnEntry != nil {
		w.OnEntry(e)
	}

	if e.Result.AllDone {
		if w.OnAllShown != nil {
			w.OnAllShown()
		}

		return true
	}

	return false
}
