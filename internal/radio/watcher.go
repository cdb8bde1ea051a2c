package radio

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/emcomm-tools/et-launcher/pkg/events"
)

// Watcher publishes radio-info or radio-info-error whenever the descriptor
// file is created, written, renamed or removed.
type Watcher struct {
	reader  *Reader
	sink    events.Sink
	watcher *fsnotify.Watcher
	log     zerolog.Logger
	done    chan struct{}
	started sync.Once
	running bool
}

// NewWatcher watches the directory holding the descriptor. The directory
// must exist; the descriptor itself may not.
func NewWatcher(reader *Reader, sink events.Sink, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(reader.Path())
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch radio directory %s: %w", dir, err)
	}

	return &Watcher{
		reader:  reader,
		sink:    sink,
		watcher: fw,
		log:     log.With().Str("component", "radio").Logger(),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching for descriptor changes
func (w *Watcher) Start() {
	w.started.Do(func() {
		w.running = true
		go w.watch()
	})
}

// Stop stops the watcher and waits for the watch loop to exit. Stop must not
// race with Start.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	if w.running {
		<-w.done
	}
	return err
}

// Announce publishes the current radio once.
func (w *Watcher) Announce() {
	radio, err := w.reader.Current()
	if err != nil {
		w.log.Warn().Err(err).Msg("active radio descriptor unreadable")
		w.sink.Publish(events.Event{
			Type: events.RadioInfoError,
			Data: map[string]interface{}{"error": err.Error()},
		})
		return
	}
	w.sink.Publish(events.Event{
		Type: events.RadioInfo,
		Data: map[string]interface{}{"radio": radio},
	})
}

func (w *Watcher) watch() {
	defer close(w.done)

	target := filepath.Clean(w.reader.Path())
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.log.Debug().Str("op", event.Op.String()).Msg("radio descriptor changed")
				w.Announce()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("radio watcher error")
		}
	}
}
