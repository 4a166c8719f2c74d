package aesdir

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// watchRouter fans change notifications out to registered callbacks
type watchRouter struct {
	mu        sync.Mutex
	next      uint64
	callbacks map[uint64]WatchCallback
}

func newWatchRouter() *watchRouter {
	return &watchRouter{callbacks: make(map[uint64]WatchCallback)}
}

func (r *watchRouter) subscribe(cb WatchCallback) WatchHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.callbacks[id] = cb
	return &watchHandle{router: r, id: id}
}

// notify runs the callbacks outside the lock so they may register or close
// watches themselves.
func (r *watchRouter) notify(name string) {
	r.mu.Lock()
	cbs := make([]WatchCallback, 0, len(r.callbacks))
	for _, cb := range r.callbacks {
		cbs = append(cbs, cb)
	}
	r.mu.Unlock()

	for _, cb := range cbs {
		cb(name)
	}
}

func (r *watchRouter) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.callbacks)
}

type watchHandle struct {
	router *watchRouter
	id     uint64
	once   sync.Once
}

func (h *watchHandle) Close() error {
	h.once.Do(func() {
		h.router.mu.Lock()
		delete(h.router.callbacks, h.id)
		h.router.mu.Unlock()
	})
	return nil
}

// fsWatcher feeds host filesystem events for one directory into a router
type fsWatcher struct {
	watcher *fsnotify.Watcher
	root    string
	router  *watchRouter
	log     *logrus.Entry
	done    chan struct{}
}

func newFSWatcher(root string, router *watchRouter, log *logrus.Entry) (*fsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, err
	}

	fw := &fsWatcher{
		watcher: w,
		root:    root,
		router:  router,
		log:     log,
		done:    make(chan struct{}),
	}
	go fw.eventLoop()
	return fw, nil
}

func (fw *fsWatcher) eventLoop() {
	defer close(fw.done)
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			rel, err := filepath.Rel(fw.root, event.Name)
			if err != nil {
				continue
			}
			name := filepath.ToSlash(rel)
			if isInternalName(name) {
				continue
			}
			fw.router.notify(name)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.WithError(err).Warn("directory watch error")
		}
	}
}

func (fw *fsWatcher) Close() error {
	err := fw.watcher.Close()
	<-fw.done
	return err
}

// tmpPrefix marks temporary files created by AtomicWrite
const tmpPrefix = ".tmp-"

// isInternalName reports names the directory creates for its own
// bookkeeping, which watchers do not report.
func isInternalName(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, tmpPrefix) || strings.HasSuffix(base, ".lock")
}
