package areawatch

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// historyCap bounds the rolling event history.
const historyCap = 15

// Callbacks receive semantic transitions. All callbacks run synchronously
// on the monitor's polling goroutine; nil callbacks are skipped.
type Callbacks struct {
	// OnMapEnter fires when a run-bearing area is entered, including a
	// distinct map entered while a run is already active.
	OnMapEnter func(Event)
	// OnMapExit fires when a safe zone ends an active run. The event is
	// the map info captured at entry, not the safe zone.
	OnMapExit func(Event)
	// OnTriggerZoneEnter fires when a designated safe target is entered
	// directly from a trigger zone.
	OnTriggerZoneEnter func(Event)
}

// Options configure the monitor.
type Options struct {
	// Path is the client log file to tail.
	Path string
	// PollInterval is the tick between scans.
	PollInterval time.Duration
	// ScanWindow caps the bytes consumed per scan; a large backlog is
	// skipped to the newest window rather than replayed.
	ScanWindow int64
	// FromStart reads the whole file on the first scan instead of
	// tailing from the end.
	FromStart bool
}

// Status is a copy of the monitor's state, safe to retain.
type Status struct {
	Running     bool
	Offset      int64
	CurrentArea string
	InMap       bool
	CurrentMap  *Event
	History     []Event
}

// ErrAlreadyRunning is returned by Start on a running monitor.
var ErrAlreadyRunning = errors.New("areawatch: monitor already running")

// Monitor tails the log and drives the transition state machine. State is
// written only by the polling goroutine and read through Status.
type Monitor struct {
	opt    Options
	class  *Classifier
	cb     Callbacks
	logger *slog.Logger

	mu          sync.RWMutex
	running     bool
	offset      int64
	currentArea string
	inMap       bool
	currentMap  *Event
	history     []Event

	carry []byte

	fsw  *fsnotify.Watcher
	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a monitor. The classifier and callbacks are fixed for the
// monitor's lifetime.
func New(opt Options, class *Classifier, cb Callbacks, logger *slog.Logger) *Monitor {
	if opt.PollInterval <= 0 {
		opt.PollInterval = time.Second
	}
	if opt.ScanWindow <= 0 {
		opt.ScanWindow = 1 << 20
	}
	if class == nil {
		class = NewClassifier(DefaultClassifierConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		opt:    opt,
		class:  class,
		cb:     cb,
		logger: logger.With("component", "areawatch"),
		offset: -1,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the polling goroutine. The log file does not need to
// exist yet; scanning begins once it appears.
func (m *Monitor) Start() error {
	if m.opt.Path == "" {
		return errors.New("areawatch: empty log path")
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	// fsnotify wakes the loop early on writes; the interval timer remains
	// the correctness mechanism, so a watch failure only costs latency.
	if fsw, err := fsnotify.NewWatcher(); err != nil {
		m.logger.Warn("fsnotify unavailable, polling only", "error", err)
	} else if err := fsw.Add(filepath.Dir(m.opt.Path)); err != nil {
		m.logger.Warn("fsnotify watch failed, polling only", "error", err)
		fsw.Close()
	} else {
		m.fsw = fsw
		m.wg.Add(1)
		go m.watchLoop()
	}

	m.wg.Add(1)
	go m.pollLoop()

	m.logger.Info("monitor started",
		"path", m.opt.Path,
		"poll_interval", m.opt.PollInterval,
	)
	return nil
}

// Stop shuts the monitor down. The polling goroutine observes the stop
// within one poll interval.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.done)
	if m.fsw != nil {
		m.fsw.Close()
	}
	m.wg.Wait()
	m.logger.Info("monitor stopped")
}

// Status returns a copy of the current state.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Running:     m.running,
		Offset:      m.offset,
		CurrentArea: m.currentArea,
		InMap:       m.inMap,
		History:     make([]Event, len(m.history)),
	}
	copy(st.History, m.history)
	if m.currentMap != nil {
		ev := *m.currentMap
		st.CurrentMap = &ev
	}
	return st
}

// ResetState clears the transition state and history. The file offset is
// kept so the tail position survives a session reset.
func (m *Monitor) ResetState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentArea = ""
	m.inMap = false
	m.currentMap = nil
	m.history = nil
}

// watchLoop forwards write events on the log file into the wake channel.
func (m *Monitor) watchLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-m.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != m.opt.Path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case m.wake <- struct{}{}:
			default:
			}
		case _, ok := <-m.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// pollLoop scans on every tick or wake. A scan failure is logged and the
// next wait doubles once; the loop never terminates on a read error.
func (m *Monitor) pollLoop() {
	defer m.wg.Done()

	timer := time.NewTimer(m.opt.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-timer.C:
		case <-m.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		wait := m.opt.PollInterval
		if err := m.scan(); err != nil {
			m.logger.Warn("log scan failed", "error", err)
			wait = 2 * m.opt.PollInterval
		}
		timer.Reset(wait)
	}
}

// scan reads the bytes appended since the last position and feeds every
// complete line through the parser and state machine.
func (m *Monitor) scan() error {
	f, err := os.Open(m.opt.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// Not created yet; keep waiting.
			return nil
		}
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	size := st.Size()

	m.mu.Lock()
	offset := m.offset
	if offset < 0 {
		// First sight of the file: tail from the end unless asked to
		// replay history.
		if m.opt.FromStart {
			offset = 0
		} else {
			offset = size
		}
	}
	if size < offset {
		// File shrank: rotation or truncation. Start over.
		m.logger.Info("log rotated, resetting offset", "size", size)
		offset = 0
		m.carry = nil
	}
	if size-offset > m.opt.ScanWindow {
		offset = size - m.opt.ScanWindow
		m.carry = nil
	}
	m.mu.Unlock()

	if offset == size {
		m.setOffset(offset)
		return nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, size-offset)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	buf = buf[:n]
	offset += int64(n)
	m.setOffset(offset)

	m.mu.Lock()
	data := append(m.carry, buf...)
	lines := strings.Split(string(data), "\n")
	m.carry = []byte(lines[len(lines)-1])
	lines = lines[:len(lines)-1]
	m.mu.Unlock()

	for _, line := range lines {
		ev, ok := ParseLine(line)
		if !ok {
			continue
		}
		m.handleEvent(ev)
	}
	return nil
}

func (m *Monitor) setOffset(offset int64) {
	m.mu.Lock()
	m.offset = offset
	m.mu.Unlock()
}

// handleEvent applies the transition rules for one parsed event and fires
// the resulting callback, if any, after releasing the state lock.
func (m *Monitor) handleEvent(ev Event) {
	cls := m.class.Classify(ev.AreaCode)

	var fire func(Event)
	var fireArg Event

	m.mu.Lock()

	var prev *Event
	if n := len(m.history); n > 0 {
		prev = &m.history[n-1]
	}
	prevWasSub := prev != nil && m.class.Classify(prev.AreaCode) == ZoneSub
	prevWasTrigger := prev != nil && m.class.Classify(prev.AreaCode) == ZoneTrigger

	m.history = append(m.history, ev)
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}

	switch {
	case !m.inMap && cls == ZoneMap:
		m.inMap = true
		entered := ev
		m.currentMap = &entered
		m.currentArea = ev.AreaCode
		fire, fireArg = m.cb.OnMapEnter, ev

	case m.inMap && cls == ZoneSub:
		// Pocket area inside the run; the run continues.
		m.currentArea = ev.AreaCode

	case m.inMap && cls == ZoneMap && prevWasSub:
		// Returning from a pocket into the same run.
		m.currentArea = ev.AreaCode

	case m.inMap && cls == ZoneMap:
		// A distinct map entered while a run is active.
		entered := ev
		m.currentMap = &entered
		m.currentArea = ev.AreaCode
		fire, fireArg = m.cb.OnMapEnter, ev

	case m.inMap && cls == ZoneSafe:
		m.inMap = false
		if m.currentMap != nil {
			fire, fireArg = m.cb.OnMapExit, *m.currentMap
		}
		m.currentMap = nil
		m.currentArea = ev.AreaCode

	case !m.inMap && cls == ZoneSafe && prevWasTrigger && m.class.IsSafeTarget(ev.AreaCode):
		m.currentArea = ev.AreaCode
		fire, fireArg = m.cb.OnTriggerZoneEnter, ev

	default:
		m.currentArea = ev.AreaCode
	}

	m.mu.Unlock()

	if fire != nil {
		m.logger.Debug("area transition", "area", ev.AreaCode, "zone", cls.String())
		fire(fireArg)
	}
}
