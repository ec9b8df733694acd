//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based selector implementation and factory.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// epollSelector is a level-triggered epoll selector with an eventfd used to
// interrupt EpollWait from other threads.
type epollSelector struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent

	mu          sync.RWMutex // guards the descriptors against Close
	closed      bool
	wakePending atomic.Bool
}

// NewSelector constructs a new platform-specific Selector for Linux.
func NewSelector() (Selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return &epollSelector{epfd: epfd, wakefd: wakefd}, nil
}

func toEpoll(ops Ops) uint32 {
	var ev uint32
	if ops&OpRead != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if ops&OpWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func fromEpoll(ev uint32) Ops {
	var ops Ops
	if ev&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		ops |= OpRead
	}
	if ev&unix.EPOLLOUT != 0 {
		ops |= OpWrite
	}
	return ops
}

// Add registers fd with epoll.
func (s *epollSelector) Add(fd int, ops Ops) error {
	ev := unix.EpollEvent{Events: toEpoll(ops), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Modify replaces the interest set of fd.
func (s *epollSelector) Modify(fd int, ops Ops) error {
	ev := unix.EpollEvent{Events: toEpoll(ops), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Remove removes fd from the epoll watch list.
func (s *epollSelector) Remove(fd int) error {
	err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && !errors.Is(err, unix.ENOENT) && !errors.Is(err, unix.EBADF) {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Wait waits for epoll events and fills the result into events slice.
// The wakeup descriptor is consumed here and never reported.
func (s *epollSelector) Wait(events []Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, fmt.Errorf("epoll wait: empty event slice")
	}
	if cap(s.raw) < len(events) {
		s.raw = make([]unix.EpollEvent, len(events))
	}
	raw := s.raw[:len(events)]

	n, err := unix.EpollWait(s.epfd, raw, timeoutMs)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil // interrupted by signal, normal
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	out := 0
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == s.wakefd {
			s.consumeWakeup()
			continue
		}
		events[out] = Event{Fd: fd, Ops: fromEpoll(raw[i].Events)}
		out++
	}
	return out, nil
}

// consumeWakeup resets the eventfd counter, then re-arms Wakeup. The flag is
// cleared after the read so that a Wakeup racing with the caller's drain of
// deferred work always produces a fresh event.
func (s *epollSelector) consumeWakeup() {
	var buf [8]byte
	_, _ = unix.Read(s.wakefd, buf[:])
	s.wakePending.Store(false)
}

// Wakeup interrupts a blocked Wait.
func (s *epollSelector) Wakeup() error {
	if !s.wakePending.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(s.wakefd, buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		s.wakePending.Store(false)
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close closes the epoll instance and the wakeup descriptor.
func (s *epollSelector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	werr := unix.Close(s.wakefd)
	if err := unix.Close(s.epfd); err != nil {
		return fmt.Errorf("epoll close: %w", err)
	}
	if werr != nil {
		return fmt.Errorf("eventfd close: %w", werr)
	}
	return nil
}
