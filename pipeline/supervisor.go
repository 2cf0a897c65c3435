/***** BEGIN LICENSE BLOCK *****
# This Source Code Form is subject to the terms of the Mozilla Public
# License, v. 2.0. If a copy of the MPL was not distributed with this file,
# You can obtain one at http://mozilla.org/MPL/2.0/.
#
# The Initial Developer of the Original Code is the Mozilla Foundation.
# Portions created by the Initial Developer are Copyright (C) 2012-2015
# the Initial Developer. All Rights Reserved.
#
# ***** END LICENSE BLOCK *****/

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ChildSpawner starts one child process wired for the forked-worker
// protocol. Production wiring execs the running binary's hidden __child
// subcommand, which runs ChildMain (cmd/tikapipes); tests use a fake spawner that
// runs an in-process goroutine instead of a real process, exercising the
// same framed protocol over an in-memory pipe.
type ChildSpawner func() (*exec.Cmd, io.WriteCloser, io.ReadCloser, error)

type childState int

const (
	childIdle childState = iota
	childBusy
	childDead
)

type childProc struct {
	id     int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	state  childState
}

// Supervisor owns a pool of forked child processes and routes parse
// requests to them over the framed protocol from spec §4.8/§6. A worker
// thread acquires a child via acquireChild, which blocks until one is idle
// or the caller's deadline elapses (spec §4.8's "acquires a child via a
// semaphore" requirement, implemented here as a guarded LIFO stack plus a
// wake signal rather than a counting semaphore, so a child removed outside
// of acquire/release — a missed heartbeat, an idle crash — never drifts the
// available-slot count the way an independently-tracked permit would).
type Supervisor struct {
	logger *Logger
	conf   PipesConfig
	spawn  ChildSpawner
	wake   chan struct{}

	mu       sync.Mutex
	idle     []*childProc // LIFO, to exploit warm caches
	children map[int]*childProc
	nextID   int
	closed   bool
}

// NewSupervisor builds and starts a pool of conf.MaxForkedChildren children.
func NewSupervisor(conf PipesConfig, spawn ChildSpawner, logger *Logger) (*Supervisor, error) {
	s := &Supervisor{
		logger:   logger,
		conf:     conf,
		spawn:    spawn,
		wake:     make(chan struct{}, conf.MaxForkedChildren),
		children: make(map[int]*childProc),
	}
	for i := 0; i < conf.MaxForkedChildren; i++ {
		if err := s.spawnOne(); err != nil {
			return nil, fmt.Errorf("supervisor: spawning initial children: %w", err)
		}
	}
	return s, nil
}

func (s *Supervisor) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Supervisor) spawnOne() error {
	cmd, stdin, stdout, err := s.spawn()
	if err != nil {
		return err
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.mu.Unlock()

	child := &childProc{id: id, cmd: cmd, stdin: stdin, stdout: stdout, state: childIdle}

	readyCh := make(chan error, 1)
	go func() {
		frameType, _, err := ReadFrame(stdout)
		if err != nil {
			readyCh <- err
			return
		}
		if frameType != FrameReady {
			readyCh <- fmt.Errorf("supervisor: expected READY, got frame type %d", frameType)
			return
		}
		readyCh <- nil
	}()
	select {
	case err := <-readyCh:
		if err != nil {
			return err
		}
	case <-time.After(s.conf.clientTimeout()):
		return fmt.Errorf("supervisor: child %d did not become ready in time", id)
	}

	s.mu.Lock()
	s.children[id] = child
	s.idle = append(s.idle, child)
	s.mu.Unlock()
	s.notify()
	if s.logger != nil {
		s.logger.Info("forked child ready", "childId", id)
	}
	if s.conf.PingIntervalMillis > 0 {
		go s.heartbeat(child)
	}
	if child.cmd != nil {
		go s.watchExit(child)
	}
	return nil
}

// heartbeat pings an idle child on conf.PingIntervalMillis and replaces it
// if a PONG doesn't arrive within conf.PingTimeoutMillis, per spec §4.8
// step 3. It claims the child out of the idle list the same way acquireChild
// does before touching its pipe, so a ping can never interleave with a real
// PARSE request on the same stdin/stdout: the two can't both hold the child
// at once.
func (s *Supervisor) heartbeat(child *childProc) {
	ticker := time.NewTicker(s.conf.pingInterval())
	defer ticker.Stop()
	for range ticker.C {
		if s.isClosed() {
			return
		}
		if !s.claimIdle(child) {
			continue
		}
		if err := s.pingChild(child); err != nil {
			if s.logger != nil {
				s.logger.Warn("forked child missed heartbeat", "childId", child.id)
			}
			s.replaceChild(child)
			return
		}
		s.releaseChild(child)
	}
}

func (s *Supervisor) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// claimIdle removes child from the idle list and marks it busy, exactly
// like acquireChild. Reports false if the child isn't idle (already handed
// out to a caller, or already dead), in which case the heartbeat just waits
// for its next tick.
func (s *Supervisor) claimIdle(child *childProc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.idle {
		if c == child {
			s.idle = append(s.idle[:i], s.idle[i+1:]...)
			child.state = childBusy
			return true
		}
	}
	return false
}

func (s *Supervisor) pingChild(child *childProc) error {
	if err := WriteFrame(child.stdin, FramePing, nil); err != nil {
		return err
	}
	pongCh := make(chan error, 1)
	go func() {
		frameType, _, err := ReadFrame(child.stdout)
		if err != nil {
			pongCh <- err
			return
		}
		if frameType != FramePong {
			pongCh <- fmt.Errorf("expected PONG, got frame type %d", frameType)
			return
		}
		pongCh <- nil
	}()
	select {
	case err := <-pongCh:
		return err
	case <-time.After(s.conf.pingTimeout()):
		return fmt.Errorf("heartbeat timed out after %s", s.conf.pingTimeout())
	}
}

// watchExit silently replaces a child that dies while idle (spec §4.8 step
// 6), including the RESTART_REQUESTED exit triggered by the memory guard.
func (s *Supervisor) watchExit(child *childProc) {
	_ = child.cmd.Wait()
	s.mu.Lock()
	dead := s.closed
	state := child.state
	_, tracked := s.children[child.id]
	s.mu.Unlock()
	if dead || !tracked || state != childIdle {
		return
	}
	if s.logger != nil {
		s.logger.Info("idle forked child exited, replacing", "childId", child.id)
	}
	s.replaceChild(child)
}

// acquireChild pops the most-recently-idled child (LIFO), blocking until one
// is free or ctx expires. Unlike a counting semaphore, popping from idle and
// waking a waiter are the same mutex-guarded operation, so a child that
// becomes idle outside of releaseChild (spawnOne's initial handoff) can
// never be double-counted or leaked.
func (s *Supervisor) acquireChild(ctx context.Context) (*childProc, error) {
	for {
		s.mu.Lock()
		if n := len(s.idle); n > 0 {
			child := s.idle[n-1]
			s.idle = s.idle[:n-1]
			child.state = childBusy
			s.mu.Unlock()
			return child, nil
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
			// Some child became idle; loop back and try to claim it. Another
			// waiter may win the race, in which case we wait again.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Supervisor) releaseChild(child *childProc) {
	s.mu.Lock()
	child.state = childIdle
	s.idle = append(s.idle, child)
	s.mu.Unlock()
	s.notify()
}

func (s *Supervisor) removeChild(child *childProc) {
	s.mu.Lock()
	delete(s.children, child.id)
	s.mu.Unlock()
	_ = child.stdin.Close()
	_ = child.stdout.Close()
	if child.cmd != nil && child.cmd.Process != nil {
		_ = child.cmd.Process.Kill()
	}
}

// replaceChild removes a dead/unresponsive child and spawns a fresh one to
// keep the pool at MaxForkedChildren, per spec §8's childRespawnMillis
// property.
func (s *Supervisor) replaceChild(child *childProc) {
	s.removeChild(child)
	go func() {
		deadline := time.Now().Add(s.conf.childRespawn())
		var lastErr error
		for time.Now().Before(deadline) {
			err := s.spawnOne()
			if err == nil {
				return
			}
			lastErr = err
			time.Sleep(50 * time.Millisecond)
		}
		if s.logger != nil {
			s.logger.Error("failed to respawn forked child within budget", "err", lastErr)
		}
	}()
}

// Parse routes one parse request to an idle child and awaits its reply,
// enforcing the per-parse timeout and client-acquisition timeout from
// spec §4.8.
func (s *Supervisor) Parse(id string, stream io.Reader, meta Metadata, pc ParseContext) ([]Metadata, error) {
	ctx := pc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	acquireCtx, cancel := context.WithTimeout(ctx, s.conf.clientTimeout())
	defer cancel()

	child, err := s.acquireChild(acquireCtx)
	if err != nil {
		return nil, &supervisorStatusError{status: StatusClientUnavailableWithinMs, cause: err}
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		s.releaseChild(child)
		return nil, &FetchException{FetchKey: id, Cause: err}
	}

	var tempPath string
	inline := data
	if int64(len(data)) > s.conf.InlineThresholdBytes {
		dir := s.conf.TempDir
		f, ferr := writeScopedTempFile(dir, data)
		if ferr == nil {
			tempPath = f
			inline = nil
		}
	}

	req := ParseRequest{ID: id, Meta: meta, MaxDepth: s.conf.MaxEmbeddedDepth, InlinePayload: inline, TempFilePath: tempPath}

	replyCh := make(chan ParseReply, 1)
	errCh := make(chan error, 1)
	go func() {
		if err := WriteFrame(child.stdin, FrameParse, EncodeParseRequest(req)); err != nil {
			errCh <- err
			return
		}
		frameType, payload, err := ReadFrame(child.stdout)
		if err != nil {
			errCh <- err
			return
		}
		switch frameType {
		case FrameResult:
			reply, err := DecodeParseReply(payload)
			if err != nil {
				errCh <- err
				return
			}
			replyCh <- reply
		case FrameError:
			_, msg, _ := DecodeErrorFrame(payload)
			errCh <- fmt.Errorf("child error: %s", msg)
		default:
			errCh <- fmt.Errorf("unexpected frame type %d", frameType)
		}
	}()

	select {
	case reply := <-replyCh:
		if tempPath != "" {
			_ = removeTempFile(tempPath)
		}
		s.releaseChild(child)
		if reply.Status != "" && reply.Status != StatusParseSuccess {
			return reply.Metadata, &ParseError{Kind: ParseErrorOther, Cause: fmt.Errorf("child reported status %s", reply.Status)}
		}
		return reply.Metadata, nil

	case err := <-errCh:
		if tempPath != "" {
			_ = removeTempFile(tempPath)
		}
		s.replaceChild(child)
		return nil, &supervisorStatusError{status: StatusUnspecifiedCrash, cause: err}

	case <-ctx.Done():
		// The child is mid-parse with no way to interrupt it short of
		// killing it, so treat cancellation the same as any other
		// unrecoverable child state: drop it and let the pool replace it.
		if tempPath != "" {
			_ = removeTempFile(tempPath)
		}
		s.replaceChild(child)
		return nil, ctx.Err()

	case <-time.After(s.conf.parseTimeout()):
		if tempPath != "" {
			_ = removeTempFile(tempPath)
		}
		s.replaceChild(child)
		return nil, &supervisorStatusError{status: StatusTimeout, cause: fmt.Errorf("parse timed out after %s", s.conf.parseTimeout())}
	}
}

// Shutdown sends SHUTDOWN to every child and tears the pool down.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	children := make([]*childProc, 0, len(s.children))
	for _, c := range s.children {
		children = append(children, c)
	}
	s.mu.Unlock()

	for _, c := range children {
		_ = WriteFrame(c.stdin, FrameShutdown, nil)
		s.removeChild(c)
	}
}

// ChildCount returns how many children are currently tracked as live,
// exercised by spec §8's "child-process count" invariant.
func (s *Supervisor) ChildCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

// supervisorStatusError carries the Status a caller should report for a
// supervisor-level failure, alongside the underlying cause for logging.
type supervisorStatusError struct {
	status Status
	cause  error
}

func (e *supervisorStatusError) Error() string { return fmt.Sprintf("%s: %s", e.status, e.cause) }
func (e *supervisorStatusError) Unwrap() error { return e.cause }

// writeScopedTempFile writes data to a new file directly in dir (os.TempDir()
// when dir is empty) and returns its path; the caller (the supervisor) deletes it
// once the child's reply has been received, per spec §4.8.
func writeScopedTempFile(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "tika-pipes-inline-*")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
