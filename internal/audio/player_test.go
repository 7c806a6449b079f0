package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeSpeaker struct {
	started chan string
	finish  chan error
}

func newFakeSpeaker() *fakeSpeaker {
	return &fakeSpeaker{started: make(chan string, 4), finish: make(chan error, 4)}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) error {
	f.started <- text
	select {
	case err := <-f.finish:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type changes struct {
	mu  sync.Mutex
	got []bool
}

func (c *changes) record(playing bool) {
	c.mu.Lock()
	c.got = append(c.got, playing)
	c.mu.Unlock()
}

func (c *changes) list() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.got...)
}

func TestToggleWithoutScript(t *testing.T) {
	p := NewPlayer(newFakeSpeaker(), nil)
	if _, err := p.Toggle("  "); !errors.Is(err, ErrNoScript) {
		t.Errorf("err = %v, want ErrNoScript", err)
	}
	if p.Playing() {
		t.Error("playing without a script")
	}
}

func TestPlaybackEndsNaturally(t *testing.T) {
	s := newFakeSpeaker()
	var c changes
	p := NewPlayer(s, c.record)

	playing, err := p.Toggle("hello")
	if err != nil || !playing {
		t.Fatalf("Toggle = %v, %v", playing, err)
	}
	if got := <-s.started; got != "hello" {
		t.Errorf("spoke %q", got)
	}
	s.finish <- nil
	p.Wait()
	if p.Playing() {
		t.Error("still playing after the speaker finished")
	}
	if got := c.list(); len(got) != 2 || !got[0] || got[1] {
		t.Errorf("changes = %v", got)
	}
}

func TestPlaybackErrorClearsFlag(t *testing.T) {
	s := newFakeSpeaker()
	p := NewPlayer(s, nil)
	p.Toggle("hello")
	<-s.started
	s.finish <- errors.New("no audio device")
	p.Wait()
	if p.Playing() {
		t.Error("still playing after an error")
	}
}

func TestToggleStops(t *testing.T) {
	s := newFakeSpeaker()
	var c changes
	p := NewPlayer(s, c.record)
	p.Toggle("hello")
	<-s.started

	playing, err := p.Toggle("hello")
	if err != nil || playing {
		t.Fatalf("second Toggle = %v, %v", playing, err)
	}
	p.Wait()
	if p.Playing() {
		t.Error("still playing after stop")
	}
	// The cancelled playback must not report a second stop.
	if got := c.list(); len(got) != 2 {
		t.Errorf("changes = %v", got)
	}
}

func TestStopThenPlayAgain(t *testing.T) {
	s := newFakeSpeaker()
	p := NewPlayer(s, nil)
	p.Toggle("one")
	<-s.started
	p.Stop()
	p.Stop()
	p.Wait()

	p.Toggle("two")
	if got := <-s.started; got != "two" {
		t.Errorf("spoke %q", got)
	}
	if !p.Playing() {
		t.Error("not playing")
	}
	p.Stop()
	p.Wait()
}
