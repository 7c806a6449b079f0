// Package audio plays podcast scripts through a text-to-speech engine.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
)

// ErrNoScript is returned when there is nothing to play.
var ErrNoScript = errors.New("no script to play")

// Speaker reads text aloud and returns when it is done or ctx is cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Command speaks through an external TTS program such as espeak. The text
// is written to the program's stdin.
type Command struct {
	Name  string
	Args  []string
	Voice string
}

// Speak runs the program and waits for it to exit.
func (c Command) Speak(ctx context.Context, text string) error {
	name := c.Name
	if name == "" {
		name = "espeak"
	}
	args := append([]string(nil), c.Args...)
	if c.Voice != "" {
		args = append(args, "-v", c.Voice)
	}
	if name == "espeak" || name == "espeak-ng" {
		args = append(args, "--stdin")
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("running %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Player tracks a single playback. Starting playback while one is running
// stops it instead, like a play/stop button.
type Player struct {
	speaker  Speaker
	onChange func(playing bool)

	mu      sync.Mutex
	playing bool
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPlayer creates a player. onChange, if set, is called after every
// change of the playing flag.
func NewPlayer(speaker Speaker, onChange func(playing bool)) *Player {
	return &Player{speaker: speaker, onChange: onChange}
}

// Playing reports whether playback is in progress.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Toggle starts reading script, or stops the current playback if there is
// one. It reports whether playback is now running.
func (p *Player) Toggle(script string) (bool, error) {
	if strings.TrimSpace(script) == "" {
		return false, ErrNoScript
	}
	p.mu.Lock()
	if p.playing {
		p.stopLocked()
		p.mu.Unlock()
		p.changed(false)
		return false, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.gen++
	gen := p.gen
	p.playing = true
	p.cancel = cancel
	done := make(chan struct{})
	p.done = done
	p.mu.Unlock()
	p.changed(true)

	go func() {
		defer close(done)
		err := p.speaker.Speak(ctx, script)
		if err != nil && ctx.Err() == nil {
			log.Printf("audio: playback failed: %v", err)
		}
		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return
		}
		p.playing = false
		p.cancel = nil
		p.mu.Unlock()
		cancel()
		p.changed(false)
	}()
	return true, nil
}

// Stop cancels playback. It is a no-op when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.stopLocked()
	p.mu.Unlock()
	p.changed(false)
}

// Wait blocks until the most recent playback has returned.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Player) stopLocked() {
	p.gen++
	p.playing = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Player) changed(playing bool) {
	if p.onChange != nil {
		p.onChange(playing)
	}
}
