package player

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// RepeatMode controls what happens at either end of a [Queue].
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

func (r RepeatMode) String() string {
	switch r {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// ParseRepeatMode accepts off, one or all.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none":
		return RepeatOff, nil
	case "one", "song":
		return RepeatOne, nil
	case "all", "queue":
		return RepeatAll, nil
	}
	return RepeatOff, fmt.Errorf("%w: repeat mode %q", shared.ErrInvalidArgument, s)
}

// Queue is an ordered list of songs with a cursor.
//
// Shuffling permutes the play order while keeping the current song at the cursor; turning it off restores
// the original order without moving off the current song.
type Queue struct {
	mu       sync.Mutex
	songs    []*models.Song
	order    []int // play order, indexes into songs
	pos      int
	shuffled bool
	repeat   RepeatMode
}

// NewQueue creates a queue positioned at the first song.
func NewQueue(songs ...*models.Song) *Queue {
	q := &Queue{}
	q.Add(songs...)
	return q
}

// Add appends songs to the end of the play order.
func (q *Queue) Add(songs ...*models.Song) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, s := range songs {
		q.order = append(q.order, len(q.songs))
		q.songs = append(q.songs, s)
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.songs)
}

// Current returns the song at the cursor.
func (q *Queue) Current() (*models.Song, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current()
}

func (q *Queue) current() (*models.Song, error) {
	if len(q.order) == 0 {
		return nil, shared.ErrQueueEmpty
	}
	return q.songs[q.order[q.pos]], nil
}

// Next advances the cursor and returns the new current song.
//
// ok is false at the end of the queue with repeat off; the cursor does not move.
func (q *Queue) Next() (song *models.Song, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return nil, false
	}

	switch {
	case q.repeat == RepeatOne:
	case q.pos+1 < len(q.order):
		q.pos++
	case q.repeat == RepeatAll:
		q.pos = 0
	default:
		return nil, false
	}
	return q.songs[q.order[q.pos]], true
}

// Previous moves the cursor back, mirroring [Queue.Next].
func (q *Queue) Previous() (song *models.Song, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return nil, false
	}

	switch {
	case q.repeat == RepeatOne:
	case q.pos > 0:
		q.pos--
	case q.repeat == RepeatAll:
		q.pos = len(q.order) - 1
	default:
		return nil, false
	}
	return q.songs[q.order[q.pos]], true
}

// Jump moves the cursor to the i-th song in play order.
func (q *Queue) Jump(i int) (*models.Song, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.order) {
		return nil, fmt.Errorf("%w: queue position %d out of range", shared.ErrInvalidArgument, i+1)
	}
	q.pos = i
	return q.songs[q.order[q.pos]], nil
}

// SetShuffle turns shuffling on or off. Turning it on again reshuffles.
func (q *Queue) SetShuffle(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shuffled = on
	if len(q.order) == 0 {
		return
	}
	current := q.order[q.pos]

	if !on {
		for i := range q.order {
			q.order[i] = i
		}
		q.pos = current
		return
	}

	rest := make([]int, 0, len(q.songs)-1)
	for i := range q.songs {
		if i != current {
			rest = append(rest, i)
		}
	}
	rand.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	q.order = append([]int{current}, rest...)
	q.pos = 0
}

func (q *Queue) Shuffled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuffled
}

func (q *Queue) SetRepeat(r RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = r
}

func (q *Queue) Repeat() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}

// Songs returns the songs in play order along with the cursor position.
func (q *Queue) Songs() ([]*models.Song, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*models.Song, len(q.order))
	for i, idx := range q.order {
		out[i] = q.songs[idx]
	}
	return out, q.pos
}
