package domain

// Queue is a FIFO track queue. The head is the "now playing" track while
// a session is active; advancing through the queue pops the head, so the
// queue only ever shrinks between enqueues.
type Queue struct {
	tracks []Track
}

// NewQueue creates a new empty Queue.
func NewQueue() Queue {
	return Queue{tracks: make([]Track, 0)}
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return len(q.tracks) == 0
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Head returns the track at the front of the queue without removing it,
// or nil if the queue is empty.
func (q *Queue) Head() *Track {
	if q.IsEmpty() {
		return nil
	}
	return &q.tracks[0]
}

// Pop removes and returns the track at the front of the queue,
// or nil if the queue is empty.
func (q *Queue) Pop() *Track {
	if q.IsEmpty() {
		return nil
	}
	head := q.tracks[0]
	q.tracks = q.tracks[1:]
	return &head
}

// Append adds track(s) to the end of the queue.
func (q *Queue) Append(tracks ...Track) {
	q.tracks = append(q.tracks, tracks...)
}

// List returns a copy of all tracks in the queue.
func (q *Queue) List() []Track {
	result := make([]Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}

// Clear removes all tracks from the queue.
func (q *Queue) Clear() {
	q.tracks = make([]Track, 0)
}
