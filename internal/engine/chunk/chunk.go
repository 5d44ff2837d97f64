// Package chunk implements the half-open-ish byte range that is the unit of
// work handed to a single worker: a start/end pair, a received cursor, and a
// completion flag, plus the split/freeze operations used to rebalance work
// across workers.
package chunk

// Chunk is an inclusive byte range [Start, End] of a sink file, tracking how
// many bytes of that range have been written so far.
type Chunk struct {
	Start       uint64
	End         uint64
	Received    uint64
	IsCompleted bool
}

// New returns the chunk [start, end] with nothing received yet.
func New(start, end uint64) Chunk {
	return Chunk{Start: start, End: end}
}

// Len returns the total number of bytes in the range.
func (c Chunk) Len() uint64 {
	return c.End - c.Start + 1
}

// Remaining returns how many bytes are left to receive.
func (c Chunk) Remaining() uint64 {
	len := c.Len()
	if len >= c.Received {
		return len - c.Received
	}
	return 0
}

// Split detaches the back half of the unreceived tail into a new Chunk,
// shrinking the receiver to keep its head (including whatever it already
// received). Returns false if the chunk is already fully received or marked
// completed — there is nothing left to split off.
func (c *Chunk) Split() (Chunk, bool) {
	if c.IsCompleted || c.Remaining() <= 1 {
		return Chunk{}, false
	}
	half := c.Remaining() / 2
	newStart := c.Start + c.Received + half
	newChunk := Chunk{Start: newStart, End: c.End, Received: 0, IsCompleted: false}
	c.End = newStart - 1
	return newChunk, true
}

// Freeze detaches the entire unreceived tail into a new incomplete Chunk and
// marks the receiver completed at its currently-received length. Used when a
// worker is being removed: its partial progress is kept, the remainder is
// handed back to the pool. Returns false when nothing has been received yet.
func (c *Chunk) Freeze() (Chunk, bool) {
	if c.Received == 0 {
		return Chunk{}, false
	}
	newChunk := Chunk{Start: c.Start + c.Received, End: c.End, Received: 0, IsCompleted: false}
	c.End = c.Start + c.Received - 1
	c.IsCompleted = true
	return newChunk, true
}
