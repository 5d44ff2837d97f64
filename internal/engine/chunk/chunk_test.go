package chunk

import "testing"

func TestSplit(t *testing.T) {
	origin := New(0, 2047)
	if origin.Len() != 2048 {
		t.Fatalf("len = %d, want 2048", origin.Len())
	}
	newChunk, ok := origin.Split()
	if !ok {
		t.Fatal("expected split to succeed")
	}
	if newChunk != (Chunk{Start: 1024, End: 2047, Received: 0, IsCompleted: false}) {
		t.Fatalf("new chunk = %+v", newChunk)
	}
	if origin.Len()+newChunk.Len() != 2048 {
		t.Fatalf("lengths don't sum: %d + %d", origin.Len(), newChunk.Len())
	}
	if origin.Len() != 1024 || newChunk.Len() != 1024 {
		t.Fatalf("expected even split, got %d/%d", origin.Len(), newChunk.Len())
	}

	origin = New(0, 1000)
	newChunk, ok = origin.Split()
	if !ok {
		t.Fatal("expected split to succeed")
	}
	if newChunk != (Chunk{Start: 500, End: 1000, Received: 0, IsCompleted: false}) {
		t.Fatalf("new chunk = %+v", newChunk)
	}
	if origin.Len() != 500 || newChunk.Len() != 501 {
		t.Fatalf("expected odd split 500/501, got %d/%d", origin.Len(), newChunk.Len())
	}
}

func TestSplitExhausted(t *testing.T) {
	origin := Chunk{Start: 0, End: 2047, Received: 2048}
	if _, ok := origin.Split(); ok {
		t.Fatal("expected split to fail when fully received")
	}

	origin = Chunk{Start: 0, End: 2047, IsCompleted: true}
	if _, ok := origin.Split(); ok {
		t.Fatal("expected split to fail when completed")
	}

	origin = Chunk{Start: 5, End: 5}
	if _, ok := origin.Split(); ok {
		t.Fatal("expected split to fail when remaining is 1")
	}
}

func TestFreeze(t *testing.T) {
	origin := New(0, 2047)
	if _, ok := origin.Freeze(); ok {
		t.Fatal("expected freeze to fail when nothing received")
	}

	origin = Chunk{Start: 0, End: 2047, Received: 20}
	newChunk, ok := origin.Freeze()
	if !ok {
		t.Fatal("expected freeze to succeed")
	}
	if origin.Len()+newChunk.Len() != 2048 {
		t.Fatalf("lengths don't sum: %d + %d", origin.Len(), newChunk.Len())
	}
	if origin.Len() != 20 || newChunk.Len() != 2028 {
		t.Fatalf("got %d/%d", origin.Len(), newChunk.Len())
	}
	if !origin.IsCompleted {
		t.Fatal("expected origin to be marked completed")
	}

	origin = Chunk{Start: 0, End: 2046, Received: 20}
	newChunk, ok = origin.Freeze()
	if !ok {
		t.Fatal("expected freeze to succeed")
	}
	if origin.Len()+newChunk.Len() != 2047 {
		t.Fatalf("lengths don't sum: %d + %d", origin.Len(), newChunk.Len())
	}
}

func TestRemaining(t *testing.T) {
	c := Chunk{Start: 10, End: 19, Received: 3}
	if c.Remaining() != 7 {
		t.Fatalf("remaining = %d, want 7", c.Remaining())
	}
	c.Received = 10
	if c.Remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", c.Remaining())
	}
}
