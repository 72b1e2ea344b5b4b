package observations

import "testing"

func TestChunkStrings(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e"}
	got := chunkStrings(in, 2)
	if len(got) != 3 || len(got[2]) != 1 || got[2][0] != "e" {
		t.Fatalf("chunkStrings: %v", got)
	}
	if len(chunkStrings(nil, 2)) != 0 {
		t.Fatalf("empty input should yield no chunks")
	}
}
