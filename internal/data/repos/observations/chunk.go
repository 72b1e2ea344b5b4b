package observations

// inChunkSize bounds the number of bind parameters in one IN (...) list.
const inChunkSize = 500

func chunkStrings(in []string, size int) [][]string {
	if size <= 0 {
		size = inChunkSize
	}
	var out [][]string
	for len(in) > 0 {
		n := size
		if len(in) < n {
			n = len(in)
		}
		out = append(out, in[:n])
		in = in[n:]
	}
	return out
}

func chunkInts(in []int, size int) [][]int {
	if size <= 0 {
		size = inChunkSize
	}
	var out [][]int
	for len(in) > 0 {
		n := size
		if len(in) < n {
			n = len(in)
		}
		out = append(out, in[:n])
		in = in[n:]
	}
	return out
}
