package identifier

import (
	"bytes"
	"testing"
)

func TestListRoundTrip(t *testing.T) {
	cases := []int{0, 1, 2, 65535}
	for _, n := range cases {
		ids := make([]ID, n)
		for i := range ids {
			id, _ := FromBytes([]byte{byte(i), byte(i >> 8), 0, 0, 0, 1})
			ids[i] = id
		}
		var buf bytes.Buffer
		if err := WriteList(&buf, ids); err != nil {
			t.Fatalf("WriteList(n=%d): %v", n, err)
		}
		got, err := ReadList(&buf)
		if err != nil {
			t.Fatalf("ReadList(n=%d): %v", n, err)
		}
		if len(got) != len(ids) {
			t.Fatalf("n=%d: got %d ids, want %d", n, len(got), len(ids))
		}
		for i := range ids {
			if got[i] != ids[i] {
				t.Fatalf("n=%d idx=%d: got %v, want %v", n, i, got[i], ids[i])
			}
		}
	}
}
