package sse

import (
	"math/rand"
	"reflect"
	"testing"
)

const sampleStream = "event: message_start\n" +
	"data: {\"type\":\"message_start\"}\n" +
	"\n" +
	"event: content_block_delta\n" +
	"data: {\"delta\":\n" +
	"data: {\"text\":\"hi\"}}\n" +
	"\n" +
	": this is a comment, ignored\n" +
	"event: ping\n" +
	"data: \n" +
	"\n"

func decodeWhole(t *testing.T, chunks []string) []Event {
	t.Helper()
	d := New()
	var got []Event
	for _, c := range chunks {
		evs, err := d.Feed([]byte(c))
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		got = append(got, evs...)
	}
	final, err := d.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if final != nil {
		got = append(got, *final)
	}
	return got
}

func TestDecoderSingleChunk(t *testing.T) {
	got := decodeWhole(t, []string{sampleStream})
	want := []Event{
		{Name: "message_start", Data: `{"type":"message_start"}`},
		{Name: "content_block_delta", Data: "{\"delta\":\n{\"text\":\"hi\"}}"},
		{Name: "ping", Data: ""},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestDecoderIsChunkBoundaryIndependent(t *testing.T) {
	want := decodeWhole(t, []string{sampleStream})

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		chunks := randomSplit(rng, sampleStream)
		got := decodeWhole(t, chunks)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("trial %d: chunking %v produced %#v, want %#v", trial, chunks, got, want)
		}
	}
}

// crlfSampleStream mirrors sampleStream but with \r\n terminators
// throughout, so chunk-boundary-independence is exercised against a
// two-byte terminator, not just \n.
var crlfSampleStream = "event: message_start\r\n" +
	"data: {\"type\":\"message_start\"}\r\n" +
	"\r\n" +
	"event: content_block_delta\r\n" +
	"data: {\"delta\":\r\n" +
	"data: {\"text\":\"hi\"}}\r\n" +
	"\r\n" +
	": this is a comment, ignored\r\n" +
	"event: ping\r\n" +
	"data: \r\n" +
	"\r\n"

func TestDecoderIsChunkBoundaryIndependentCRLF(t *testing.T) {
	want := decodeWhole(t, []string{crlfSampleStream})

	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 200; trial++ {
		chunks := randomSplit(rng, crlfSampleStream)
		got := decodeWhole(t, chunks)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("trial %d: chunking %v produced %#v, want %#v", trial, chunks, got, want)
		}
	}
}

// TestDecoderCRLFStraddlesFeedCalls is the direct regression case: a \r\n
// terminator split so the \r ends one Feed call and the \n begins the
// next must still count as a single terminator, not a bare CR (ending the
// line) immediately followed by a blank-line \n (prematurely dispatching
// the event).
func TestDecoderCRLFStraddlesFeedCalls(t *testing.T) {
	d := New()
	evs, err := d.Feed([]byte("event: a\r\ndata: x\r"))
	if err != nil {
		t.Fatalf("Feed 1: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("expected no event dispatched before the blank line, got %#v", evs)
	}
	evs, err = d.Feed([]byte("\n\r\n"))
	if err != nil {
		t.Fatalf("Feed 2: %v", err)
	}
	want := []Event{{Name: "a", Data: "x"}}
	if !reflect.DeepEqual(evs, want) {
		t.Fatalf("got %#v, want %#v", evs, want)
	}
}

// randomSplit cuts s at a random number of random byte offsets, including
// possibly splitting a multi-byte terminator like \r\n across chunks.
func randomSplit(rng *rand.Rand, s string) []string {
	n := rng.Intn(5)
	cuts := make([]int, 0, n)
	for i := 0; i < n; i++ {
		cuts = append(cuts, rng.Intn(len(s)+1))
	}
	cuts = append(cuts, 0, len(s))
	// sort cuts
	for i := 1; i < len(cuts); i++ {
		for j := i; j > 0 && cuts[j-1] > cuts[j]; j-- {
			cuts[j-1], cuts[j] = cuts[j], cuts[j-1]
		}
	}
	var out []string
	for i := 1; i < len(cuts); i++ {
		out = append(out, s[cuts[i-1]:cuts[i]])
	}
	return out
}

func TestDecoderCRLFAndBareCR(t *testing.T) {
	stream := "event: a\r\ndata: x\r\n\r\nevent: b\rdata: y\r\r"
	got := decodeWhole(t, []string{stream})
	want := []Event{
		{Name: "a", Data: "x"},
		{Name: "b", Data: "y"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestDecoderMultipleDataLinesJoinedWithNewline(t *testing.T) {
	got := decodeWhole(t, []string{"data: line1\ndata: line2\n\n"})
	want := []Event{{Name: "", Data: "line1\nline2"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestDecoderOverflow(t *testing.T) {
	d := New()
	big := make([]byte, maxPendingEvent+1)
	for i := range big {
		big[i] = 'x'
	}
	_, err := d.Feed(append([]byte("data: "), big...))
	if err != ErrOverflow {
		t.Fatalf("got err %v, want ErrOverflow", err)
	}
}

func TestDecoderIgnoresMalformedAndCommentLines(t *testing.T) {
	got := decodeWhole(t, []string{":comment\nnotafield\ndata: ok\n\n"})
	want := []Event{{Name: "", Data: "ok"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}
