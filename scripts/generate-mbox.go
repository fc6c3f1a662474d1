//go:build ignore

// Command generate-mbox writes a synthetic mbox for import and watch
// benchmarks.
//
//	go run scripts/generate-mbox.go -messages 10000 -output testdata/bench.mbox
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numMessages = flag.Int("messages", 1000, "Number of messages to generate")
	outputPath  = flag.String("output", "testdata/bench.mbox", "Output mbox file")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
	noRcptEvery = flag.Int("skip-every", 0, "Omit recipients on every Nth message (0: never)")
)

var (
	people   = []string{"alice", "bob", "charlie", "david", "eve", "frank", "grace", "heidi", "ivan", "judy"}
	topics   = []string{"budget", "kickoff", "release", "outage", "hiring", "roadmap", "offsite", "security review", "migration", "quarterly report"}
	verbs    = []string{"moved", "approved", "blocked", "scheduled", "cancelled", "updated", "shipped"}
	fillers  = []string{"Please take a look before Friday.", "Notes are in the shared folder.", "Ping me with questions.", "Agenda to follow.", "Thanks everyone."}
	baseTime = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *outputPath, err)
		os.Exit(1)
	}
	w := bufio.NewWriter(f)

	for i := 0; i < *numMessages; i++ {
		writeMessage(w, rng, i)
	}

	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d messages to %s\n", *numMessages, *outputPath)
}

func writeMessage(w *bufio.Writer, rng *rand.Rand, i int) {
	from := pick(rng, people)
	ts := baseTime.Add(time.Duration(i) * 7 * time.Minute)
	topic := pick(rng, topics)

	fmt.Fprintf(w, "From %s@example.com %s\n", from, ts.Format("Mon Jan _2 15:04:05 2006"))
	fmt.Fprintf(w, "Message-Id: <bench-%06d@example.com>\n", i)
	fmt.Fprintf(w, "From: %s <%s@example.com>\n", strings.ToUpper(from[:1])+from[1:], from)
	if *noRcptEvery == 0 || (i+1)%*noRcptEvery != 0 {
		to := make([]string, 0, 3)
		for n := 1 + rng.Intn(3); len(to) < n; {
			to = append(to, pick(rng, people)+"@example.com")
		}
		fmt.Fprintf(w, "To: %s\n", strings.Join(to, ", "))
	}
	fmt.Fprintf(w, "Subject: %s %s\n", strings.ToUpper(topic[:1])+topic[1:], pick(rng, verbs))
	fmt.Fprintf(w, "Date: %s\n", ts.Format(time.RFC1123Z))
	fmt.Fprintf(w, "\n")

	for p := 0; p < 1+rng.Intn(3); p++ {
		fmt.Fprintf(w, "The %s was %s. %s\n", topic, pick(rng, verbs), pick(rng, fillers))
	}
	fmt.Fprintf(w, "\n")
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.Intn(len(from))]
}
