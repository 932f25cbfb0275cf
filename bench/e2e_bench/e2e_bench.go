package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// UserResp represents the response returned by the server after user creation
type UserResp struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// PostReq represents the JSON payload for creating a post
type PostReq struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Post mirrors the fields of the created post the benchmark needs
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type meResp struct {
	UserID    string `json:"user_id"`
	PostCount int64  `json:"post_count"`
}

// Measures how long a published post takes to show up in its author's
// post count, i.e. server -> Kafka -> worker -> author_stats.
func main() {
	var serverAddr string
	var U, P, concurrency, pollTimeout int
	var certFile, keyFile string

	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 20, "number of authors")
	flag.IntVar(&P, "posts", 200, "number of posts to publish")
	flag.IntVar(&concurrency, "c", 20, "publishing concurrency")
	flag.IntVar(&pollTimeout, "timeout", 30, "seconds to wait for the counts to converge")
	flag.StringVar(&certFile, "cert", "", "client certificate for mTLS")
	flag.StringVar(&keyFile, "key", "", "client key for mTLS")
	flag.Parse()

	ctx := context.Background()

	transport := &http.Transport{}
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			fmt.Printf("failed to load cert/key: %v\n", err)
			os.Exit(1)
		}
		transport.TLSClientConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	client := &http.Client{Transport: transport, Timeout: 10 * time.Second}

	// --- 1) Create users ---
	fmt.Printf("Creating %d users...\n", U)
	users := make([]UserResp, 0, U)
	for i := 0; i < U; i++ {
		payload := map[string]string{"username": fmt.Sprintf("e2e-%d-%d", i, time.Now().UnixNano()%1e9)}
		b, _ := json.Marshal(payload)

		resp, err := client.Post(serverAddr+"/users", "application/json", bytes.NewReader(b))
		if err != nil {
			fmt.Printf("create user error: %v\n", err)
			os.Exit(1)
		}

		var ur UserResp
		if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
			resp.Body.Close()
			fmt.Printf("decode user resp error: %v\n", err)
			os.Exit(1)
		}
		resp.Body.Close()
		users = append(users, ur)
	}
	fmt.Println("Users created successfully.")

	// --- 2) Baseline counts, authors may be reused across runs ---
	baseline := make(map[string]int64, len(users))
	for _, u := range users {
		me, err := fetchMe(ctx, client, serverAddr, u.Token)
		if err != nil {
			fmt.Printf("baseline error: %v\n", err)
			os.Exit(1)
		}
		baseline[u.UserID] = me.PostCount
	}

	// --- 3) Publish posts concurrently ---
	fmt.Printf("Publishing %d posts with concurrency %d...\n", P, concurrency)
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	postsCh := make(chan Post, P)

	for i := 0; i < P; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			author := users[rand.Intn(len(users))]
			b, _ := json.Marshal(PostReq{
				Title: fmt.Sprintf("e2e post %d", i),
				Body:  fmt.Sprintf("body %d", rand.Int()),
			})

			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, serverAddr+"/posts", bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			req.Header.Set("Authorization", "Bearer "+author.Token)

			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("post error: %v\n", err)
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				fmt.Printf("post status: %d\n", resp.StatusCode)
				return
			}

			var p Post
			if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
				fmt.Printf("decode post error: %v\n", err)
				return
			}
			postsCh <- p
		}(i)
	}

	wg.Wait()
	close(postsCh)

	// Per author, the creation times of the posts in publish order
	published := make(map[string][]time.Time)
	for p := range postsCh {
		published[p.AuthorID] = append(published[p.AuthorID], p.CreatedAt)
	}
	for id := range published {
		sort.Slice(published[id], func(i, j int) bool { return published[id][i].Before(published[id][j]) })
	}

	// --- 4) Poll author stats until every published post is counted ---
	fmt.Println("Waiting for author stats to converge...")
	var latencies []float64
	var latMu sync.Mutex
	var failCount int
	var checksWg sync.WaitGroup

	for _, u := range users {
		created := published[u.UserID]
		if len(created) == 0 {
			continue
		}
		checksWg.Add(1)
		go func(u UserResp, created []time.Time) {
			defer checksWg.Done()
			deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)
			counted := 0

			for time.Now().Before(deadline) && counted < len(created) {
				me, err := fetchMe(ctx, client, serverAddr, u.Token)
				if err == nil {
					n := int(me.PostCount - baseline[u.UserID])
					latMu.Lock()
					for ; counted < n && counted < len(created); counted++ {
						latencies = append(latencies, time.Since(created[counted]).Seconds()*1000)
					}
					latMu.Unlock()
				}
				time.Sleep(200 * time.Millisecond)
			}

			if counted < len(created) {
				latMu.Lock()
				failCount += len(created) - counted
				latMu.Unlock()
			}
		}(u, created)
	}

	checksWg.Wait()

	// --- 5) Compute latency statistics and export to CSV ---
	if len(latencies) == 0 {
		fmt.Println("No counted posts recorded.")
		return
	}
	trimPercent := 1.0
	meanVal := trimmedMean(latencies, trimPercent)
	p50 := trimmedPercentile(latencies, 50, trimPercent)
	p90 := trimmedPercentile(latencies, 90, trimPercent)
	p99 := trimmedPercentile(latencies, 99, trimPercent)
	fmt.Printf("Stats latency (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f missing=%d\n",
		len(latencies), meanVal, p50, p90, p99, failCount)

	f, err := os.Create("e2e_latencies.csv")
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, v := range latencies {
		w.Write([]string{fmt.Sprintf("%.3f", v)})
	}
	fmt.Println("Saved e2e_latencies.csv")
}

func fetchMe(ctx context.Context, client *http.Client, serverAddr, token string) (meResp, error) {
	var me meResp
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, serverAddr+"/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return me, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return me, fmt.Errorf("status %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&me)
	return me, err
}

// trimmedMean calculates the mean of a dataset excluding extreme values.
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = (len(data) - 1) / 2
	}
	data = data[trim : len(data)-trim]
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// trimmedPercentile returns a percentile value after trimming extremes.
func trimmedPercentile(data []float64, p float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = (len(data) - 1) / 2
	}
	data = data[trim : len(data)-trim]
	return percentile(data, p)
}

// percentile calculates the requested percentile using linear interpolation.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	d0 := data[f] * (float64(c) - k)
	d1 := data[c] * (k - float64(f))
	return d0 + d1
}
