package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Result is the HTTP outcome of one request, kept for aggregation.
type Result struct {
	Status int
	Body   string
	Err    error
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type product struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Inventory int    `json:"inventory"`
	Colors    []struct {
		ID uint `json:"id"`
	} `json:"colors"`
	Sizes []struct {
		ID uint `json:"id"`
	} `json:"sizes"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	productID := flag.Int("product", 1, "product id")
	nUsers := flag.Int("users", 200, "distinct buyers")
	concurrency := flag.Int("c", 50, "max concurrency")
	qty := flag.Int("qty", 1, "quantity per order")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	ctx := context.Background()

	before, err := getProduct(client, *baseURL, *productID)
	if err != nil {
		fail("load product: %v", err)
	}
	if len(before.Colors) == 0 || len(before.Sizes) == 0 {
		fail("product %d has no color or size", before.ID)
	}
	fmt.Printf("product=%d (%s) inventory=%d\n", before.ID, before.Name, before.Inventory)

	// Every buyer is a fresh account so the per-user rate limit never interferes.
	tokens := make([]string, *nUsers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	for i := range tokens {
		g.Go(func() error {
			tok, err := register(gctx, client, *baseURL)
			tokens[i] = tok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		fail("register buyers: %v", err)
	}
	fmt.Printf("registered %d buyers\n", len(tokens))

	order := map[string]any{
		"currency": "USD",
		"status":   "pending",
		"order_items": []map[string]any{{
			"product_id": before.ID,
			"color_id":   before.Colors[0].ID,
			"size_id":    before.Sizes[0].ID,
			"quantity":   *qty,
		}},
	}

	fmt.Printf("start oversell test: users=%d concurrency=%d qty=%d\n", *nUsers, *concurrency, *qty)
	results := make([]Result, len(tokens))
	var fan errgroup.Group
	fan.SetLimit(*concurrency)
	start := time.Now()
	for i, tok := range tokens {
		fan.Go(func() error {
			results[i] = post(ctx, client, *baseURL+"/api/orders", tok, order)
			return nil
		})
	}
	_ = fan.Wait()
	elapsed := time.Since(start)

	counts := printSummary("oversell", results)
	fmt.Printf("elapsed=%s\n", elapsed)

	after, err := getProduct(client, *baseURL, *productID)
	if err != nil {
		fail("reload product: %v", err)
	}
	sold := counts[http.StatusOK] * *qty
	fmt.Printf("final inventory=%d sold=%d\n", after.Inventory, sold)

	switch {
	case after.Inventory < 0:
		fail("OVERSELL: negative inventory %d", after.Inventory)
	case before.Inventory-sold != after.Inventory:
		fail("MISMATCH: %d - %d != %d", before.Inventory, sold, after.Inventory)
	case sold > before.Inventory:
		fail("OVERSELL: sold %d of %d", sold, before.Inventory)
	}
	fmt.Println("ok: no oversell")
}

func register(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	id := uuid.NewString()[:8]
	res := post(ctx, client, baseURL+"/api/register", "", map[string]string{
		"first_name": "Load",
		"last_name":  id,
		"email":      "load-" + id + "@example.com",
		"password":   "loadtest-" + id,
	})
	if res.Err != nil {
		return "", res.Err
	}
	if res.Status != http.StatusOK {
		return "", fmt.Errorf("status=%d body=%s", res.Status, res.Body)
	}
	var env envelope
	if err := json.Unmarshal([]byte(res.Body), &env); err != nil {
		return "", err
	}
	var sess struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &sess); err != nil {
		return "", err
	}
	return sess.Token, nil
}

func post(ctx context.Context, client *http.Client, url, token string, body any) Result {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(out)}
}

func getProduct(client *http.Client, baseURL string, id int) (*product, error) {
	resp, err := client.Get(fmt.Sprintf("%s/api/v1/products/%d", baseURL, id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	var p product
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// printSummary prints the status code distribution and returns it.
func printSummary(name string, results []Result) map[int]int {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 401, 404, 409, 422, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
	return count
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
