package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/optica-pos/internal/barcode"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	n := flag.Int("n", 10, "number of codes to print")
	prefix := flag.String("prefix", envOr("BARCODE_COUNTRY_PREFIX", barcode.DefaultPrefix), "3-digit country prefix")
	reserve := flag.Bool("reserve", false, "reserve codes in Redis (REDIS_URL) so the API never reissues them")
	ttl := flag.Duration("ttl", 0, "reservation TTL, 0 keeps codes reserved forever")
	check := flag.String("check", "", "validate a single code and exit")
	flag.Parse()

	if *check != "" {
		if barcode.Validate(*check) {
			fmt.Printf("%s valid\n", *check)
			return
		}
		fmt.Printf("%s invalid\n", *check)
		os.Exit(1)
	}

	gen, err := barcode.NewGenerator(*prefix, nil)
	if err != nil {
		log.Fatalf("Invalid prefix: %v", err)
	}
	registry := &barcode.Registry{Generator: gen, TTL: *ttl}

	if *reserve {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			log.Fatal("REDIS_URL is not set")
		}
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		registry.Client = client
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	codes, err := registry.IssueN(ctx, *n)
	for _, code := range codes {
		fmt.Println(code)
	}
	if err != nil {
		log.Fatalf("Stopped after %d codes: %v", len(codes), err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
