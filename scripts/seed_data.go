//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/feastly/dispatch/internal/cache"
	"github.com/feastly/dispatch/internal/config"
	"github.com/feastly/dispatch/internal/database"
	"github.com/feastly/dispatch/internal/models"
)

// Almaty coordinates
const (
	baseLat = 43.2389
	baseLng = 76.8897
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer redis.Close()

	drivers := cache.NewDriverLocationStore(redis.Client)
	ctx := context.Background()

	available := true
	verified := true

	for i := 0; i < 25; i++ {
		driverID := fmt.Sprintf("driver-%03d", i+1)

		// Scatter drivers within roughly 8km of the city center
		point := models.Point{
			Lng: baseLng + (rand.Float64()-0.5)*0.15,
			Lat: baseLat + (rand.Float64()-0.5)*0.15,
		}

		if err := drivers.UpdateLocation(ctx, driverID, point); err != nil {
			log.Fatalf("seed location for %s: %v", driverID, err)
		}

		avail := available
		if i%5 == 0 {
			// Every fifth driver is off shift
			off := false
			avail = off
		}
		if err := drivers.SetFlags(ctx, driverID, &avail, &verified); err != nil {
			log.Fatalf("seed flags for %s: %v", driverID, err)
		}

		log.Printf("seeded %s at (%.4f, %.4f) available=%v", driverID, point.Lng, point.Lat, avail)
	}

	log.Println("done")
}
