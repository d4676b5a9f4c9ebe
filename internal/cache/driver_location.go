package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feastly/dispatch/internal/models"
)

const (
	driverGeoKey        = "drivers:locations"
	driverMetaKeyPrefix = "driver:meta:"
	locationTTL         = 10 * time.Minute
	maxDiscoveryResults = 50
)

// NearbyDriver is a discovery hit: a driver reference plus its distance
// from the origin in meters.
type NearbyDriver struct {
	DriverID       string
	DistanceMeters float64
}

// DriverLocationStore holds each driver's latest reported position and
// eligibility flags, and answers proximity queries against them.
type DriverLocationStore interface {
	UpdateLocation(ctx context.Context, driverID string, point models.Point) error
	SetFlags(ctx context.Context, driverID string, isAvailable, isVerified *bool) error
	GetSnapshot(ctx context.Context, driverID string) (*models.DriverSnapshot, error)
	RemoveDriver(ctx context.Context, driverID string) error

	// FindEligibleDrivers returns available, verified drivers with a known
	// location within radiusMeters of origin, nearest first. An empty result
	// is a normal outcome, not an error.
	FindEligibleDrivers(ctx context.Context, origin models.Point, radiusMeters float64) ([]NearbyDriver, error)
}

type driverLocationStore struct {
	redis *redis.Client
}

func NewDriverLocationStore(redisClient *redis.Client) DriverLocationStore {
	return &driverLocationStore{redis: redisClient}
}

func (c *driverLocationStore) UpdateLocation(ctx context.Context, driverID string, point models.Point) error {
	if err := c.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: point.Lng,
		Latitude:  point.Lat,
	}).Err(); err != nil {
		return err
	}

	metaKey := driverMetaKeyPrefix + driverID
	if err := c.redis.HSet(ctx, metaKey, map[string]interface{}{
		"lng":        strconv.FormatFloat(point.Lng, 'f', -1, 64),
		"lat":        strconv.FormatFloat(point.Lat, 'f', -1, 64),
		"updated_at": time.Now().Unix(),
	}).Err(); err != nil {
		return err
	}

	return c.redis.Expire(ctx, metaKey, locationTTL).Err()
}

func (c *driverLocationStore) SetFlags(ctx context.Context, driverID string, isAvailable, isVerified *bool) error {
	fields := make(map[string]interface{}, 2)
	if isAvailable != nil {
		fields["available"] = strconv.FormatBool(*isAvailable)
	}
	if isVerified != nil {
		fields["verified"] = strconv.FormatBool(*isVerified)
	}
	if len(fields) == 0 {
		return nil
	}

	metaKey := driverMetaKeyPrefix + driverID
	return c.redis.HSet(ctx, metaKey, fields).Err()
}

func (c *driverLocationStore) GetSnapshot(ctx context.Context, driverID string) (*models.DriverSnapshot, error) {
	metaKey := driverMetaKeyPrefix + driverID
	meta, err := c.redis.HGetAll(ctx, metaKey).Result()
	if err != nil {
		return nil, err
	}
	if len(meta) == 0 {
		return nil, nil
	}

	snap := &models.DriverSnapshot{
		DriverID:    driverID,
		IsAvailable: meta["available"] == "true",
		IsVerified:  meta["verified"] == "true",
	}

	if lngStr, ok := meta["lng"]; ok {
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		lat, errLat := strconv.ParseFloat(meta["lat"], 64)
		if errLng == nil && errLat == nil {
			snap.Location = &models.Point{Lng: lng, Lat: lat}
		}
	}

	return snap, nil
}

func (c *driverLocationStore) RemoveDriver(ctx context.Context, driverID string) error {
	if err := c.redis.ZRem(ctx, driverGeoKey, driverID).Err(); err != nil {
		return err
	}
	return c.redis.Del(ctx, driverMetaKeyPrefix+driverID).Err()
}

func (c *driverLocationStore) FindEligibleDrivers(ctx context.Context, origin models.Point, radiusMeters float64) ([]NearbyDriver, error) {
	locations, err := c.redis.GeoRadius(ctx, driverGeoKey, origin.Lng, origin.Lat, &redis.GeoRadiusQuery{
		Radius:   radiusMeters,
		Unit:     "m",
		WithDist: true,
		Count:    maxDiscoveryResults,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	result := make([]NearbyDriver, 0, len(locations))
	for _, loc := range locations {
		meta, err := c.redis.HGetAll(ctx, driverMetaKeyPrefix+loc.Name).Result()
		if err != nil {
			continue
		}
		if meta["available"] != "true" || meta["verified"] != "true" {
			continue
		}

		result = append(result, NearbyDriver{
			DriverID:       loc.Name,
			DistanceMeters: loc.Dist,
		})
	}

	return result, nil
}
