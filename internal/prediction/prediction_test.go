package prediction

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/bundle"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/bundle/bundletest"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/kafka"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/redis"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	value   string
	expires time.Time
}

// memStore mimics redis expiry against an adjustable clock.
type memStore struct {
	mu   sync.Mutex
	data map[string]entry
	now  time.Time
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]entry{}, now: time.Unix(1_700_000_000, 0)}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	e, ok := m.data[key]
	if !ok || !m.now.Before(e.expires) {
		return "", pkgredis.ErrNil
	}
	return e.value, nil
}

func (m *memStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = entry{value: value, expires: m.now.Add(ttl)}
	return nil
}

func (m *memStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

type recordingTracker struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (r *recordingTracker) Track(e kafka.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

var (
	fixtureOnce   sync.Once
	fixtureBundle *bundle.Bundle
	fixtureErr    error
)

func testBundle(t testing.TB) *bundle.Bundle {
	t.Helper()
	fixtureOnce.Do(func() {
		fixtureBundle, fixtureErr = bundletest.Build(bundletest.Records(300), 42)
	})
	require.NoError(t, fixtureErr)
	return fixtureBundle
}

func intp(v int) *int { return &v }

func floorp(v int) *FloorNumber {
	f := FloorNumber(v)
	return &f
}

// mumbaiRequest is the end-to-end example listing.
func mumbaiRequest() Request {
	area := 800.0
	return Request{
		Location:            "mumbai",
		Transaction:         "Resale",
		Furnishing:          "Unfurnished",
		ParkingCover:        "Open",
		Bathroom:            2,
		Balcony:             1,
		NumBHK:              2,
		FloorNum:            floorp(3),
		NumFloors:           10,
		OverlookingGarden:   intp(0),
		OverlookingMainroad: intp(1),
		OverlookingPool:     intp(0),
		ParkingSpots:        intp(1),
		CarpetArea:          &area,
	}
}

func TestFinitePriceRejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := finitePrice(v)
		assert.ErrorIs(t, err, apperrors.ErrInternal, "%v", v)
		assert.False(t, apperrors.IsClientError(err))
	}
	p, err := finitePrice(1.25)
	require.NoError(t, err)
	assert.Equal(t, 1.25, p)
}

func TestFormatCrores(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{2.5, "2.50"},
		{999.996, "1,000.00"},
		{1234.567, "1,234.57"},
		{1234.56, "1,234.56"},
		{1234567.891, "1,234,567.89"},
		{-4321.5, "-4,321.50"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "+Inf"},
		{math.Inf(-1), "-Inf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCrores(tt.in), tt.in)
	}
}

func TestFloorNumberUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{`3`, 3, false},
		{`"7"`, 7, false},
		{`"Ground"`, 0, false},
		{`"underground"`, 0, false},
		{`"penthouse"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f FloorNumber
			err := json.Unmarshal([]byte(tt.in), &f)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, FloorNumber(tt.want), f)
		})
	}
}

func TestNormalizeCanonicalizesEnums(t *testing.T) {
	req := mumbaiRequest()
	req.Location = "  Mumbai "
	req.Transaction = "new property"
	req.Furnishing = "semi-furnished"
	req.ParkingCover = "NO PARKING"
	facing := "South - West"
	ownership := "co-operative  society"
	req.Facing, req.Ownership = &facing, &ownership

	req.Normalize()
	assert.Equal(t, "mumbai", req.Location)
	assert.Equal(t, "New Property", req.Transaction)
	assert.Equal(t, "Semi-Furnished", req.Furnishing)
	assert.Equal(t, "No parking", req.ParkingCover)
	assert.Equal(t, "South -West", *req.Facing)
	assert.Equal(t, "Co-operative Society", *req.Ownership)
	require.NoError(t, req.Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(r *Request)
		field string
	}{
		{"no area", func(r *Request) { r.CarpetArea = nil }, "carpet_area"},
		{"zero balcony", func(r *Request) { r.Balcony = 0 }, "balcony"},
		{"unknown furnishing", func(r *Request) { r.Furnishing = "Luxury" }, "furnishing"},
		{"bad flag", func(r *Request) { r.OverlookingPool = intp(2) }, "overlooking_pool"},
		{"missing floor", func(r *Request) { r.FloorNum = nil }, "floor_num"},
		{"negative spots", func(r *Request) { r.ParkingSpots = intp(-1) }, "parking_spots"},
		{"negative area", func(r *Request) { a := -5.0; r.CarpetArea = &a }, "carpet_area"},
		{"missing location", func(r *Request) { r.Location = "" }, "location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mumbaiRequest()
			tt.edit(&req)
			req.Normalize()
			err := req.Validate()
			require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestValidateAcceptsSuperAreaOnly(t *testing.T) {
	req := mumbaiRequest()
	sa := 1200.0
	req.CarpetArea, req.SuperArea = nil, &sa
	assert.NoError(t, req.Validate())
}

func TestValidateClampsFloor(t *testing.T) {
	req := mumbaiRequest()
	req.FloorNum = floorp(14)
	require.NoError(t, req.Validate())
	assert.Equal(t, FloorNumber(10), *req.FloorNum)
}

func TestFingerprint(t *testing.T) {
	a, b := mumbaiRequest(), mumbaiRequest()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.NumBHK = 3
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := mumbaiRequest()
	facing := "East"
	c.Facing = &facing
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	assert.NotEqual(t, Key("v1", a.Fingerprint()), Key("v2", a.Fingerprint()))
	assert.True(t, strings.HasPrefix(Key("v1", a.Fingerprint()), "predict:v1:"))
}

func TestCacheRoundTripAndExpiry(t *testing.T) {
	store := newMemStore()
	c := NewCache(store, config.RedisConfig{CacheTTL: time.Hour}, nil)
	ctx := context.Background()

	c.Set(ctx, "predict:k", 2.35)
	v, ok := c.Get(ctx, "predict:k")
	require.True(t, ok)
	assert.Equal(t, 2.35, v)

	store.advance(time.Hour + time.Second)
	_, ok = c.Get(ctx, "predict:k")
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCacheDegradesToCompute(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := NewCache(store, config.RedisConfig{CacheTTL: time.Minute}, nil)

	calls := 0
	for i := 0; i < 3; i++ {
		v, hit, err := c.GetOrCompute(context.Background(), "predict:k", func() (float64, error) {
			calls++
			return 1.5, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, 1.5, v)
	}
	assert.Equal(t, 3, calls)
}

func TestCacheComputeErrorIsNotCached(t *testing.T) {
	store := newMemStore()
	c := NewCache(store, config.RedisConfig{CacheTTL: time.Minute}, nil)
	_, _, err := c.GetOrCompute(context.Background(), "predict:k", func() (float64, error) {
		return 0, errors.New("model failed")
	})
	assert.Error(t, err)
	assert.Empty(t, store.data)
}

func TestCacheInvalidate(t *testing.T) {
	store := newMemStore()
	c := NewCache(store, config.RedisConfig{CacheTTL: time.Minute}, nil)
	c.Set(context.Background(), Key("v", "a"), 1)
	c.Set(context.Background(), Key("v", "b"), 2)
	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestEndToEndScenario(t *testing.T) {
	b := testBundle(t)
	req := mumbaiRequest()
	req.Normalize()
	require.NoError(t, req.Validate())

	row, err := b.Features(req.Record())
	require.NoError(t, err)
	assert.Equal(t, "small", row.HouseSize)
	assert.Equal(t, "low", row.BathroomNum)
	assert.Equal(t, "medium", row.FloorHeight)
	assert.Equal(t, "medium", row.BuildingHeight)
	assert.Equal(t, 1.0, row.CityTier)
	assert.Equal(t, "single", row.HasParking)
	assert.Equal(t, 1.0, row.IsUnfurnished)

	svc := NewService(b, nil, nil, nil)
	res, err := svc.Predict(context.Background(), mumbaiRequest())
	require.NoError(t, err)
	assert.Positive(t, res.Price)
	assert.False(t, res.CacheHit)
	assert.Equal(t, b.Version, res.ModelVersion)
}

func TestServiceCachesAndTracks(t *testing.T) {
	b := testBundle(t)
	store := newMemStore()
	tracker := &recordingTracker{}
	svc := NewService(b, NewCache(store, config.RedisConfig{CacheTTL: time.Hour}, nil), tracker, nil)

	first, err := svc.Predict(context.Background(), mumbaiRequest())
	require.NoError(t, err)
	second, err := svc.Predict(context.Background(), mumbaiRequest())
	require.NoError(t, err)

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Price, second.Price)
	require.Len(t, tracker.events, 2)
	assert.Equal(t, "mumbai", tracker.events[0].Key)
}

func TestServiceSurvivesCacheOutage(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("redis down")
	svc := NewService(testBundle(t), NewCache(store, config.RedisConfig{CacheTTL: time.Hour}, nil), nil, nil)
	res, err := svc.Predict(context.Background(), mumbaiRequest())
	require.NoError(t, err)
	assert.Positive(t, res.Price)
}

func newTestServer(t *testing.T, cache *Cache) *httptest.Server {
	mux := http.NewServeMux()
	NewHandler(NewService(testBundle(t), cache, nil, nil)).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandlerPredict(t *testing.T) {
	srv := newTestServer(t, nil)
	body := `{"location":"Mumbai","transaction":"resale","furnishing":"Unfurnished","parking_cover":"Open",
		"bathroom":2,"balcony":1,"num_bhk":2,"floor_num":"Ground","num_floors":10,
		"overlooking_garden":0,"overlooking_mainroad":1,"overlooking_pool":0,"parking_spots":1,"carpet_area":800}`
	resp, err := http.Post(srv.URL+"/api/v1/predict", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Positive(t, out.Prediction)
	assert.Equal(t, FormatCrores(out.Prediction), out.PredictionInCrores)
	assert.NotEmpty(t, out.ModelVersion)
}

func TestHandlerRejectsInvalid(t *testing.T) {
	srv := newTestServer(t, nil)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"location":`},
		{"schema", `{"location":"pune","transaction":"Resale"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/predict", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var out errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.NotEmpty(t, out.Error)
		})
	}
}

func TestHandlerModelAndCacheEndpoints(t *testing.T) {
	srv := newTestServer(t, NewCache(newMemStore(), config.RedisConfig{CacheTTL: time.Minute}, nil))

	resp, err := http.Get(srv.URL + "/api/v1/model")
	require.NoError(t, err)
	var info ModelInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	assert.Equal(t, "DecisionTreeRegressor", info.Regressor)
	assert.NotEmpty(t, info.Features)

	resp, err = http.Get(srv.URL + "/api/v1/cache/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/cache/invalidate", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandlerCacheDisabled(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
