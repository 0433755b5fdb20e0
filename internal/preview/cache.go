package preview

import (
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"openroom/internal/logging"
	"openroom/internal/metrics"
	"openroom/internal/raster"
)

var log = logging.For("preview")

// Preview dimension band and cache sizing.
const (
	MinDimension = 480
	MaxDimension = 3200
	// MasterBase is the smallest envelope a master is decoded at, so that
	// small requests still leave room for zooming without a re-decode.
	MasterBase = 1920
	// Capacity is the number of assets whose masters stay resident.
	Capacity = 2

	// masterTolerance is an arbitrary threshold: requests within this many
	// pixels of the master are served by the master itself.
	masterTolerance = 4
)

// ClampDimension limits a requested preview dimension to the cacheable band.
func ClampDimension(dim int) int {
	return min(max(dim, MinDimension), MaxDimension)
}

// Decoder turns a path into an image.
type Decoder interface {
	Decode(path string) (*raster.Image, error)
}

// Scaler produces aspect-preserving copies.
type Scaler interface {
	Fit(img *raster.Image, maxDim int) *raster.Image
	Downscale(img *raster.Image, maxDim int) *raster.Image
}

type master struct {
	img *raster.Image
	// envelope is the dimension the master was decoded for. When the source
	// is smaller than envelope, the master already holds every pixel there is.
	envelope int
}

func (m *master) maxDim() int { return m.img.MaxDim() }

// covers reports whether the master can serve dim without a re-decode.
func (m *master) covers(dim int) bool {
	return dim <= m.maxDim() || m.maxDim() < m.envelope
}

// Tier names where a request was served from.
type Tier string

const (
	TierDecoded     Tier = "decoded"     // master decoded for this request
	TierMaster      Tier = "master"      // resident master served as is
	TierVariant     Tier = "variant"     // resident variant
	TierScaled      Tier = "scaled"      // new variant from a resident master
	TierDisk        Tier = "disk"        // stored thumbnail
	TierPlaceholder Tier = "placeholder" // undecodable asset, gradient served
)

type variantKey struct {
	assetID string
	dim     int
}

// Cache is the two-tier preview cache. All methods are safe for concurrent
// use. Decoding and scaling run outside the lock; concurrent decodes of the
// same asset and envelope are collapsed.
type Cache struct {
	decoder  Decoder
	scaler   Scaler
	capacity int

	mu       sync.Mutex
	masters  map[string]*master
	variants map[variantKey]*raster.Image
	// recency lists asset ids, least recently used first.
	recency []string

	decodes singleflight.Group
}

// NewCache returns an empty cache holding at most Capacity assets.
func NewCache(decoder Decoder, scaler Scaler) *Cache {
	return &Cache{
		decoder:  decoder,
		scaler:   scaler,
		capacity: Capacity,
		masters:  make(map[string]*master),
		variants: make(map[variantKey]*raster.Image),
	}
}

// Master returns the asset's master, decoding it when none is resident or
// the resident one is too small for the clamped request.
func (c *Cache) Master(assetID, path string, requested int) (*raster.Image, error) {
	m, _, err := c.master(assetID, path, ClampDimension(requested))
	if err != nil {
		return nil, err
	}
	return m.img, nil
}

// master returns the resident master for target, decoding one if needed.
// decoded reports whether this call had to decode.
func (c *Cache) master(assetID, path string, target int) (m *master, decoded bool, err error) {
	c.mu.Lock()
	if m, ok := c.masters[assetID]; ok && m.covers(target) {
		c.touch(assetID)
		c.mu.Unlock()
		metrics.PreviewCacheRequests.WithLabelValues("master", "hit").Inc()
		return m, false, nil
	}
	c.mu.Unlock()
	metrics.PreviewCacheRequests.WithLabelValues("master", "miss").Inc()

	envelope := min(max(target, MasterBase), MaxDimension)
	key := fmt.Sprintf("%s@%d", assetID, envelope)
	v, err, _ := c.decodes.Do(key, func() (interface{}, error) {
		img, err := c.decoder.Decode(path)
		if err != nil {
			return nil, err
		}
		return c.scaler.Downscale(img, envelope), nil
	})
	if err != nil {
		return nil, false, err
	}

	return c.storeMaster(assetID, &master{img: v.(*raster.Image), envelope: envelope}), true, nil
}

// storeMaster installs m unless a concurrent decode already left a master
// that serves at least as much, then purges the asset's variants.
func (c *Cache) storeMaster(assetID string, m *master) *master {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.masters[assetID]; ok && cur.envelope >= m.envelope && cur.maxDim() >= m.maxDim() {
		c.touch(assetID)
		return cur
	}

	c.masters[assetID] = m
	c.dropVariants(assetID)
	c.touch(assetID)
	c.evict()
	log.Debug("master %s stored at %dx%d (envelope %d)", assetID, m.img.Width, m.img.Height, m.envelope)
	return m
}

// Variant returns the asset's preview at the clamped requested dimension.
func (c *Cache) Variant(assetID, path string, requested int) (*raster.Image, error) {
	img, _, err := c.Lookup(assetID, path, requested)
	return img, err
}

// Lookup is Variant that also reports which tier served the request.
func (c *Cache) Lookup(assetID, path string, requested int) (*raster.Image, Tier, error) {
	target := ClampDimension(requested)
	m, decoded, err := c.master(assetID, path, target)
	if err != nil {
		return nil, "", err
	}
	tier := func(resident Tier) Tier {
		if decoded {
			return TierDecoded
		}
		return resident
	}

	if target >= m.maxDim()-masterTolerance {
		return m.img, tier(TierMaster), nil
	}

	key := variantKey{assetID: assetID, dim: target}
	c.mu.Lock()
	if v, ok := c.variants[key]; ok && c.masters[assetID] == m {
		c.touch(assetID)
		c.mu.Unlock()
		metrics.PreviewCacheRequests.WithLabelValues("variant", "hit").Inc()
		return v, tier(TierVariant), nil
	}
	c.mu.Unlock()
	metrics.PreviewCacheRequests.WithLabelValues("variant", "miss").Inc()

	v := c.scaler.Fit(m.img, target)

	c.mu.Lock()
	defer c.mu.Unlock()
	// A variant derived from a replaced or evicted master is returned but
	// not stored.
	if c.masters[assetID] == m {
		c.variants[key] = v
		c.touch(assetID)
		c.evict()
	}
	return v, tier(TierScaled), nil
}

// Clear drops every master, variant and recency entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.masters = make(map[string]*master)
	c.variants = make(map[variantKey]*raster.Image)
	c.recency = c.recency[:0]
	log.Debug("preview cache cleared")
}

// TrimVariants drops every scaled variant and keeps the masters, which can
// regenerate them without decoding.
func (c *Cache) TrimVariants() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.variants)
	c.variants = make(map[variantKey]*raster.Image)
	log.Debug("dropped %d preview variants", n)
}

// Resident returns the asset ids with a resident master, least recently
// used first.
func (c *Cache) Resident() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.recency)
}

// Counts returns the number of resident masters and variants.
func (c *Cache) Counts() (masters, variants int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.masters), len(c.variants)
}

// touch moves assetID to the most recently used end. c.mu must be held.
func (c *Cache) touch(assetID string) {
	if i := slices.Index(c.recency, assetID); i >= 0 {
		c.recency = slices.Delete(c.recency, i, i+1)
	}
	c.recency = append(c.recency, assetID)
}

// evict removes least recently used assets beyond capacity. c.mu must be
// held.
func (c *Cache) evict() {
	for len(c.recency) > c.capacity {
		id := c.recency[0]
		c.recency = slices.Delete(c.recency, 0, 1)
		delete(c.masters, id)
		c.dropVariants(id)
		metrics.PreviewCacheEvictions.Inc()
		log.Debug("evicted %s", id)
	}
}

// dropVariants removes every variant of assetID. c.mu must be held.
func (c *Cache) dropVariants(assetID string) {
	for k := range c.variants {
		if k.assetID == assetID {
			delete(c.variants, k)
		}
	}
}
