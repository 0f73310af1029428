package images

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
)

// blurHashSize is the thumbnail side BlurHash is computed from; a tiny image
// gives nearly the same hash in milliseconds instead of seconds.
const blurHashSize = 64

// ComputeBlurHash generates a 4x3 component BlurHash for an image file.
func ComputeBlurHash(imagePath string) (string, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	img, _, err := Decode(file)
	if err != nil {
		return "", err
	}

	hash, err := blurhash.Encode(4, 3, Fit(img, blurHashSize, draw.NearestNeighbor))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

type hashKey struct {
	path    string
	size    int64
	modTime time.Time
}

// BlurHashCache memoizes BlurHashes per cover file version, so repeated
// library listings only decode covers that changed.
type BlurHashCache struct {
	mu     sync.Mutex
	hashes map[hashKey]string
}

// NewBlurHashCache creates an empty cache.
func NewBlurHashCache() *BlurHashCache {
	return &BlurHashCache{hashes: make(map[hashKey]string)}
}

// Get returns the BlurHash of path, computing it when the file is new or changed.
func (c *BlurHashCache) Get(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}
	key := hashKey{path: path, size: info.Size(), modTime: info.ModTime()}

	c.mu.Lock()
	hash, ok := c.hashes[key]
	c.mu.Unlock()
	if ok {
		return hash, nil
	}

	hash, err = ComputeBlurHash(path)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	for k := range c.hashes {
		if k.path == path {
			delete(c.hashes, k)
		}
	}
	c.hashes[key] = hash
	c.mu.Unlock()
	return hash, nil
}
