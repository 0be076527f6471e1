package testutil

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	minHostPort     = 15000
	maxHostPort     = 25000
	maxPortAttempts = 50
)

var (
	portManagerInstance *portManager
	portManagerOnce     sync.Once
)

// portManager hands out host ports for containers that must keep a fixed
// binding across restarts.
type portManager struct {
	mu    sync.Mutex
	used  map[int]bool
	rng   *rand.Rand
	probe func(port int) bool
}

func getPortManager() *portManager {
	portManagerOnce.Do(func() {
		portManagerInstance = &portManager{
			used:  make(map[int]bool),
			rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
			probe: portIsFree,
		}
	})
	return portManagerInstance
}

func (pm *portManager) reservePort() (int, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for attempt := 0; attempt < maxPortAttempts; attempt++ {
		port := minHostPort + pm.rng.Intn(maxHostPort-minHostPort+1)
		if pm.used[port] || !pm.probe(port) {
			continue
		}
		pm.used[port] = true
		return port, nil
	}

	return 0, fmt.Errorf("failed to find available port after %d attempts", maxPortAttempts)
}

func (pm *portManager) releasePort(port int) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	delete(pm.used, port)
}

func portIsFree(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
